package graph

import (
	"context"
	"strings"
	"sync"
)

// Responder produces the outcome of a statement sent to a MemoryClient.
type Responder func(params map[string]any) (Result, error)

// MemoryClient is a scripted Client for tests. Statements are matched against
// registered fragments in registration order; unmatched statements return an empty result.
type MemoryClient struct {
	mu           sync.Mutex
	routes       []route
	calls        []ExecutedQuery
	err          error
	connectivity error
}

type route struct {
	fragment string
	respond  Responder
}

// ExecutedQuery captures a statement, its parameters and the access mode it ran with.
type ExecutedQuery struct {
	Query  string
	Params map[string]any
	Write  bool
}

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{}
}

// On routes every statement containing fragment to respond.
func (m *MemoryClient) On(fragment string, respond Responder) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, route{fragment: fragment, respond: respond})
	return m
}

// Returning routes statements containing fragment to a fixed set of records.
func (m *MemoryClient) Returning(fragment string, records ...Record) *MemoryClient {
	return m.On(fragment, func(map[string]any) (Result, error) {
		return Result{Records: records}, nil
	})
}

// WithError makes every statement fail with err.
func (m *MemoryClient) WithError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *MemoryClient) WithConnectivityError(err error) *MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *MemoryClient) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ctx, cypher, params, true)
}

func (m *MemoryClient) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(ctx, cypher, params, false)
}

func (m *MemoryClient) execute(ctx context.Context, cypher string, params map[string]any, write bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return Result{}, err
	}
	m.calls = append(m.calls, ExecutedQuery{Query: cypher, Params: cloneMap(params), Write: write})
	var respond Responder
	for _, r := range m.routes {
		if strings.Contains(cypher, r.fragment) {
			respond = r.respond
			break
		}
	}
	m.mu.Unlock()

	if respond == nil {
		return Result{}, nil
	}
	return respond(params)
}

func (m *MemoryClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *MemoryClient) Close(context.Context) error {
	return nil
}

// Calls returns every executed statement in order.
func (m *MemoryClient) Calls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.calls...)
}

// WriteCalls returns the statements executed in write mode.
func (m *MemoryClient) WriteCalls() []ExecutedQuery {
	var out []ExecutedQuery
	for _, c := range m.Calls() {
		if c.Write {
			out = append(out, c)
		}
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
