package graph

import (
	"context"
	"errors"
	"time"
)

// Client is the narrow contract the game store needs from the graph database.
// Each call runs in its own managed transaction.
type Client interface {
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (Result, error)
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) (Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Result holds the records a statement returned, fully consumed.
type Result struct {
	Records []Record
}

// First returns the first record, if any.
func (r Result) First() (Record, bool) {
	if len(r.Records) == 0 {
		return nil, false
	}
	return r.Records[0], true
}

// Record maps returned column names to values.
type Record map[string]any

// Options configures the Bolt client.
type Options struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
	// TxTimeout bounds each transaction on the server side; zero uses the server default.
	TxTimeout time.Duration
}

// ErrMissingURI indicates the graph URI is not provided.
var ErrMissingURI = errors.New("graph URI is required")
