package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

// Op names a MemoryStore operation for hooks.
type Op string

const (
	OpLoadBoard        Op = "LoadBoard"
	OpCreateSession    Op = "CreateSession"
	OpLoadSession      Op = "LoadSession"
	OpSaveSession      Op = "SaveSession"
	OpAppendMoveLog    Op = "AppendMoveLog"
	OpMoveLog          Op = "MoveLog"
	OpCreditTeamReward Op = "CreditTeamReward"
	OpCloseSession     Op = "CloseSession"
)

// Hook runs before an operation; a non-nil error fails the operation.
type Hook func(ctx context.Context) error

// MemoryStore keeps everything in process memory. It backs single-node deployments
// that read the board from a file, and the service tests.
type MemoryStore struct {
	mu       sync.Mutex
	board    []board.NodeRecord
	sessions map[string]domain.Session
	moves    map[string][]domain.MoveLogEntry
	scores   map[int64]int
	closed   map[string]bool
	hooks    map[Op]Hook
}

// NewMemoryStore returns a store holding the given board rows.
func NewMemoryStore(records []board.NodeRecord) *MemoryStore {
	return &MemoryStore{
		board:    append([]board.NodeRecord(nil), records...),
		sessions: make(map[string]domain.Session),
		moves:    make(map[string][]domain.MoveLogEntry),
		scores:   make(map[int64]int),
		closed:   make(map[string]bool),
		hooks:    make(map[Op]Hook),
	}
}

// SetHook installs fn before op, replacing any earlier hook. A nil fn removes it.
func (m *MemoryStore) SetHook(op Op, fn Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == nil {
		delete(m.hooks, op)
		return
	}
	m.hooks[op] = fn
}

func (m *MemoryStore) before(ctx context.Context, op Op) error {
	m.mu.Lock()
	hook := m.hooks[op]
	m.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (m *MemoryStore) LoadBoard(ctx context.Context) ([]board.NodeRecord, error) {
	if err := m.before(ctx, OpLoadBoard); err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]board.NodeRecord(nil), m.board...), nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, s domain.Session) error {
	if err := m.before(ctx, OpCreateSession); err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("create session %s: %w", s.ID, ErrExists)
	}
	s = s.Clone()
	s.Version = 1
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) LoadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := m.before(ctx, OpLoadSession); err != nil {
		return domain.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return domain.Session{}, fmt.Errorf("load session %s: %w", sessionID, ErrNotFound)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, s domain.Session, expectedVersion int64) error {
	if err := m.before(ctx, OpSaveSession); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[s.ID]
	if !ok || current.Version != expectedVersion {
		return fmt.Errorf("save session %s at version %d: %w", s.ID, expectedVersion, ErrConflict)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) AppendMoveLog(ctx context.Context, sessionID string, entry domain.MoveLogEntry) error {
	if err := m.before(ctx, OpAppendMoveLog); err != nil {
		return fmt.Errorf("append move for session %s: %w", sessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.SessionID = sessionID
	m.moves[sessionID] = append(m.moves[sessionID], entry)
	return nil
}

func (m *MemoryStore) MoveLog(ctx context.Context, sessionID string) ([]domain.MoveLogEntry, error) {
	if err := m.before(ctx, OpMoveLog); err != nil {
		return nil, fmt.Errorf("load move log %s: %w", sessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MoveLogEntry(nil), m.moves[sessionID]...), nil
}

func (m *MemoryStore) CreditTeamReward(ctx context.Context, teamID int64, delta int) error {
	if err := m.before(ctx, OpCreditTeamReward); err != nil {
		return fmt.Errorf("credit team %d: %w", teamID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[teamID] += delta
	return nil
}

func (m *MemoryStore) CloseSession(ctx context.Context, sessionID string) error {
	if err := m.before(ctx, OpCloseSession); err != nil {
		return fmt.Errorf("close session %s: %w", sessionID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed[sessionID] = true
	return nil
}

// TeamScore returns the accumulated score of a team.
func (m *MemoryStore) TeamScore(teamID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[teamID]
}

// SessionClosed reports whether CloseSession was called for the session.
func (m *MemoryStore) SessionClosed(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[sessionID]
}
