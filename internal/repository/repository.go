package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
	"github.com/vanshika/pursuit/backend/internal/graph"
)

var (
	// ErrConflict is returned by SaveSession when the stored version moved on.
	ErrConflict = errors.New("session version conflict")
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned by CreateSession for a duplicate session id.
	ErrExists = errors.New("session already exists")
)

// Repository persists the board, sessions, move log and team scores in the graph database.
type Repository struct {
	client graph.Client
	now    func() time.Time
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client, now: time.Now}
}

// EnsureSchema creates the uniqueness constraints the store relies on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaCypher {
		if _, err := r.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// UpsertBoardNode stores one node with its canonical adjacency document.
func (r *Repository) UpsertBoardNode(ctx context.Context, nodeID int, edges board.Edges) error {
	if nodeID <= 0 {
		return errors.New("node id must be positive")
	}
	doc, err := sonic.MarshalString(board.ConnectionsDocument(edges))
	if err != nil {
		return fmt.Errorf("encode node %d connections: %w", nodeID, err)
	}

	params := map[string]any{
		"nodeId":         nodeID,
		"connections":    doc,
		"transportTypes": transportTypes(edges),
	}
	if _, err := r.client.ExecuteWrite(ctx, upsertBoardNodeCypher, params); err != nil {
		return fmt.Errorf("upsert board node %d: %w", nodeID, err)
	}
	return nil
}

// LoadBoard returns every stored node row. Payloads are returned raw; decoding
// happens once when the graph is built.
func (r *Repository) LoadBoard(ctx context.Context) ([]board.NodeRecord, error) {
	res, err := r.client.ExecuteRead(ctx, loadBoardCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}

	records := make([]board.NodeRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		id, ok := toInt64(rec["nodeId"])
		if !ok {
			continue
		}
		records = append(records, board.NodeRecord{NodeID: int(id), Connections: rec["connections"]})
	}
	return records, nil
}

// CreateSession stores a brand new session at version 1 and links its teams.
func (r *Repository) CreateSession(ctx context.Context, s domain.Session) error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	s.Version = 1
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = r.now().UTC()
	}
	state, err := encodeSession(s)
	if err != nil {
		return err
	}

	params := map[string]any{
		"sessionId": s.ID,
		"state":     state,
		"version":   s.Version,
		"updatedAt": formatTime(s.UpdatedAt),
		"teamIds":   teamIDs(s),
	}
	res, err := r.client.ExecuteWrite(ctx, createSessionCypher, params)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	rec, ok := res.First()
	if !ok {
		return fmt.Errorf("create session %s: no result", s.ID)
	}
	if created, _ := rec["created"].(bool); !created {
		return fmt.Errorf("create session %s: %w", s.ID, ErrExists)
	}
	return nil
}

// LoadSession reads the latest committed snapshot of a session.
func (r *Repository) LoadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	res, err := r.client.ExecuteRead(ctx, loadSessionCypher, map[string]any{"sessionId": sessionID})
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	rec, ok := res.First()
	if !ok {
		return domain.Session{}, fmt.Errorf("load session %s: %w", sessionID, ErrNotFound)
	}

	var s domain.Session
	if err := sonic.UnmarshalString(toString(rec["state"]), &s); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	s.ID = sessionID
	if version, ok := toInt64(rec["version"]); ok {
		s.Version = version
	}
	if ts := toTimePtr(rec["updatedAt"]); ts != nil {
		s.UpdatedAt = *ts
	}
	if s.Positions == nil {
		s.Positions = map[int64]int{}
	}
	if s.Rewards == nil {
		s.Rewards = map[int64]int{}
	}
	return s, nil
}

// SaveSession writes s only if the stored version still equals expectedVersion.
// s.Version must already carry the new version.
func (r *Repository) SaveSession(ctx context.Context, s domain.Session, expectedVersion int64) error {
	state, err := encodeSession(s)
	if err != nil {
		return err
	}
	params := map[string]any{
		"sessionId":       s.ID,
		"expectedVersion": expectedVersion,
		"version":         s.Version,
		"state":           state,
		"closed":          s.Closed,
		"outcome":         string(s.Outcome),
		"updatedAt":       formatTime(s.UpdatedAt),
	}

	res, err := r.client.ExecuteWrite(ctx, saveSessionCypher, params)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	if _, ok := res.First(); !ok {
		return fmt.Errorf("save session %s at version %d: %w", s.ID, expectedVersion, ErrConflict)
	}
	return nil
}

// AppendMoveLog records one hop against its session.
func (r *Repository) AppendMoveLog(ctx context.Context, sessionID string, entry domain.MoveLogEntry) error {
	params := map[string]any{
		"sessionId": sessionID,
		"moveId":    entry.ID,
		"userId":    entry.UserID,
		"fromNode":  entry.FromNode,
		"toNode":    entry.ToNode,
		"tier":      entry.Tier.String(),
		"fare":      entry.Fare,
		"sequence":  entry.Sequence,
		"timestamp": formatTime(entry.Timestamp),
	}
	res, err := r.client.ExecuteWrite(ctx, appendMoveCypher, params)
	if err != nil {
		return fmt.Errorf("append move for session %s: %w", sessionID, err)
	}
	if _, ok := res.First(); !ok {
		return fmt.Errorf("append move for session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// MoveLog returns a session's hops in the order they were recorded.
func (r *Repository) MoveLog(ctx context.Context, sessionID string) ([]domain.MoveLogEntry, error) {
	res, err := r.client.ExecuteRead(ctx, moveLogCypher, map[string]any{"sessionId": sessionID})
	if err != nil {
		return nil, fmt.Errorf("load move log %s: %w", sessionID, err)
	}

	entries := make([]domain.MoveLogEntry, 0, len(res.Records))
	for _, rec := range res.Records {
		entry := domain.MoveLogEntry{
			ID:        toString(rec["moveId"]),
			SessionID: sessionID,
		}
		entry.UserID, _ = toInt64(rec["userId"])
		entry.FromNode = toInt(rec["fromNode"])
		entry.ToNode = toInt(rec["toNode"])
		entry.Fare = toInt(rec["fare"])
		entry.Sequence = toInt(rec["sequence"])
		if tier, err := domain.ParseTier(toString(rec["tier"])); err == nil {
			entry.Tier = tier
		}
		if ts := toTimePtr(rec["timestamp"]); ts != nil {
			entry.Timestamp = *ts
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// CreditTeamReward adds delta to a team's running score.
func (r *Repository) CreditTeamReward(ctx context.Context, teamID int64, delta int) error {
	params := map[string]any{"teamId": teamID, "delta": delta}
	if _, err := r.client.ExecuteWrite(ctx, creditTeamCypher, params); err != nil {
		return fmt.Errorf("credit team %d: %w", teamID, err)
	}
	return nil
}

// CloseSession marks the session ended for upstream matchmaking.
func (r *Repository) CloseSession(ctx context.Context, sessionID string) error {
	params := map[string]any{
		"sessionId": sessionID,
		"closedAt":  formatTime(r.now()),
	}
	if _, err := r.client.ExecuteWrite(ctx, closeSessionCypher, params); err != nil {
		return fmt.Errorf("close session %s: %w", sessionID, err)
	}
	return nil
}

func encodeSession(s domain.Session) (string, error) {
	state, err := sonic.MarshalString(s)
	if err != nil {
		return "", fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	return state, nil
}

func transportTypes(e board.Edges) []string {
	var out []string
	for _, t := range domain.Tiers {
		if len(e.For(t)) > 0 {
			out = append(out, t.String())
		}
	}
	return out
}

func teamIDs(s domain.Session) []int64 {
	seen := make(map[int64]bool, len(s.Players))
	var out []int64
	for _, p := range s.Players {
		if !seen[p.TeamID] {
			seen[p.TeamID] = true
			out = append(out, p.TeamID)
		}
	}
	return out
}

// storedTimeLayout keeps every stored timestamp the same width so string comparison
// in ORDER BY matches chronological order. RFC3339Nano trims trailing zeros.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(storedTimeLayout)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	default:
		return 0, false
	}
}

func toInt(val any) int {
	n, _ := toInt64(val)
	return int(n)
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
	}
	return nil
}

var schemaCypher = []string{
	`CREATE CONSTRAINT board_node_id IF NOT EXISTS FOR (n:BoardNode) REQUIRE n.nodeId IS UNIQUE`,
	`CREATE CONSTRAINT game_session_id IF NOT EXISTS FOR (s:GameSession) REQUIRE s.sessionId IS UNIQUE`,
	`CREATE CONSTRAINT team_id IF NOT EXISTS FOR (t:Team) REQUIRE t.teamId IS UNIQUE`,
	`CREATE CONSTRAINT move_id IF NOT EXISTS FOR (m:Move) REQUIRE m.moveId IS UNIQUE`,
}

const upsertBoardNodeCypher = `
MERGE (n:BoardNode {nodeId: $nodeId})
SET n.connections = $connections,
	n.transportTypes = $transportTypes
RETURN n.nodeId AS nodeId
`

const loadBoardCypher = `
MATCH (n:BoardNode)
RETURN n.nodeId AS nodeId, n.connections AS connections
ORDER BY n.nodeId
`

const createSessionCypher = `
OPTIONAL MATCH (existing:GameSession {sessionId: $sessionId})
WITH existing
FOREACH (_ IN CASE WHEN existing IS NULL THEN [1] ELSE [] END |
	CREATE (s:GameSession {sessionId: $sessionId})
	SET s.state = $state,
		s.version = $version,
		s.closed = false,
		s.outcome = "",
		s.updatedAt = $updatedAt
)
WITH existing
MATCH (s:GameSession {sessionId: $sessionId})
FOREACH (teamId IN CASE WHEN existing IS NULL THEN $teamIds ELSE [] END |
	MERGE (t:Team {teamId: teamId})
	ON CREATE SET t.score = 0
	MERGE (t)-[:PLAYS_IN]->(s)
)
RETURN existing IS NULL AS created
`

const loadSessionCypher = `
MATCH (s:GameSession {sessionId: $sessionId})
RETURN s.state AS state, s.version AS version, s.updatedAt AS updatedAt
`

const saveSessionCypher = `
MATCH (s:GameSession {sessionId: $sessionId})
WHERE s.version = $expectedVersion
SET s.state = $state,
	s.version = $version,
	s.closed = $closed,
	s.outcome = $outcome,
	s.updatedAt = $updatedAt
RETURN s.version AS version
`

const appendMoveCypher = `
MATCH (s:GameSession {sessionId: $sessionId})
MERGE (m:Move {moveId: $moveId})
SET m.userId = $userId,
	m.fromNode = $fromNode,
	m.toNode = $toNode,
	m.tier = $tier,
	m.fare = $fare,
	m.sequence = $sequence,
	m.timestamp = $timestamp
MERGE (s)-[:HAS_MOVE]->(m)
RETURN m.moveId AS moveId
`

const moveLogCypher = `
MATCH (:GameSession {sessionId: $sessionId})-[:HAS_MOVE]->(m:Move)
RETURN m.moveId AS moveId,
	m.userId AS userId,
	m.fromNode AS fromNode,
	m.toNode AS toNode,
	m.tier AS tier,
	m.fare AS fare,
	m.sequence AS sequence,
	m.timestamp AS timestamp
ORDER BY m.timestamp, m.sequence
`

const creditTeamCypher = `
MERGE (t:Team {teamId: $teamId})
ON CREATE SET t.score = 0
SET t.score = t.score + $delta
RETURN t.score AS score
`

const closeSessionCypher = `
MATCH (s:GameSession {sessionId: $sessionId})
SET s.closed = true,
	s.closedAt = $closedAt
RETURN s.sessionId AS sessionId
`
