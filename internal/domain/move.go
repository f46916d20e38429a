package domain

import "time"

// Hop is a single edge traversal made by a player.
type Hop struct {
	UserID int64 `json:"userId"`
	From   int   `json:"fromNode"`
	To     int   `json:"toNode"`
	Tier   Tier  `json:"transport"`
	Fare   int   `json:"fare"`
}

// MoveLogEntry is the append-only audit record of one hop.
type MoveLogEntry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    int64     `json:"userId"`
	FromNode  int       `json:"fromNode"`
	ToNode    int       `json:"toNode"`
	Tier      Tier      `json:"transport"`
	Fare      int       `json:"fare"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// LegalMoves lists the destinations reachable from a player's node, per tier.
type LegalMoves struct {
	From        int   `json:"from"`
	Taxi        []int `json:"taxi"`
	Bus         []int `json:"bus"`
	Underground []int `json:"underground"`
	All         []int `json:"all"`
}
