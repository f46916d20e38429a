package domain

import "time"

// Role distinguishes the pursued player from the pursuers.
type Role string

const (
	RoleHiddenMover Role = "HIDDEN_MOVER"
	RoleTracker     Role = "TRACKER"
)

// Outcome is the terminal state of a session, empty while play continues.
type Outcome string

const (
	OutcomeNone              Outcome = ""
	OutcomeCaptured          Outcome = "CAPTURED"
	OutcomeHiddenMoverEscape Outcome = "HIDDEN_MOVER_ESCAPED"
)

// Terminal reports whether the outcome ends the session.
func (o Outcome) Terminal() bool {
	return o != OutcomeNone
}

// Player is one seat in a session. Elimination is a flag so turn order stays stable.
type Player struct {
	UserID     int64 `json:"userId"`
	TeamID     int64 `json:"teamId"`
	TurnOrder  int   `json:"turnOrder"`
	Role       Role  `json:"role"`
	Balance    int   `json:"balance"`
	Eliminated bool  `json:"eliminated"`
}

// RoleForTurnOrder derives the seat role: the first seat is the hidden mover.
func RoleForTurnOrder(turnOrder int) Role {
	if turnOrder == 1 {
		return RoleHiddenMover
	}
	return RoleTracker
}

// Session is the mutable per-game record read and written on every accepted move.
type Session struct {
	ID                   string        `json:"sessionId"`
	Players              []Player      `json:"players"`
	Positions            map[int64]int `json:"positions"`
	TurnUserID           int64         `json:"turnUserId"`
	HiddenMoverMoveCount int           `json:"hiddenMoverMoveCount"`
	Closed               bool          `json:"closed"`
	Outcome              Outcome       `json:"outcome,omitempty"`
	Rewards              map[int64]int `json:"rewards"`
	Version              int64         `json:"version"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy so a move can be computed without touching the snapshot.
func (s Session) Clone() Session {
	out := s
	out.Players = append([]Player(nil), s.Players...)
	out.Positions = make(map[int64]int, len(s.Positions))
	for k, v := range s.Positions {
		out.Positions[k] = v
	}
	out.Rewards = make(map[int64]int, len(s.Rewards))
	for k, v := range s.Rewards {
		out.Rewards[k] = v
	}
	return out
}

// Player returns a pointer into the roster for the given user.
func (s *Session) Player(userID int64) (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// HiddenMover returns the single hidden-mover seat.
func (s *Session) HiddenMover() (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].Role == RoleHiddenMover {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// TotalBalance sums every player's balance.
func (s *Session) TotalBalance() int {
	total := 0
	for _, p := range s.Players {
		total += p.Balance
	}
	return total
}
