package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

// Seat is one player joining a new session, in turn order.
type Seat struct {
	UserID    int64
	TeamID    int64
	StartNode int
}

// Balances sets the starting purse per role.
type Balances struct {
	HiddenMover int
	Tracker     int
}

// DefaultBalances are the purses handed out when a session is formed without overrides.
var DefaultBalances = Balances{HiddenMover: 1000, Tracker: 2000}

// NewSession forms an open session from seats given in turn order. The first seat is the
// hidden mover and takes the first turn.
func NewSession(id string, seats []Seat, balances Balances, g *board.Graph, now time.Time) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, errors.New("session id is required")
	}
	if len(seats) < 2 {
		return domain.Session{}, fmt.Errorf("session needs at least 2 seats, got %d", len(seats))
	}

	sess := domain.Session{
		ID:         id,
		Positions:  make(map[int64]int, len(seats)),
		Rewards:    make(map[int64]int),
		TurnUserID: seats[0].UserID,
		UpdatedAt:  now.UTC(),
	}
	occupied := make(map[int]int64, len(seats))
	for i, seat := range seats {
		if _, dup := sess.Positions[seat.UserID]; dup {
			return domain.Session{}, fmt.Errorf("user %d is seated twice", seat.UserID)
		}
		if g != nil && !g.Has(seat.StartNode) {
			return domain.Session{}, fmt.Errorf("start node %d of user %d is not on the board", seat.StartNode, seat.UserID)
		}
		if other, taken := occupied[seat.StartNode]; taken {
			return domain.Session{}, fmt.Errorf("users %d and %d share start node %d", other, seat.UserID, seat.StartNode)
		}
		occupied[seat.StartNode] = seat.UserID

		turnOrder := i + 1
		role := domain.RoleForTurnOrder(turnOrder)
		balance := balances.Tracker
		if role == domain.RoleHiddenMover {
			balance = balances.HiddenMover
		}
		sess.Players = append(sess.Players, domain.Player{
			UserID:    seat.UserID,
			TeamID:    seat.TeamID,
			TurnOrder: turnOrder,
			Role:      role,
			Balance:   balance,
		})
		sess.Positions[seat.UserID] = seat.StartNode
	}
	return sess, nil
}

// DemoSeats seats players 1..n, each on its own team, starting on the node matching its id.
func DemoSeats(n int) []Seat {
	seats := make([]Seat, 0, n)
	for i := 1; i <= n; i++ {
		seats = append(seats, Seat{UserID: int64(i), TeamID: int64(i), StartNode: i})
	}
	return seats
}
