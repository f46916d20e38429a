package game

import (
	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

// Result describes what an accepted (or eliminating) request changed.
type Result struct {
	Hops       []domain.Hop
	Eliminated []int64
	Outcome    domain.Outcome
	// Rewards holds the points awarded by this request, keyed by team.
	Rewards map[int64]int
}

// ApplyMove validates and executes a single hop for actorID, mutating s in place.
// A zero tier selects the cheapest tier serving the edge.
//
// On rejection s is untouched, except for ErrEliminatedForInsufficientFunds where the
// actor is flagged eliminated and the returned Result must be committed.
func ApplyMove(s *domain.Session, g *board.Graph, actorID int64, target int, tier domain.Tier) (Result, error) {
	actor, hidden, from, err := checkTurn(s, actorID)
	if err != nil {
		return Result{}, err
	}

	chosen, err := resolveHop(g, from, target, tier)
	if err != nil {
		return Result{}, err
	}

	if actor.Role == domain.RoleTracker && blockedByTracker(s, actorID, target, hidden.UserID) {
		return Result{}, Reject(ErrNodeOccupiedByTracker, "node %d", target)
	}

	if actor.Balance < domain.MinimumFare {
		res := eliminate(s, g, actor)
		return res, Reject(ErrEliminatedForInsufficientFunds, "balance %d below minimum fare %d", actor.Balance, domain.MinimumFare)
	}
	fare := chosen.Fare()
	if actor.Balance < fare {
		return Result{}, Reject(ErrInsufficientFundsForFare, "balance %d, %s fare %d", actor.Balance, chosen, fare)
	}

	var res Result
	actor.Balance -= fare
	if actor.Role == domain.RoleTracker {
		hidden.Balance += fare
		if actor.Balance < domain.MinimumFare {
			actor.Eliminated = true
			res.Eliminated = append(res.Eliminated, actorID)
		}
	} else {
		s.HiddenMoverMoveCount++
	}
	s.Positions[actorID] = target
	res.Hops = []domain.Hop{{UserID: actorID, From: from, To: target, Tier: chosen, Fare: fare}}

	advanceTurn(s, actorID)
	res.Outcome, res.Rewards = Evaluate(s, g, actorID)
	return res, nil
}

// checkTurn runs the checks shared by every move request and resolves the actor.
func checkTurn(s *domain.Session, actorID int64) (actor, hidden *domain.Player, from int, err error) {
	if s.Closed {
		return nil, nil, 0, Reject(ErrSessionClosed, "session %s", s.ID)
	}
	if s.TurnUserID != actorID {
		return nil, nil, 0, Reject(ErrNotYourTurn, "user %d", actorID)
	}

	actor, ok := s.Player(actorID)
	if !ok {
		return nil, nil, 0, integrity("turn user %d is not in the roster", actorID)
	}
	if actor.Eliminated {
		return nil, nil, 0, integrity("turn points at eliminated user %d", actorID)
	}
	hidden, ok = s.HiddenMover()
	if !ok {
		return nil, nil, 0, integrity("session %s has no hidden mover", s.ID)
	}
	from, ok = s.Positions[actorID]
	if !ok {
		return nil, nil, 0, integrity("user %d has no position", actorID)
	}
	return actor, hidden, from, nil
}

// resolveHop checks edge legality and picks the tier the hop is paid with.
func resolveHop(g *board.Graph, from, to int, tier domain.Tier) (domain.Tier, error) {
	if !g.Adjacent(from, to) {
		return 0, Reject(ErrIllegalDestination, "%d is not adjacent to %d", to, from)
	}
	if tier == 0 {
		chosen, _ := g.CheapestTier(from, to)
		return chosen, nil
	}
	if !tier.Valid() || !g.HasEdge(from, to, tier) {
		return 0, Reject(ErrWrongTransportForEdge, "no %s edge %d->%d", tier, from, to)
	}
	return tier, nil
}

// blockedByTracker applies the occupancy rule for trackers.
func blockedByTracker(s *domain.Session, actorID int64, target int, hiddenID int64) bool {
	if s.Positions[hiddenID] == target {
		return false
	}
	for _, p := range s.Players {
		if p.Role != domain.RoleTracker || p.UserID == actorID || p.Eliminated {
			continue
		}
		if s.Positions[p.UserID] == target {
			return true
		}
	}
	return false
}

// eliminate strands the actor, passes the turn on and settles the session if that
// elimination decides the game.
func eliminate(s *domain.Session, g *board.Graph, actor *domain.Player) Result {
	actor.Eliminated = true
	res := Result{Eliminated: []int64{actor.UserID}}
	advanceTurn(s, actor.UserID)
	res.Outcome, res.Rewards = Evaluate(s, g, actor.UserID)
	return res
}

// advanceTurn hands the turn to the next active seat after userID, wrapping around.
// With no other active seat the pointer stays put.
func advanceTurn(s *domain.Session, userID int64) {
	ordered := turnOrder(s)
	start := -1
	for i, p := range ordered {
		if p.UserID == userID {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	for step := 1; step < len(ordered); step++ {
		next := ordered[(start+step)%len(ordered)]
		if !next.Eliminated {
			s.TurnUserID = next.UserID
			return
		}
	}
}

func turnOrder(s *domain.Session) []domain.Player {
	ordered := append([]domain.Player(nil), s.Players...)
	sortByTurnOrder(ordered)
	return ordered
}
