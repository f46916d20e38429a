package game

import (
	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

// DoubleMove is the hidden mover's two-hop request. Zero tiers pick the cheapest edge.
type DoubleMove struct {
	First      int
	FirstTier  domain.Tier
	Second     int
	SecondTier domain.Tier
}

// ApplyDoubleMove executes both hops atomically: either both are applied or neither is.
// Capture is checked against the final position only.
func ApplyDoubleMove(s *domain.Session, g *board.Graph, actorID int64, req DoubleMove) (Result, error) {
	actor, _, from, err := checkTurn(s, actorID)
	if err != nil {
		return Result{}, err
	}
	if actor.Role != domain.RoleHiddenMover {
		return Result{}, Reject(ErrNotHiddenMover, "user %d is a %s", actorID, actor.Role)
	}

	first, err := resolveHop(g, from, req.First, req.FirstTier)
	if err != nil {
		return Result{}, err
	}
	second, err := resolveHop(g, req.First, req.Second, req.SecondTier)
	if err != nil {
		return Result{}, err
	}

	if actor.Balance < domain.MinimumFare {
		res := eliminate(s, g, actor)
		return res, Reject(ErrEliminatedForInsufficientFunds, "balance %d below minimum fare %d", actor.Balance, domain.MinimumFare)
	}
	total := first.Fare() + second.Fare()
	if actor.Balance < total {
		return Result{}, Reject(ErrInsufficientFundsForDoubleMove, "balance %d, combined fare %d", actor.Balance, total)
	}

	actor.Balance -= total
	s.HiddenMoverMoveCount += 2
	s.Positions[actorID] = req.Second

	res := Result{Hops: []domain.Hop{
		{UserID: actorID, From: from, To: req.First, Tier: first, Fare: first.Fare()},
		{UserID: actorID, From: req.First, To: req.Second, Tier: second, Fare: second.Fare()},
	}}
	advanceTurn(s, actorID)
	res.Outcome, res.Rewards = Evaluate(s, g, actorID)
	return res, nil
}
