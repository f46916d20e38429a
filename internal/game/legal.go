package game

import (
	"golang.org/x/exp/slices"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

// LegalMoves lists the destinations userID may move to this turn, per tier.
// Fares are not taken into account.
func LegalMoves(s *domain.Session, g *board.Graph, userID int64) (domain.LegalMoves, error) {
	actor, hidden, from, err := checkTurn(s, userID)
	if err != nil {
		return domain.LegalMoves{}, err
	}

	keep := func(nodes []int) []int {
		out := make([]int, 0, len(nodes))
		for _, n := range nodes {
			if actor.Role == domain.RoleTracker && blockedByTracker(s, userID, n, hidden.UserID) {
				continue
			}
			out = append(out, n)
		}
		return out
	}

	moves := domain.LegalMoves{
		From:        from,
		Taxi:        keep(g.Neighbors(from, domain.TierTaxi)),
		Bus:         keep(g.Neighbors(from, domain.TierBus)),
		Underground: keep(g.Neighbors(from, domain.TierUnderground)),
	}
	all := make([]int, 0, len(moves.Taxi)+len(moves.Bus)+len(moves.Underground))
	all = append(all, moves.Taxi...)
	all = append(all, moves.Bus...)
	all = append(all, moves.Underground...)
	slices.Sort(all)
	moves.All = slices.Compact(all)
	return moves, nil
}
