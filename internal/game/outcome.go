package game

import (
	"golang.org/x/exp/slices"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

const (
	CaptureBaseReward   = 5000
	CaptureRankPenalty  = 1000
	EscapeRewardBase    = 5000
	EscapeRewardDivisor = 20
)

// Evaluate decides whether the session has ended after actorID's request. When it has,
// the session is closed, rewards are accumulated on it and the awarded points returned.
func Evaluate(s *domain.Session, g *board.Graph, actorID int64) (domain.Outcome, map[int64]int) {
	if s.Closed {
		return s.Outcome, nil
	}
	hidden, ok := s.HiddenMover()
	if !ok {
		return domain.OutcomeNone, nil
	}

	outcome := domain.OutcomeNone
	switch {
	case captured(s, hidden.UserID, actorID):
		outcome = domain.OutcomeCaptured
	case activeTrackers(s) == 0:
		outcome = domain.OutcomeHiddenMoverEscape
	case hidden.Eliminated:
		// stranded with trackers still on the board
		outcome = domain.OutcomeCaptured
	}
	if !outcome.Terminal() {
		return outcome, nil
	}

	var rewards map[int64]int
	if outcome == domain.OutcomeCaptured {
		rewards = ScoreCapture(s, g, actorID)
	} else {
		rewards = ScoreEscape(s)
	}
	if s.Rewards == nil {
		s.Rewards = make(map[int64]int, len(rewards))
	}
	for team, points := range rewards {
		s.Rewards[team] += points
	}
	s.Closed = true
	s.Outcome = outcome
	return outcome, rewards
}

func captured(s *domain.Session, hiddenID, actorID int64) bool {
	target := s.Positions[hiddenID]
	for _, p := range s.Players {
		if p.Role != domain.RoleTracker {
			continue
		}
		// the capturing tracker counts even if its own fare eliminated it
		if p.Eliminated && p.UserID != actorID {
			continue
		}
		if pos, ok := s.Positions[p.UserID]; ok && pos == target {
			return true
		}
	}
	return false
}

func activeTrackers(s *domain.Session) int {
	n := 0
	for _, p := range s.Players {
		if p.Role == domain.RoleTracker && !p.Eliminated {
			n++
		}
	}
	return n
}

type ranked struct {
	team     int64
	distance int
}

// ScoreCapture ranks trackers by BFS distance to the hidden mover, nearest first, and
// awards 5000 minus 1000 per rank. Ties keep turn order. Eliminated trackers (other than
// capturerID) and trackers that cannot reach the hidden mover score nothing.
func ScoreCapture(s *domain.Session, g *board.Graph, capturerID int64) map[int64]int {
	rewards := make(map[int64]int)
	hidden, ok := s.HiddenMover()
	if !ok {
		return rewards
	}
	target := s.Positions[hidden.UserID]

	var field []ranked
	for _, p := range turnOrder(s) {
		if p.Role != domain.RoleTracker {
			continue
		}
		if p.Eliminated && p.UserID != capturerID {
			continue
		}
		pos, ok := s.Positions[p.UserID]
		if !ok {
			continue
		}
		d, reachable := board.Distance(g, pos, target)
		if !reachable {
			continue
		}
		field = append(field, ranked{team: p.TeamID, distance: d})
	}

	slices.SortStableFunc(field, func(a, b ranked) int {
		return a.distance - b.distance
	})
	for rank, r := range field {
		award := CaptureBaseReward - rank*CaptureRankPenalty
		if award <= 0 {
			break
		}
		rewards[r.team] += award
	}
	return rewards
}

// ScoreEscape pays the hidden mover's team in proportion to the hops it survived.
func ScoreEscape(s *domain.Session) map[int64]int {
	rewards := make(map[int64]int)
	hidden, ok := s.HiddenMover()
	if !ok {
		return rewards
	}
	rewards[hidden.TeamID] = EscapeRewardBase * s.HiddenMoverMoveCount / EscapeRewardDivisor
	return rewards
}

func sortByTurnOrder(players []domain.Player) {
	slices.SortStableFunc(players, func(a, b domain.Player) int {
		return a.TurnOrder - b.TurnOrder
	})
}
