package game

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
)

const (
	hider    int64 = 10
	trackerA int64 = 20
	trackerB int64 = 30
)

// testBoard:
//
//	1 -taxi- 2 -bus- 4 -taxi- 5
//	 \      /        \       /
//	  taxi taxi       taxi taxi
//	    \  /            \   /
//	     3 --underground-- 6        7 (isolated)
func testBoard() *board.Graph {
	g := board.New()
	g.Connect(1, 2, domain.TierTaxi)
	g.Connect(1, 3, domain.TierTaxi)
	g.Connect(2, 3, domain.TierTaxi)
	g.Connect(2, 4, domain.TierBus)
	g.Connect(3, 6, domain.TierUnderground)
	g.Connect(4, 5, domain.TierTaxi)
	g.Connect(4, 6, domain.TierTaxi)
	g.Connect(5, 6, domain.TierTaxi)
	g.AddNode(7)
	return g
}

func testSession() *domain.Session {
	return &domain.Session{
		ID: "session-1",
		Players: []domain.Player{
			{UserID: hider, TeamID: 100, TurnOrder: 1, Role: domain.RoleHiddenMover, Balance: 1000},
			{UserID: trackerA, TeamID: 200, TurnOrder: 2, Role: domain.RoleTracker, Balance: 500},
			{UserID: trackerB, TeamID: 300, TurnOrder: 3, Role: domain.RoleTracker, Balance: 500},
		},
		Positions:  map[int64]int{hider: 1, trackerA: 4, trackerB: 6},
		TurnUserID: hider,
		Rewards:    map[int64]int{},
	}
}

func player(t *testing.T, s *domain.Session, id int64) *domain.Player {
	t.Helper()
	p, ok := s.Player(id)
	require.True(t, ok)
	return p
}

func requireRejected(t *testing.T, err error, reason error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, reason), "got %v, want %v", err, reason)
	require.True(t, IsRejection(err))
}

func TestApplyMoveHiddenMoverPicksCheapestTier(t *testing.T) {
	s := testSession()

	res, err := ApplyMove(s, testBoard(), hider, 2, 0)
	require.NoError(t, err)

	require.Equal(t, []domain.Hop{{UserID: hider, From: 1, To: 2, Tier: domain.TierTaxi, Fare: domain.FareTaxi}}, res.Hops)
	require.Equal(t, domain.OutcomeNone, res.Outcome)
	require.Equal(t, 2, s.Positions[hider])
	require.Equal(t, 1000-domain.FareTaxi, player(t, s, hider).Balance)
	require.Equal(t, 1, s.HiddenMoverMoveCount)
	require.Equal(t, trackerA, s.TurnUserID)
}

func TestTrackerFareIsPaidToHiddenMover(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	before := s.TotalBalance()

	res, err := ApplyMove(s, testBoard(), trackerA, 2, domain.TierBus)
	require.NoError(t, err)

	require.Equal(t, domain.FareBus, res.Hops[0].Fare)
	require.Equal(t, before, s.TotalBalance())
	require.Equal(t, 500-domain.FareBus, player(t, s, trackerA).Balance)
	require.Equal(t, 1000+domain.FareBus, player(t, s, hider).Balance)
	require.Zero(t, s.HiddenMoverMoveCount)
	require.Equal(t, trackerB, s.TurnUserID)
}

func TestApplyMoveRejectionsLeaveSessionUntouched(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(s *domain.Session)
		actor  int64
		target int
		tier   domain.Tier
		reason error
	}{
		{
			name:   "not your turn",
			actor:  trackerA,
			target: 2,
			reason: ErrNotYourTurn,
		},
		{
			name:   "closed session",
			setup:  func(s *domain.Session) { s.Closed = true; s.Outcome = domain.OutcomeCaptured },
			actor:  hider,
			target: 2,
			reason: ErrSessionClosed,
		},
		{
			name:   "not adjacent",
			actor:  hider,
			target: 4,
			reason: ErrIllegalDestination,
		},
		{
			name:   "isolated node",
			actor:  hider,
			target: 7,
			reason: ErrIllegalDestination,
		},
		{
			name:   "wrong tier",
			setup:  func(s *domain.Session) { s.TurnUserID = trackerA; s.Positions[trackerA] = 3 },
			actor:  trackerA,
			target: 1,
			tier:   domain.TierBus,
			reason: ErrWrongTransportForEdge,
		},
		{
			name:   "unknown tier",
			actor:  hider,
			target: 2,
			tier:   domain.Tier(9),
			reason: ErrWrongTransportForEdge,
		},
		{
			name:   "occupied by tracker",
			setup:  func(s *domain.Session) { s.TurnUserID = trackerA; s.Positions[trackerB] = 5 },
			actor:  trackerA,
			target: 5,
			reason: ErrNodeOccupiedByTracker,
		},
		{
			name: "fare above balance",
			setup: func(s *domain.Session) {
				s.TurnUserID = trackerA
				s.Positions[trackerA] = 3
				s.Positions[trackerB] = 5
				s.Players[1].Balance = 50
			},
			actor:  trackerA,
			target: 6,
			tier:   domain.TierUnderground,
			reason: ErrInsufficientFundsForFare,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := testSession()
			if tc.setup != nil {
				tc.setup(s)
			}
			before := s.Clone()

			res, err := ApplyMove(s, testBoard(), tc.actor, tc.target, tc.tier)
			requireRejected(t, err, tc.reason)
			require.Empty(t, res.Hops)
			require.Equal(t, before, *s)
		})
	}
}

func TestWrongTierWithoutModeAutoSelects(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Positions[trackerA] = 3

	res, err := ApplyMove(s, testBoard(), trackerA, 1, 0)
	require.NoError(t, err)
	require.Equal(t, domain.TierTaxi, res.Hops[0].Tier)
	require.Equal(t, domain.OutcomeCaptured, res.Outcome)
}

func TestEliminatedTrackerDoesNotBlock(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Positions[trackerB] = 5
	s.Players[2].Eliminated = true

	_, err := ApplyMove(s, testBoard(), trackerA, 5, 0)
	require.NoError(t, err)
	require.Equal(t, 5, s.Positions[trackerA])
	require.Equal(t, hider, s.TurnUserID, "eliminated seat is skipped")
}

func TestTrackerMayJoinTrackerOnHiddenMoverNode(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Positions[hider] = 5
	s.Positions[trackerB] = 5

	res, err := ApplyMove(s, testBoard(), trackerA, 5, 0)
	require.NoError(t, err)

	require.Equal(t, 5, s.Positions[trackerA])
	require.Equal(t, 5, s.Positions[trackerB])
	require.Equal(t, domain.OutcomeCaptured, res.Outcome)
	// both on the node, ties keep turn order
	require.Equal(t, map[int64]int{200: 5000, 300: 4000}, res.Rewards)
	require.True(t, s.Closed)
}

func TestLowBalanceEliminatesInsteadOfMoving(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Players[1].Balance = 40

	res, err := ApplyMove(s, testBoard(), trackerA, 5, 0)
	requireRejected(t, err, ErrEliminatedForInsufficientFunds)

	require.Equal(t, []int64{trackerA}, res.Eliminated)
	require.Empty(t, res.Hops)
	require.True(t, player(t, s, trackerA).Eliminated)
	require.Equal(t, 40, player(t, s, trackerA).Balance)
	require.Equal(t, 4, s.Positions[trackerA])
	require.Equal(t, trackerB, s.TurnUserID)
	require.False(t, s.Closed)
}

func TestMoveThatDrainsTrackerStillCompletes(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Players[1].Balance = 80

	res, err := ApplyMove(s, testBoard(), trackerA, 5, 0)
	require.NoError(t, err)

	require.Equal(t, []int64{trackerA}, res.Eliminated)
	require.Equal(t, 5, s.Positions[trackerA])
	require.Equal(t, 80-domain.FareTaxi, player(t, s, trackerA).Balance)
	require.True(t, player(t, s, trackerA).Eliminated)
	require.Equal(t, trackerB, s.TurnUserID)
}

func TestTurnAdvancesToActivePlayer(t *testing.T) {
	s := testSession()
	g := testBoard()

	moves := []struct {
		actor  int64
		target int
	}{
		{hider, 2},
		{trackerA, 5},
		{trackerB, 4},
		{hider, 3},
		{trackerA, 6},
	}
	for _, m := range moves {
		_, err := ApplyMove(s, g, m.actor, m.target, 0)
		require.NoError(t, err)

		next, ok := s.Player(s.TurnUserID)
		require.True(t, ok)
		require.False(t, next.Eliminated)
		require.NotEqual(t, m.actor, s.TurnUserID)
	}
	require.Equal(t, 2, s.HiddenMoverMoveCount)
}

func TestIntegrityViolations(t *testing.T) {
	s := testSession()
	delete(s.Positions, hider)
	_, err := ApplyMove(s, testBoard(), hider, 2, 0)
	require.ErrorIs(t, err, ErrIntegrity)
	require.False(t, IsRejection(err))

	s = testSession()
	s.Players[0].Eliminated = true
	_, err = ApplyMove(s, testBoard(), hider, 2, 0)
	require.ErrorIs(t, err, ErrIntegrity)

	s = testSession()
	s.TurnUserID = 99
	_, err = ApplyMove(s, testBoard(), 99, 2, 0)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestLastTrackerCapturesHiddenMover(t *testing.T) {
	s := testSession()
	g := testBoard()
	s.TurnUserID = trackerA
	s.Positions[trackerA] = 2
	s.Positions[trackerB] = 7
	s.Players[2].Eliminated = true

	res, err := ApplyMove(s, g, trackerA, 1, 0)
	require.NoError(t, err)

	require.Equal(t, domain.OutcomeCaptured, res.Outcome)
	require.Equal(t, map[int64]int{200: 5000}, res.Rewards)
	require.Equal(t, 5000, s.Rewards[200])
	require.Zero(t, s.Rewards[300])
	require.True(t, s.Closed)

	before := s.Clone()
	_, err = ApplyMove(s, g, s.TurnUserID, 2, 0)
	requireRejected(t, err, ErrSessionClosed)
	require.Equal(t, before, *s)
}

func TestHiddenMoverWalkingIntoTracker(t *testing.T) {
	s := testSession()
	s.Positions[trackerA] = 2

	res, err := ApplyMove(s, testBoard(), hider, 2, 0)
	require.NoError(t, err)

	require.Equal(t, domain.OutcomeCaptured, res.Outcome)
	// trackerA sits on the node, trackerB is 6 -> 3 -> 2
	require.Equal(t, map[int64]int{200: 5000, 300: 4000}, res.Rewards)
}

func TestCapturingTrackerCountsEvenWhenDrained(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.Positions[trackerA] = 2
	s.Players[1].Balance = 50

	res, err := ApplyMove(s, testBoard(), trackerA, 1, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{trackerA}, res.Eliminated)
	require.Equal(t, domain.OutcomeCaptured, res.Outcome)
	require.Equal(t, 5000, res.Rewards[200])
}

func TestEliminatingLastTrackerIsEscape(t *testing.T) {
	s := testSession()
	s.TurnUserID = trackerA
	s.HiddenMoverMoveCount = 20
	s.Players[1].Balance = 40
	s.Players[2].Eliminated = true

	res, err := ApplyMove(s, testBoard(), trackerA, 5, 0)
	requireRejected(t, err, ErrEliminatedForInsufficientFunds)

	require.Equal(t, domain.OutcomeHiddenMoverEscape, res.Outcome)
	require.Equal(t, map[int64]int{100: 5000}, res.Rewards)
	require.True(t, s.Closed)
	require.Equal(t, domain.OutcomeHiddenMoverEscape, s.Outcome)
}

func TestEvaluateShortCircuitsClosedSession(t *testing.T) {
	s := testSession()
	s.Closed = true
	s.Outcome = domain.OutcomeHiddenMoverEscape
	s.Positions[trackerA] = 1

	outcome, rewards := Evaluate(s, testBoard(), trackerA)
	require.Equal(t, domain.OutcomeHiddenMoverEscape, outcome)
	require.Nil(t, rewards)
	require.Empty(t, s.Rewards)
}

func TestErrorCodes(t *testing.T) {
	require.Equal(t, "NotYourTurn", Code(Reject(ErrNotYourTurn, "user %d", 1)))
	require.Equal(t, "IntegrityViolation", Code(integrity("broken")))
	require.Equal(t, "Conflict", Code(ErrConflict))
	require.Empty(t, Code(errors.New("boom")))
}
