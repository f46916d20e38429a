package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
	"github.com/vanshika/pursuit/backend/internal/lock"
	"github.com/vanshika/pursuit/backend/internal/repository"
	"github.com/vanshika/pursuit/backend/internal/service"
)

var testNow = time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (http.Handler, *repository.MemoryStore) {
	t.Helper()
	spec := board.Spec{
		Name: "handlers",
		Nodes: []board.NodeSpec{
			{ID: 1, Taxi: []int{2}},
			{ID: 2, Taxi: []int{1, 3}, Bus: []int{4}},
			{ID: 3, Taxi: []int{2}},
			{ID: 4, Bus: []int{2}},
		},
	}
	store := repository.NewMemoryStore(spec.Records())
	sess, err := service.NewSession("game-1", []service.Seat{
		{UserID: 1, TeamID: 10, StartNode: 1},
		{UserID: 2, TeamID: 20, StartNode: 4},
	}, service.Balances{HiddenMover: 1000, Tracker: 100}, spec.Graph(), testNow)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	svc := service.NewGameService(store, lock.NewLocalLocker(), zerolog.Nop(), service.Options{})
	svc.WithClock(func() time.Time { return testNow })
	router := NewRouter(zerolog.Nop(), RouterDependencies{
		API: NewAPIHandlers(zerolog.Nop(), svc),
	})
	return router, store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleMove_Commits(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/sessions/game-1/moves", `{"userId":1,"target":2,"transport":"taxi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload moveResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Hops) != 1 || payload.Hops[0].To != 2 || payload.Hops[0].Transport != "taxi" {
		t.Fatalf("unexpected hops %+v", payload.Hops)
	}
	if payload.Session.Version != 2 {
		t.Fatalf("expected version 2, got %d", payload.Session.Version)
	}
	if payload.Session.TurnUserID != 2 {
		t.Fatalf("expected turn to pass to user 2, got %d", payload.Session.TurnUserID)
	}
}

func TestHandleMove_RejectionStatuses(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"not your turn", `{"userId":2,"target":2}`, http.StatusConflict, "NotYourTurn"},
		{"not adjacent", `{"userId":1,"target":3}`, http.StatusUnprocessableEntity, "IllegalDestination"},
		{"wrong transport", `{"userId":1,"target":2,"transport":"bus"}`, http.StatusUnprocessableEntity, "WrongTransportForEdge"},
		{"unknown transport", `{"userId":1,"target":2,"transport":"ferry"}`, http.StatusBadRequest, ""},
		{"unknown field", `{"userId":1,"target":2,"speed":9}`, http.StatusBadRequest, ""},
		{"missing user", `{"target":2}`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, _ := newTestRouter(t)
			rec := do(t, router, http.MethodPost, "/sessions/game-1/moves", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var payload errorResponse
			if err := sonic.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if payload.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, payload.Reason)
			}
		})
	}
}

func TestHandleMove_EliminationReturnsState(t *testing.T) {
	router, store := newTestRouter(t)
	if rec := do(t, router, http.MethodPost, "/sessions/game-1/moves", `{"userId":1,"target":2}`); rec.Code != http.StatusOK {
		t.Fatalf("hidden mover move failed: %d %s", rec.Code, rec.Body.String())
	}

	// Drain the tracker below the cheapest fare.
	sess, err := store.LoadSession(context.Background(), "game-1")
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	p, _ := sess.Player(2)
	p.Balance = 40
	if err := store.SaveSession(context.Background(), sess, sess.Version); err != nil {
		t.Fatalf("save session: %v", err)
	}

	rec := do(t, router, http.MethodPost, "/sessions/game-1/moves", `{"userId":2,"target":2,"transport":"bus"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload moveResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Reason != "EliminatedForInsufficientFunds" {
		t.Fatalf("unexpected reason %q", payload.Reason)
	}
	if len(payload.Eliminated) != 1 || payload.Eliminated[0] != 2 {
		t.Fatalf("expected user 2 eliminated, got %v", payload.Eliminated)
	}
	if payload.Outcome != string(domain.OutcomeHiddenMoverEscape) || !payload.Session.Closed {
		t.Fatalf("expected escape with closed session, got %q closed=%v", payload.Outcome, payload.Session.Closed)
	}
	if payload.Session.Players[0].Node != 2 {
		t.Fatalf("expected a closed session to reveal the hidden mover, got %+v", payload.Session.Players[0])
	}
}

func TestHandleDoubleMove(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/sessions/game-1/double-moves",
		`{"userId":1,"first":{"target":2,"transport":"taxi"},"second":{"target":3}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload moveResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Hops) != 2 || payload.Hops[1].To != 3 {
		t.Fatalf("unexpected hops %+v", payload.Hops)
	}
	if payload.Session.HiddenMoverMoveCount != 2 {
		t.Fatalf("expected hidden mover move count 2, got %d", payload.Session.HiddenMoverMoveCount)
	}

	rec = do(t, router, http.MethodPost, "/sessions/game-1/double-moves",
		`{"userId":2,"first":{"target":2},"second":{"target":1}}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for a tracker double move, got %d", rec.Code)
	}
}

func TestHandleReads(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/sessions/game-1/legal-moves?userId=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var legal legalMovesResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &legal); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if legal.Moves.From != 1 || len(legal.Moves.Taxi) != 1 || legal.Moves.Taxi[0] != 2 {
		t.Fatalf("unexpected legal moves %+v", legal.Moves)
	}

	if rec := do(t, router, http.MethodGet, "/sessions/game-1/legal-moves", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without userId, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/sessions/game-1/legal-moves?userId=2", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 off turn, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/sessions/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}

	do(t, router, http.MethodPost, "/sessions/game-1/moves", `{"userId":1,"target":2}`)
	rec = do(t, router, http.MethodGet, "/sessions/game-1/moves?userId=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var log moveLogResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &log); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(log.Moves) != 1 || log.Moves[0].Fare != domain.TierTaxi.Fare() {
		t.Fatalf("unexpected move log %+v", log.Moves)
	}

	rec = do(t, router, http.MethodGet, "/sessions/game-1?userId=1", "")
	var view sessionView
	if err := sonic.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if view.Players[0].Node != 2 || view.Players[0].Balance != 1000-domain.TierTaxi.Fare() {
		t.Fatalf("unexpected hidden mover view %+v", view.Players[0])
	}
}

func decodeSessionView(t *testing.T, rec *httptest.ResponseRecorder) sessionView {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view sessionView
	if err := sonic.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return view
}

func decodeMoveLog(t *testing.T, rec *httptest.ResponseRecorder) []moveLogItem {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var log moveLogResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &log); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return log.Moves
}

func TestHandleReads_HiddenMoverStaysHidden(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/sessions/game-1/double-moves",
		`{"userId":1,"first":{"target":2},"second":{"target":3}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("hidden mover double move failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/sessions/game-1/moves", `{"userId":2,"target":2,"transport":"bus"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("tracker move failed: %d %s", rec.Code, rec.Body.String())
	}
	var moved moveResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &moved); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if moved.Session.Players[0].Node != 0 {
		t.Fatalf("tracker move response exposed the hidden mover: %+v", moved.Session.Players[0])
	}
	if moved.Session.Players[1].Node != 2 {
		t.Fatalf("expected tracker at 2, got %+v", moved.Session.Players[1])
	}
	if strings.Contains(rec.Body.String(), `"node":3`) {
		t.Fatalf("hidden mover node leaked in %s", rec.Body.String())
	}

	for _, target := range []string{"/sessions/game-1", "/sessions/game-1?userId=2"} {
		view := decodeSessionView(t, do(t, router, http.MethodGet, target, ""))
		if view.Players[0].Node != 0 || view.Players[1].Node != 2 {
			t.Fatalf("%s: unexpected positions %+v", target, view.Players)
		}
		if view.HiddenMoverMoveCount != 2 {
			t.Fatalf("%s: expected move count 2, got %d", target, view.HiddenMoverMoveCount)
		}
	}
	if view := decodeSessionView(t, do(t, router, http.MethodGet, "/sessions/game-1?userId=1", "")); view.Players[0].Node != 3 {
		t.Fatalf("hidden mover should see its own node, got %+v", view.Players[0])
	}

	for _, target := range []string{"/sessions/game-1/moves", "/sessions/game-1/moves?userId=2"} {
		moves := decodeMoveLog(t, do(t, router, http.MethodGet, target, ""))
		if len(moves) != 1 || moves[0].UserID != 2 {
			t.Fatalf("%s: expected only the tracker's move, got %+v", target, moves)
		}
	}
	if moves := decodeMoveLog(t, do(t, router, http.MethodGet, "/sessions/game-1/moves?userId=1", "")); len(moves) != 3 {
		t.Fatalf("hidden mover should see the full log, got %+v", moves)
	}

	if rec := do(t, router, http.MethodGet, "/sessions/game-1?userId=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed userId, got %d", rec.Code)
	}
	if rec := do(t, router, http.MethodGet, "/sessions/nope/moves?userId=1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", rec.Code)
	}
}

type probeFunc func(ctx context.Context) error

func (f probeFunc) Probe(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	healthy := NewRouter(zerolog.Nop(), RouterDependencies{
		Health: HealthChecks{probeFunc(func(context.Context) error { return nil })},
	})
	if rec := do(t, healthy, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	degraded := NewRouter(zerolog.Nop(), RouterDependencies{
		Health: HealthChecks{
			probeFunc(func(context.Context) error { return nil }),
			probeFunc(func(context.Context) error { return errors.New("redis: connection refused") }),
		},
	})
	rec := do(t, degraded, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Fatalf("expected probe error in body, got %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(zerolog.Nop(), RouterDependencies{AllowedOrigins: SplitOrigins(" https://play.example , ")})

	req := httptest.NewRequest(http.MethodOptions, "/sessions/game-1/moves", nil)
	req.Header.Set("Origin", "https://play.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://play.example" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}
