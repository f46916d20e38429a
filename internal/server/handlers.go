package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/vanshika/pursuit/backend/internal/domain"
	"github.com/vanshika/pursuit/backend/internal/game"
	"github.com/vanshika/pursuit/backend/internal/service"
)

var strictJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  zerolog.Logger
	service *service.GameService
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger zerolog.Logger, svc *service.GameService) *APIHandlers {
	return &APIHandlers{
		logger:  logger.With().Str("component", "api").Logger(),
		service: svc,
	}
}

func (h *APIHandlers) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var payload moveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	hop, err := payload.hop()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.service.ApplyMove(r.Context(), service.MoveRequest{
		SessionID: sessionID,
		UserID:    payload.UserID,
		Target:    hop.Target,
		Tier:      hop.Tier,
	})
	h.respondOutcome(w, sessionID, payload.UserID, outcome, err)
}

func (h *APIHandlers) handleDoubleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var payload doubleMoveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.UserID == 0 {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	first, err := payload.First.hop()
	if err != nil {
		writeError(w, http.StatusBadRequest, "first: "+err.Error())
		return
	}
	second, err := payload.Second.hop()
	if err != nil {
		writeError(w, http.StatusBadRequest, "second: "+err.Error())
		return
	}

	outcome, err := h.service.ApplyDoubleMove(r.Context(), service.DoubleMoveRequest{
		SessionID:  sessionID,
		UserID:     payload.UserID,
		First:      first.Target,
		FirstTier:  first.Tier,
		Second:     second.Target,
		SecondTier: second.Tier,
	})
	h.respondOutcome(w, sessionID, payload.UserID, outcome, err)
}

func (h *APIHandlers) handleLegalMoves(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	moves, err := h.service.LegalMoves(r.Context(), sessionID, userID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	respondJSON(w, http.StatusOK, legalMovesResponse{
		SessionID: sessionID,
		UserID:    userID,
		Moves:     moves,
	})
}

func (h *APIHandlers) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	viewerID, err := viewerFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(sess, viewerID))
}

func (h *APIHandlers) handleMoveLog(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	viewerID, err := viewerFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := h.service.Session(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}
	entries, err := h.service.MoveLog(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, sessionID, err)
		return
	}

	var hiddenID int64
	if hidden, ok := sess.HiddenMover(); ok && !revealsHiddenMover(sess, viewerID) {
		hiddenID = hidden.UserID
	}
	response := moveLogResponse{SessionID: sessionID, Moves: []moveLogItem{}}
	for _, entry := range entries {
		if hiddenID != 0 && entry.UserID == hiddenID {
			continue
		}
		response.Moves = append(response.Moves, moveLogItem{
			ID:        entry.ID,
			UserID:    entry.UserID,
			FromNode:  entry.FromNode,
			ToNode:    entry.ToNode,
			Transport: entry.Tier.String(),
			Fare:      entry.Fare,
			Sequence:  entry.Sequence,
			Timestamp: formatTime(entry.Timestamp),
		})
	}
	respondJSON(w, http.StatusOK, response)
}

// respondOutcome writes a committed move, or the rejection with the current state. An
// elimination is both: the state changed and the caller is told why. The state is shown
// as the actor sees it.
func (h *APIHandlers) respondOutcome(w http.ResponseWriter, sessionID string, actorID int64, outcome service.MoveOutcome, err error) {
	if err != nil && !errors.Is(err, game.ErrEliminatedForInsufficientFunds) {
		h.writeServiceError(w, sessionID, err)
		return
	}

	response := moveResponse{
		Session:    newSessionView(outcome.Session, actorID),
		Hops:       []hopView{},
		Eliminated: outcome.Eliminated,
		Outcome:    string(outcome.Outcome),
		Rewards:    outcome.Rewards,
	}
	for _, hop := range outcome.Hops {
		if hop.UserID != actorID && !revealsHiddenMover(outcome.Session, actorID) {
			continue
		}
		response.Hops = append(response.Hops, hopView{
			UserID:    hop.UserID,
			From:      hop.From,
			To:        hop.To,
			Transport: hop.Tier.String(),
			Fare:      hop.Fare,
		})
	}
	if response.Eliminated == nil {
		response.Eliminated = []int64{}
	}

	if err != nil {
		response.Reason = game.Code(err)
		response.Error = err.Error()
		respondJSON(w, statusFor(err), response)
		return
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) writeServiceError(w http.ResponseWriter, sessionID string, err error) {
	status := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("request failed")
	case game.IsRejection(err):
		h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("request rejected")
	}
	respondJSON(w, status, errorResponse{
		Error:  err.Error(),
		Reason: game.Code(err),
	})
}

// statusFor maps engine and service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrNotYourTurn),
		errors.Is(err, game.ErrSessionClosed),
		errors.Is(err, game.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, game.ErrIllegalDestination),
		errors.Is(err, game.ErrWrongTransportForEdge),
		errors.Is(err, game.ErrNodeOccupiedByTracker),
		errors.Is(err, game.ErrNotHiddenMover):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrInsufficientFundsForFare),
		errors.Is(err, game.ErrInsufficientFundsForDoubleMove),
		errors.Is(err, game.ErrEliminatedForInsufficientFunds):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

type hopRequest struct {
	Target    int    `json:"target"`
	Transport string `json:"transport,omitempty"`
}

type parsedHop struct {
	Target int
	Tier   domain.Tier
}

func (req hopRequest) hop() (parsedHop, error) {
	if req.Target <= 0 {
		return parsedHop{}, errors.New("target must be a positive node id")
	}
	if req.Transport == "" {
		return parsedHop{Target: req.Target}, nil
	}
	tier, err := domain.ParseTier(req.Transport)
	if err != nil {
		return parsedHop{}, err
	}
	return parsedHop{Target: req.Target, Tier: tier}, nil
}

type moveRequest struct {
	UserID    int64  `json:"userId"`
	Target    int    `json:"target"`
	Transport string `json:"transport,omitempty"`
}

func (req moveRequest) hop() (parsedHop, error) {
	return hopRequest{Target: req.Target, Transport: req.Transport}.hop()
}

type doubleMoveRequest struct {
	UserID int64      `json:"userId"`
	First  hopRequest `json:"first"`
	Second hopRequest `json:"second"`
}

type playerView struct {
	UserID     int64  `json:"userId"`
	TeamID     int64  `json:"teamId"`
	TurnOrder  int    `json:"turnOrder"`
	Role       string `json:"role"`
	Balance    int    `json:"balance"`
	Eliminated bool   `json:"eliminated"`
	Node       int    `json:"node,omitempty"`
}

type sessionView struct {
	SessionID            string        `json:"sessionId"`
	Version              int64         `json:"version"`
	TurnUserID           int64         `json:"turnUserId"`
	HiddenMoverMoveCount int           `json:"hiddenMoverMoveCount"`
	Closed               bool          `json:"closed"`
	Outcome              string        `json:"outcome,omitempty"`
	Rewards              map[int64]int `json:"rewards,omitempty"`
	Players              []playerView  `json:"players"`
	UpdatedAt            string        `json:"updatedAt,omitempty"`
}

// revealsHiddenMover reports whether viewerID may see where the hidden mover is. Only the
// hidden mover does while the session is open; a viewer of 0 is a spectator.
func revealsHiddenMover(s domain.Session, viewerID int64) bool {
	if s.Closed {
		return true
	}
	hidden, ok := s.HiddenMover()
	return !ok || hidden.UserID == viewerID
}

// newSessionView renders s for viewerID, leaving out the hidden mover's node unless
// revealsHiddenMover allows it.
func newSessionView(s domain.Session, viewerID int64) sessionView {
	reveal := revealsHiddenMover(s, viewerID)
	view := sessionView{
		SessionID:            s.ID,
		Version:              s.Version,
		TurnUserID:           s.TurnUserID,
		HiddenMoverMoveCount: s.HiddenMoverMoveCount,
		Closed:               s.Closed,
		Outcome:              string(s.Outcome),
		Players:              make([]playerView, 0, len(s.Players)),
		UpdatedAt:            formatTime(s.UpdatedAt),
	}
	if len(s.Rewards) > 0 {
		view.Rewards = s.Rewards
	}
	for _, p := range s.Players {
		pv := playerView{
			UserID:     p.UserID,
			TeamID:     p.TeamID,
			TurnOrder:  p.TurnOrder,
			Role:       string(p.Role),
			Balance:    p.Balance,
			Eliminated: p.Eliminated,
		}
		if reveal || p.Role != domain.RoleHiddenMover {
			pv.Node = s.Positions[p.UserID]
		}
		view.Players = append(view.Players, pv)
	}
	return view
}

type hopView struct {
	UserID    int64  `json:"userId"`
	From      int    `json:"fromNode"`
	To        int    `json:"toNode"`
	Transport string `json:"transport"`
	Fare      int    `json:"fare"`
}

type moveResponse struct {
	Session    sessionView   `json:"session"`
	Hops       []hopView     `json:"hops"`
	Eliminated []int64       `json:"eliminated"`
	Outcome    string        `json:"outcome,omitempty"`
	Rewards    map[int64]int `json:"rewards,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type legalMovesResponse struct {
	SessionID string            `json:"sessionId"`
	UserID    int64             `json:"userId"`
	Moves     domain.LegalMoves `json:"moves"`
}

type moveLogItem struct {
	ID        string `json:"id"`
	UserID    int64  `json:"userId"`
	FromNode  int    `json:"fromNode"`
	ToNode    int    `json:"toNode"`
	Transport string `json:"transport"`
	Fare      int    `json:"fare"`
	Sequence  int    `json:"sequence"`
	Timestamp string `json:"timestamp"`
}

type moveLogResponse struct {
	SessionID string        `json:"sessionId"`
	Moves     []moveLogItem `json:"moves"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// viewerFromQuery reads the optional userId query parameter; absent means a spectator.
func viewerFromQuery(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("userId")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("userId query parameter must be a positive integer")
	}
	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	if err := strictJSON.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: strings.TrimSpace(msg)})
}
