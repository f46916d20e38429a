package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/domain"
	"github.com/vanshika/pursuit/backend/internal/game"
	"github.com/vanshika/pursuit/backend/internal/lock"
	"github.com/vanshika/pursuit/backend/internal/repository"
)

var (
	// ErrStoreUnavailable wraps failures of the store on the critical path. Callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the persistence contract required by the game service.
type Store interface {
	LoadBoard(ctx context.Context) ([]board.NodeRecord, error)
	LoadSession(ctx context.Context, sessionID string) (domain.Session, error)
	SaveSession(ctx context.Context, s domain.Session, expectedVersion int64) error
	AppendMoveLog(ctx context.Context, sessionID string, entry domain.MoveLogEntry) error
	MoveLog(ctx context.Context, sessionID string) ([]domain.MoveLogEntry, error)
	CreditTeamReward(ctx context.Context, teamID int64, delta int) error
	CloseSession(ctx context.Context, sessionID string) error
}

// Options tunes the service's interaction with the store.
type Options struct {
	// StoreTimeout bounds every store call and the wait for the session lock.
	StoreTimeout time.Duration
	// MaxRetries is how many times a version conflict is recomputed before giving up.
	MaxRetries int
}

const (
	defaultStoreTimeout = 2 * time.Second
	defaultMaxRetries   = 3
)

// MoveRequest asks to move UserID to Target. A zero Tier picks the cheapest edge.
type MoveRequest struct {
	SessionID string
	UserID    int64
	Target    int
	Tier      domain.Tier
}

// DoubleMoveRequest asks the hidden mover to make two hops in one turn.
type DoubleMoveRequest struct {
	SessionID  string
	UserID     int64
	First      int
	FirstTier  domain.Tier
	Second     int
	SecondTier domain.Tier
}

// MoveOutcome is what a committed request produced.
type MoveOutcome struct {
	Session    domain.Session
	Hops       []domain.Hop
	Eliminated []int64
	Outcome    domain.Outcome
	Rewards    map[int64]int
}

// GameService loads sessions, runs the rules engine against them and commits the result.
type GameService struct {
	store  Store
	locker lock.Locker
	logger zerolog.Logger
	opts   Options
	nowFn  func() time.Time
	newID  func() string

	boardMu sync.Mutex
	board   *board.Graph
}

// NewGameService constructs a GameService. A nil locker serializes within this process only.
func NewGameService(store Store, locker lock.Locker, logger zerolog.Logger, opts Options) *GameService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = defaultStoreTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	return &GameService{
		store:  store,
		locker: locker,
		logger: logger.With().Str("component", "game_service").Logger(),
		opts:   opts,
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *GameService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Board returns the transport graph, loading it from the store on first use.
// A failed load is not cached.
func (s *GameService) Board(ctx context.Context) (*board.Graph, error) {
	s.boardMu.Lock()
	defer s.boardMu.Unlock()
	if s.board != nil {
		return s.board, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	records, err := s.store.LoadBoard(callCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	g, malformed := board.Build(records)
	if len(malformed) > 0 {
		s.logger.Warn().Ints("nodes", malformed).Msg("board nodes with malformed adjacency have no neighbors")
	}
	s.logger.Info().Int("nodes", g.Len()).Msg("board loaded")
	s.board = g
	return g, nil
}

// ApplyMove validates and commits a single hop.
func (s *GameService) ApplyMove(ctx context.Context, req MoveRequest) (MoveOutcome, error) {
	return s.execute(ctx, req.SessionID, req.UserID, func(sess *domain.Session, g *board.Graph) (game.Result, error) {
		return game.ApplyMove(sess, g, req.UserID, req.Target, req.Tier)
	})
}

// ApplyDoubleMove validates and commits the hidden mover's two-hop move.
func (s *GameService) ApplyDoubleMove(ctx context.Context, req DoubleMoveRequest) (MoveOutcome, error) {
	move := game.DoubleMove{
		First:      req.First,
		FirstTier:  req.FirstTier,
		Second:     req.Second,
		SecondTier: req.SecondTier,
	}
	return s.execute(ctx, req.SessionID, req.UserID, func(sess *domain.Session, g *board.Graph) (game.Result, error) {
		return game.ApplyDoubleMove(sess, g, req.UserID, move)
	})
}

// LegalMoves lists the caller's options; it is only answered on the caller's turn.
func (s *GameService) LegalMoves(ctx context.Context, sessionID string, userID int64) (domain.LegalMoves, error) {
	g, err := s.Board(ctx)
	if err != nil {
		return domain.LegalMoves{}, err
	}
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.LegalMoves{}, err
	}
	return game.LegalMoves(&sess, g, userID)
}

// Session returns the latest committed snapshot.
func (s *GameService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.load(ctx, sessionID)
}

// MoveLog returns the recorded hops of a session.
func (s *GameService) MoveLog(ctx context.Context, sessionID string) ([]domain.MoveLogEntry, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	entries, err := s.store.MoveLog(callCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return entries, nil
}

type applyFunc func(sess *domain.Session, g *board.Graph) (game.Result, error)

func (s *GameService) execute(ctx context.Context, sessionID string, userID int64, apply applyFunc) (MoveOutcome, error) {
	g, err := s.Board(ctx)
	if err != nil {
		return MoveOutcome{}, err
	}

	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return MoveOutcome{}, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.StoreTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("release session lock")
		}
	}()

	log := s.logger.With().Str("session_id", sessionID).Int64("user_id", userID).Logger()
	for attempt := 0; ; attempt++ {
		snapshot, err := s.load(ctx, sessionID)
		if err != nil {
			return MoveOutcome{}, err
		}

		next := snapshot.Clone()
		res, applyErr := apply(&next, g)
		if applyErr != nil && !errors.Is(applyErr, game.ErrEliminatedForInsufficientFunds) {
			if game.IsRejection(applyErr) {
				log.Debug().Str("reason", game.Code(applyErr)).Msg("move rejected")
			} else {
				log.Error().Err(applyErr).Msg("session failed integrity checks")
			}
			return MoveOutcome{Session: snapshot}, applyErr
		}

		next.Version = snapshot.Version + 1
		next.UpdatedAt = s.nowFn().UTC()
		err = s.save(ctx, next, snapshot.Version)
		if errors.Is(err, repository.ErrConflict) {
			if attempt >= s.opts.MaxRetries {
				log.Warn().Int("attempts", attempt+1).Msg("giving up after repeated version conflicts")
				return MoveOutcome{Session: snapshot}, game.Reject(game.ErrConflict, "session %s changed %d times during the move", sessionID, attempt+1)
			}
			log.Debug().Int("attempt", attempt+1).Msg("version conflict, recomputing")
			continue
		}
		if err != nil {
			return MoveOutcome{Session: snapshot}, err
		}

		log.Info().
			Int64("version", next.Version).
			Int("hops", len(res.Hops)).
			Ints64("eliminated", res.Eliminated).
			Str("outcome", string(res.Outcome)).
			Msg("move committed")

		s.recordAftermath(ctx, next, res)
		return MoveOutcome{
			Session:    next,
			Hops:       res.Hops,
			Eliminated: res.Eliminated,
			Outcome:    res.Outcome,
			Rewards:    res.Rewards,
		}, applyErr
	}
}

func (s *GameService) acquire(ctx context.Context, sessionID string) (lock.Release, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, sessionID)
	switch {
	case err == nil:
		return release, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return nil, game.Reject(game.ErrConflict, "session %s is busy", sessionID)
	default:
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (s *GameService) load(ctx context.Context, sessionID string) (domain.Session, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	sess, err := s.store.LoadSession(callCtx, sessionID)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, repository.ErrNotFound):
		return domain.Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	default:
		return domain.Session{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}

func (s *GameService) save(ctx context.Context, sess domain.Session, expectedVersion int64) error {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	err := s.store.SaveSession(callCtx, sess, expectedVersion)
	if err == nil || errors.Is(err, repository.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// recordAftermath performs the bookkeeping writes that follow a commit. Failures are
// logged and never change the committed outcome.
func (s *GameService) recordAftermath(ctx context.Context, sess domain.Session, res game.Result) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With().Str("session_id", sess.ID).Logger()

	for i, hop := range res.Hops {
		entry := domain.MoveLogEntry{
			ID:        s.newID(),
			SessionID: sess.ID,
			UserID:    hop.UserID,
			FromNode:  hop.From,
			ToNode:    hop.To,
			Tier:      hop.Tier,
			Fare:      hop.Fare,
			Sequence:  i + 1,
			Timestamp: sess.UpdatedAt,
		}
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return s.store.AppendMoveLog(ctx, sess.ID, entry)
		}); err != nil {
			log.Warn().Err(err).Str("move_id", entry.ID).Msg("append move log")
		}
	}

	if !res.Outcome.Terminal() {
		return
	}

	teams := make([]int64, 0, len(res.Rewards))
	for team := range res.Rewards {
		teams = append(teams, team)
	}
	slices.Sort(teams)
	for _, team := range teams {
		delta := res.Rewards[team]
		if delta == 0 {
			continue
		}
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return s.store.CreditTeamReward(ctx, team, delta)
		}); err != nil {
			log.Warn().Err(err).Int64("team_id", team).Int("delta", delta).Msg("credit team reward")
		}
	}
	if err := s.bounded(ctx, func(ctx context.Context) error {
		return s.store.CloseSession(ctx, sess.ID)
	}); err != nil {
		log.Warn().Err(err).Msg("close session")
	}
	log.Info().Str("outcome", string(res.Outcome)).Interface("rewards", res.Rewards).Msg("session finished")
}

func (s *GameService) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return fn(callCtx)
}
