package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/config"
	"github.com/vanshika/pursuit/backend/internal/graph"
	"github.com/vanshika/pursuit/backend/internal/logging"
	"github.com/vanshika/pursuit/backend/internal/repository"
	"github.com/vanshika/pursuit/backend/internal/service"
)

func main() {
	var (
		boardPath      = flag.String("board", "", "YAML board to load (defaults to BOARD_FILE)")
		workers        = flag.Int("workers", 4, "Number of concurrent workers for node upserts")
		sessionID      = flag.String("session", "", "Also form an open session with this id")
		players        = flag.Int("players", 4, "Players in the formed session; the first is the hidden mover")
		hiddenBalance  = flag.Int("hidden-balance", service.DefaultBalances.HiddenMover, "Starting balance of the hidden mover")
		trackerBalance = flag.Int("tracker-balance", service.DefaultBalances.Tracker, "Starting balance of each tracker")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With().Str("component", "seed").Logger()

	path := *boardPath
	if path == "" {
		path = cfg.Board.Path
	}
	spec, err := board.LoadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("failed to load board")
		os.Exit(1)
	}
	if len(spec.Nodes) == 0 {
		logger.Error().Str("path", path).Msg("board has no nodes")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	graphClient, err := buildGraphClient(ctx, logger, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create graph client")
		os.Exit(1)
	}
	defer func() {
		if err := graphClient.Close(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("closing graph client failed")
		}
	}()

	repo := repository.New(graphClient)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error().Err(err).Msg("schema setup failed")
		os.Exit(1)
	}

	start := time.Now()
	logger.Info().Int("nodes", len(spec.Nodes)).Int("workers", *workers).Str("board", spec.Name).Msg("seeding board")
	if err := service.NewBoardSeeder(repo, *workers).SeedBoard(ctx, spec); err != nil {
		var taskErr *service.TaskError
		if errors.As(err, &taskErr) {
			logger.Error().Int("failed", len(taskErr.Errors)).Err(err).Msg("board seeding incomplete")
		} else {
			logger.Error().Err(err).Msg("board seeding failed")
		}
		os.Exit(1)
	}
	logger.Info().Str("duration", time.Since(start).String()).Int("nodes", len(spec.Nodes)).Msg("board seeded")

	if *sessionID == "" {
		return
	}
	balances := service.Balances{HiddenMover: *hiddenBalance, Tracker: *trackerBalance}
	sess, err := service.NewSession(*sessionID, service.DemoSeats(*players), balances, spec.Graph(), time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("invalid session")
		os.Exit(1)
	}
	if err := repo.CreateSession(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrExists) {
			logger.Warn().Str("session_id", *sessionID).Msg("session already exists, left untouched")
			return
		}
		logger.Error().Err(err).Msg("failed to create session")
		os.Exit(1)
	}
	logger.Info().Str("session_id", sess.ID).Int("players", len(sess.Players)).Msg("session created")
}

func buildGraphClient(ctx context.Context, logger zerolog.Logger, cfg config.Config) (graph.Client, error) {
	if cfg.Graph.URI == "" {
		return nil, fmt.Errorf("GRAPH_URI is required for seeding: %w", graph.ErrMissingURI)
	}
	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
		TxTimeout:      cfg.Graph.TxTimeout,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info().Str("uri", cfg.Graph.URI).Str("database", cfg.Graph.Database).Msg("connected to graph")
	return client, nil
}
