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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vanshika/pursuit/backend/internal/board"
	"github.com/vanshika/pursuit/backend/internal/config"
	"github.com/vanshika/pursuit/backend/internal/graph"
	"github.com/vanshika/pursuit/backend/internal/lock"
	"github.com/vanshika/pursuit/backend/internal/logging"
	"github.com/vanshika/pursuit/backend/internal/repository"
	"github.com/vanshika/pursuit/backend/internal/server"
	"github.com/vanshika/pursuit/backend/internal/service"
)

func main() {
	var (
		demoSession = flag.String("demo-session", "demo", "session id formed at startup when running on the in-memory store")
		demoPlayers = flag.Int("demo-players", 0, "players in the demo session; 0 skips it")
	)
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	var (
		store       service.Store
		graphClient graph.Client
	)
	if cfg.Graph.URI != "" {
		graphClient, err = buildGraphClient(ctx, logger, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("failed to create graph client")
			os.Exit(1)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("closing graph client failed")
			}
		}()
		store = repository.New(graphClient)
	} else {
		memory, err := buildMemoryStore(ctx, logger, cfg, *demoSession, *demoPlayers)
		if err != nil {
			logger.Error().Err(err).Str("board", cfg.Board.Path).Msg("failed to prepare in-memory store")
			os.Exit(1)
		}
		store = memory
	}

	var (
		locker      lock.Locker
		redisClient *redis.Client
	)
	if cfg.Redis.URL != "" {
		redisClient, err = lock.OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("closing redis client failed")
			}
		}()
		locker = lock.NewRedisLocker(redisClient, cfg.Redis.LockTTL, cfg.Redis.LockPollInterval)
		logger.Info().Msg("session locks shared through redis")
	} else {
		locker = lock.NewLocalLocker()
		logger.Warn().Msg("REDIS_URL not set, session locks are local to this process")
	}

	gameService := service.NewGameService(store, locker, logger, service.Options{
		StoreTimeout: cfg.Engine.StoreTimeout,
		MaxRetries:   cfg.Engine.MaxRetries,
	})
	if _, err := gameService.Board(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to load board")
		os.Exit(1)
	}

	health := server.HealthChecks{server.GraphHealthService{Client: graphClient}}
	if redisClient != nil {
		health = append(health, server.RedisHealthService{Client: redisClient})
	}

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           health,
		API:              server.NewAPIHandlers(logger, gameService),
		AllowedOrigins:   server.SplitOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func buildGraphClient(ctx context.Context, logger zerolog.Logger, cfg config.Config) (graph.Client, error) {
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
	logger.Info().Str("uri", cfg.Graph.URI).Str("database", cfg.Graph.Database).Msg("using graph store")
	return client, nil
}

// buildMemoryStore serves the YAML board without a database, optionally with one open session.
func buildMemoryStore(ctx context.Context, logger zerolog.Logger, cfg config.Config, sessionID string, players int) (*repository.MemoryStore, error) {
	spec, err := board.LoadFile(cfg.Board.Path)
	if err != nil {
		return nil, err
	}
	store := repository.NewMemoryStore(spec.Records())
	logger.Warn().Str("board", cfg.Board.Path).Int("nodes", len(spec.Nodes)).Msg("GRAPH_URI not set, state is kept in memory")

	if players <= 0 {
		return store, nil
	}
	sess, err := service.NewSession(sessionID, service.DemoSeats(players), service.DefaultBalances, spec.Graph(), time.Now())
	if err != nil {
		return nil, fmt.Errorf("form demo session: %w", err)
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	logger.Info().Str("session_id", sessionID).Int("players", players).Msg("demo session ready")
	return store, nil
}
