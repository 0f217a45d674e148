package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clueboard/server/internal/clue"
	"github.com/clueboard/server/internal/config"
	"github.com/clueboard/server/internal/db/repository"
	"github.com/clueboard/server/internal/judge"
	"github.com/clueboard/server/internal/logging"
	"github.com/clueboard/server/internal/server"
)

// Application aggregates shared infrastructure (DB, cache, judge, HTTP).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool   *pgxpool.Pool
	redis  *redis.Client
	gemini *judge.Gemini
	http   *http.Server
}

// clueStore adapts the pgx-backed repository to the service's session
// contract.
type clueStore struct {
	repo *repository.Clues
}

func (s clueStore) Session(ctx context.Context) (clue.StoreSession, error) {
	return s.repo.Session(ctx)
}

// New bootstraps config, logger, Postgres, the evaluator client, and the
// HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	app := &Application{cfg: cfg, logger: logger, pool: pool}

	// The evaluator client is built once here and shared read-only across
	// requests; construction is the expensive part.
	var evaluator judge.Judge
	switch cfg.Judge.Provider {
	case "gemini":
		gemini, err := judge.NewGemini(ctx, judge.GeminiConfig{
			APIKey:  cfg.Judge.APIKey,
			Model:   cfg.Judge.Model,
			Timeout: cfg.Judge.Timeout,
		}, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("build gemini judge: %w", err)
		}
		app.gemini = gemini
		evaluator = gemini
	case "openrouter":
		evaluator = judge.NewOpenRouter(judge.OpenRouterConfig{
			BaseURL: cfg.Judge.BaseURL,
			APIKey:  cfg.Judge.APIKey,
			Model:   cfg.Judge.Model,
			Timeout: cfg.Judge.Timeout,
		}, logger)
	default:
		pool.Close()
		return nil, fmt.Errorf("unknown judge provider %q", cfg.Judge.Provider)
	}

	var verdictCache clue.VerdictCache
	if cfg.Redis.Addr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		verdictCache = clue.NewJudgementCache(app.redis, cfg.Judge.CacheTTL)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("judgement cache enabled")
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; judgement cache disabled")
	}

	clues := repository.NewClues(pool)
	svc := clue.NewService(clueStore{repo: clues}, evaluator, clue.ServiceOptions{Cache: verdictCache}, logger)
	handlers := clue.NewHTTPHandlers(svc, logger)

	app.http = server.NewHTTPServer(cfg, logger, pool, handlers)
	return app, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.pool.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Error().Err(err).Msg("judge client shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
