package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adstudio/internal/adapter/repo"
	"adstudio/internal/infra"
	"adstudio/internal/providers/ai"
	"adstudio/internal/storage"
	"adstudio/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	generations := repo.NewGenerationRepository(pool)
	if err := generations.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("worker: schema migration failed")
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	adapter := ai.New(cfg, logger)
	logger.Info().Str("provider", adapter.Name()).Msg("worker: provider adapter configured")

	pipeline := worker.NewPipeline(worker.Options{
		Repo:         generations,
		Store:        store,
		Adapter:      adapter,
		Logger:       logger,
		ImageTimeout: cfg.ImageTimeout,
	})

	if err := run(ctx, pipeline, logger, cfg.WorkerPollInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// run polls for work on a timer. The timer makes the worker independently
// triggerable: even if every wake signal from the API is dropped, queued
// generations are still picked up within one poll interval.
func run(ctx context.Context, pipeline *worker.Pipeline, logger infra.Logger, pollInterval time.Duration) error {
	logger.Info().Dur("poll_interval", pollInterval).Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		outcome, err := pipeline.RunOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("worker: cycle failed")
			sleep(ctx, pollInterval)
			continue
		}
		if outcome.Status == worker.OutcomeNoWork {
			sleep(ctx, pollInterval)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// newObjectStore mirrors the API binary's storage selection so both
// processes write to the same place.
func newObjectStore(ctx context.Context, cfg *infra.Config) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
	}
	path := cfg.StoragePath
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return storage.NewFileStore(path, cfg.StorageBaseURL)
}
