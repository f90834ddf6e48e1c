package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jonmunkholm/csvtypeinfer/internal/config"
	"github.com/jonmunkholm/csvtypeinfer/internal/driver"
	"github.com/jonmunkholm/csvtypeinfer/internal/inference"
	"github.com/jonmunkholm/csvtypeinfer/internal/logging"
	"github.com/jonmunkholm/csvtypeinfer/internal/pgrepo"
	"github.com/jonmunkholm/csvtypeinfer/internal/repository"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars).
	if err := godotenv.Overload(); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded .env file (overwriting existing env vars)")
	}

	cfg := config.MustLoad()
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting csvtypeinfer worker", "config", cfg.String())

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to parse database URL: %v", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Lock.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	defer redisClient.Close()

	lock := pgrepo.NewRedisLock(redisClient, cfg.Lock.TTL)
	repo := pgrepo.New(pool, lock)
	if err := repo.EnsureTables(ctx); err != nil {
		log.Fatalf("failed to ensure tables: %v", err)
	}

	batched := driver.New(repo, driver.Config{
		ChunkSize:      cfg.Inference.ChunkSize,
		BackoffInitial: cfg.Inference.BackoffInitial,
		BackoffMax:     cfg.Inference.BackoffMax,
	})
	coordinator := driver.NewCoordinator(batched, cfg.Worker.MaxConcurrentDatasets)

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if err := pollAndRun(runCtx, repo, coordinator, cfg.Worker.MaxWaitTime); err != nil && runCtx.Err() == nil {
		log.Fatalf("worker exited: %v", err)
	}
}

// pollAndRun is the worker's top-level loop: enumerate every known dataset
// not yet Complete and fan them out through the Coordinator, then wait
// before polling again. The out-of-scope cluster task scheduler spec.md §1
// names would normally push (user, dataset) jobs directly; absent that,
// this process discovers work itself via EnumerateDatasets.
func pollAndRun(ctx context.Context, repo repository.Repository, coordinator *driver.Coordinator, wait time.Duration) error {
	for {
		entries, err := repo.EnumerateDatasets(ctx, "", 5)
		if err != nil {
			slog.Error("enumerate datasets failed", "error", err)
		} else {
			jobs := jobsFromEntries(entries)
			if len(jobs) > 0 {
				if err := coordinator.RunAll(ctx, jobs); err != nil {
					slog.Error("coordinator run failed", "error", err)
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func jobsFromEntries(entries []repository.DatasetEntry) []driver.Job {
	var jobs []driver.Job
	for _, e := range entries {
		if !e.IsDataset {
			continue
		}
		if e.SchemaData != nil && e.SchemaData.Status == inference.Complete {
			continue
		}
		jobs = append(jobs, driver.Job{Dataset: e.Name, ColumnTypes: e.ColumnTypes})
	}
	return jobs
}
