package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/cenderhq/cender/internal/api"
	"github.com/cenderhq/cender/internal/config"
	"github.com/cenderhq/cender/internal/store"
	"github.com/cenderhq/cender/migrations"
	"github.com/cenderhq/cender/pkg/blobstore"
	"github.com/cenderhq/cender/pkg/db"
	"github.com/cenderhq/cender/pkg/deliverylog"
	"github.com/cenderhq/cender/pkg/dispatch"
	"github.com/cenderhq/cender/pkg/gender"
	"github.com/cenderhq/cender/pkg/gmail"
	"github.com/cenderhq/cender/pkg/logger"
	"github.com/cenderhq/cender/pkg/message"
	"github.com/cenderhq/cender/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("service exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.NewWithSentry(cfg.Sentry, cfg.Log, api.RequestIDLogExtractor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}

	if err := db.Migrate(ctx, pool, migrations.FS, cfg.DB.MigrationsTable, log); err != nil {
		return err
	}

	redisClient, err := redis.Open(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	blobs, err := openBlobstore(cfg.Blob)
	if err != nil {
		return err
	}

	detector, err := gender.NewHeuristicDetector()
	if err != nil {
		return err
	}

	credentials := gmail.NewCredentialStore(blobs)
	manager := gmail.NewManager(credentials, cfg.Gmail, gmail.WithLogger(log))

	dlog := deliverylog.NewRepo(pool)
	directory := store.New(pool)

	orchestrator := dispatch.New(
		dlog,
		directory,
		newAuthenticator(manager, cfg.Resend, log),
		&resumeSource{credentials: credentials},
		message.NewBuilder(detector),
		dispatch.WithLogger(log),
		dispatch.WithDryRunDelay(cfg.Dispatch.DryRunDelay),
	)

	handler := api.New(
		orchestrator,
		redis.NewRunLock(redisClient, cfg.Dispatch.RunLockTTL),
		manager,
		credentials,
		dlog,
		api.WithLogger(log),
		api.WithReadinessCheck("postgres", db.Healthcheck(pool)),
		api.WithReadinessCheck("redis", redis.Healthcheck(redisClient)),
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	scheduler, err := startRetentionSweep(ctx, cfg.Dispatch, dlog, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(gctx, "http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		if scheduler != nil {
			scheduler.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			server.Shutdown(shutdownCtx),
			redis.Shutdown(redisClient)(shutdownCtx),
			db.Shutdown(pool)(shutdownCtx),
		)
	})

	return g.Wait()
}

// openBlobstore selects the blob backend by driver name.
func openBlobstore(cfg config.Blob) (blobstore.Store, error) {
	switch cfg.Driver {
	case "local":
		return blobstore.NewLocal(cfg.Local)
	case "s3":
		return blobstore.NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blobstore driver %q", cfg.Driver)
	}
}

// startRetentionSweep schedules the delivery log retention purge. Returns
// nil when retention is disabled.
func startRetentionSweep(ctx context.Context, cfg config.Dispatch, dlog *deliverylog.Repo, log *slog.Logger) (*cron.Cron, error) {
	if cfg.LogRetention <= 0 {
		return nil, nil
	}

	scheduler := cron.New()
	_, err := scheduler.AddFunc(cfg.RetentionSchedule, func() {
		cutoff := time.Now().UTC().Add(-cfg.LogRetention)
		deleted, err := dlog.PurgeExpired(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "retention sweep failed", slog.String("error", err.Error()))
			return
		}
		if deleted > 0 {
			log.InfoContext(ctx, "retention sweep removed records", slog.Int64("deleted", deleted))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cfg.RetentionSchedule, err)
	}

	scheduler.Start()
	return scheduler, nil
}
