package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixeledit/internal/api"
	"github.com/dunamismax/pixeledit/internal/config"
	"github.com/dunamismax/pixeledit/internal/pipeline"
	"github.com/dunamismax/pixeledit/internal/queue"
	"github.com/dunamismax/pixeledit/internal/ratelimit"
	"github.com/dunamismax/pixeledit/internal/storage"
	"github.com/dunamismax/pixeledit/internal/store"
	"github.com/dunamismax/pixeledit/internal/submit"
	"github.com/dunamismax/pixeledit/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.FromConfig("pixeledit-api", cfg.Telemetry), logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Fatalf("image runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	mode, err := pipeline.ParseProcessingMode(cfg.Editor.ProcessingMode)
	if err != nil {
		logger.Fatalf("invalid editor config: %v", err)
	}
	policy, err := pipeline.NewOriginPolicy(cfg.Editor.AppOrigin, mode)
	if err != nil {
		logger.Fatalf("invalid editor config: %v", err)
	}

	httpFetcher := pipeline.NewHTTPFetcher(policy, cfg.Editor.FetchTimeout)
	if mode == pipeline.ModeAlways {
		// Client-supplied URLs are fetched server-side in this mode.
		httpFetcher.RefusePrivateAddresses()
		logger.Printf("processing mode=always, refusing private source addresses")
	}
	fetcher := pipeline.SourceFetcher{HTTP: httpFetcher}
	if cfg.Editor.MediaRoot != "" {
		fetcher.Files = pipeline.LocalFileFetcher{Root: cfg.Editor.MediaRoot}
	}
	if cfg.Storage.Enabled {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint: cfg.Storage.Endpoint,
			Access:   cfg.Storage.AccessKey,
			Secret:   cfg.Storage.SecretKey,
			Bucket:   cfg.Storage.Bucket,
			UseSSL:   cfg.Storage.UseSSL,
		})
		if err != nil {
			logger.Fatalf("storage client setup failed: %v", err)
		}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = storageClient.CheckBucket(checkCtx)
		cancel()
		if err != nil {
			logger.Fatalf("storage check failed: %v", err)
		}
		fetcher.Objects = pipeline.ObjectStoreFetcher{Storage: storageClient, StripPrefix: cfg.Storage.StripPrefix}
		logger.Printf("reading relative sources from bucket=%s", storageClient.Bucket())
	}

	adapter, err := submit.NewAdapter(logger, submit.Config{
		BaseURL: cfg.Editor.SubmitBaseURL,
		Timeout: cfg.Editor.SubmitTimeout,
		Format:  cfg.Editor.OutputFormat,
		Quality: cfg.Editor.OutputQuality,
	}, policy, pipeline.NewProcessor(fetcher, pipeline.NewEncoder()))
	if err != nil {
		logger.Fatalf("submission adapter setup failed: %v", err)
	}

	sessions := store.NewMemorySessionStore(cfg.Editor.SessionTTL)
	stopSweeper := make(chan struct{})
	defer close(stopSweeper)
	go sessions.RunSweeper(cfg.Editor.SweepInterval, stopSweeper, func(removed int) {
		logger.Printf("expired idle sessions removed=%d remaining=%d", removed, sessions.Len())
	})

	var editLogs store.EditLogStore = store.NewMemoryEditLogStore()
	if cfg.Database.DSN != "" {
		pg, err := store.NewPostgresEditLogStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("postgres setup failed: %v", err)
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Printf("postgres close error: %v", err)
			}
		}()
		editLogs = pg
	}

	opts := api.Options{
		Sessions:              sessions,
		EditLogs:              editLogs,
		Submitter:             adapter,
		RateLimitUserIDHeader: cfg.API.RateLimitUserIDHeader,
		Tracer:                otel.Tracer("pixeledit/api"),
	}

	if cfg.Queue.Enabled {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}()
		opts.Notifier = queueClient
	}

	if cfg.API.RateLimitEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Printf("redis client close error: %v", err)
			}
		}()
		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.API.RateLimitCapacity, cfg.API.RateLimitWindow, "")
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		opts.RateLimiter = limiter
	}

	app, err := api.NewServer(logger, opts)
	if err != nil {
		logger.Fatalf("api setup failed: %v", err)
	}

	// Saves can run for the full submit timeout, so writes get extra room.
	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Editor.SubmitTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s mode=%s submit=%s", cfg.API.Addr, policy.Mode(), cfg.Editor.SubmitBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
