package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sql-console/internal/api"
	"sql-console/internal/config"
	"sql-console/internal/driver"
	"sql-console/internal/engine"
	"sql-console/internal/hub"
	"sql-console/internal/profile"
	"sql-console/internal/resultstore"
	"sql-console/internal/secret"
	"sql-console/internal/security"
	"sql-console/internal/snippet"
	"sql-console/internal/storage"
	"sql-console/internal/worker"
)

var version = "dev"

func main() {
	port := flag.String("port", "", "HTTP port (overrides SERVER_PORT)")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SQL Console %s\n", version)
		os.Exit(0)
	}

	_ = godotenv.Load()
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// 0. Load Config
	cfg := config.Load()
	if *port != "" {
		cfg.ServerPort = *port
	}
	slog.Info("Starting SQL Console", "env", cfg.AppEnv, "version", version)

	settings, err := config.LoadSettings(cfg.SettingsPath())
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}
	level.Set(settings.Current().SlogLevel())

	// 1. Initialize stores
	key, err := secret.LoadKey(cfg.SecretKey, cfg.KeyringService)
	if err != nil {
		slog.Error("Failed to load secret key", "error", err)
		os.Exit(1)
	}
	box, err := secret.NewBox(key)
	if err != nil {
		slog.Error("Invalid secret key", "error", err)
		os.Exit(1)
	}
	profiles := profile.NewStore(cfg.ProfilesPath(), box)
	snippets := snippet.NewStore(cfg.SnippetsPath())
	results := resultstore.NewMemory(settings.ResultTTL)

	// 2. Audit feed and engine
	h := hub.NewHub()
	eng := engine.New(driver.DefaultRegistry(), profiles, settings, results, engine.Options{
		Concurrency: int64(settings.Current().ConcurrentQueries),
		Observe: func(rec engine.Record) {
			if !settings.Current().AuditLoggingEnabled {
				return
			}
			h.Broadcast(hub.AuditEvent{
				Type:       "statement",
				DBID:       rec.ProfileID,
				DBType:     string(rec.Family),
				SQL:        rec.SQL,
				Status:     rec.Status,
				Kind:       string(rec.Kind),
				Rows:       rec.Rows,
				DurationMS: rec.Duration.Milliseconds(),
				At:         rec.At,
			})
		},
	})

	// 3. Export archive
	provider, err := newStorage(cfg)
	if err != nil {
		slog.Error("Failed to initialize export archive", "error", err)
		os.Exit(1)
	}
	var pool *worker.Pool
	if provider != nil {
		pool = worker.NewPool(2, 2, provider)
		pool.Start()
	}

	// 4. Background sweeps
	tasks := []worker.Task{{
		Name:     "result-sweep",
		Interval: cfg.SweepInterval,
		Run: func(ctx context.Context) error {
			if n := results.SweepExpired(time.Now(), settings.ResultTTL()); n > 0 {
				slog.Info("Expired results removed", "count", n)
			}
			return nil
		},
	}}
	if provider != nil {
		tasks = append(tasks, worker.Task{
			Name:     "archive-retention",
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				n, err := provider.Sweep(ctx, time.Now().Add(-cfg.ArchiveRetention))
				if n > 0 {
					slog.Info("Old archived exports removed", "count", n)
				}
				return err
			},
		})
	}
	janitor := worker.NewJanitor(tasks...)
	janitor.Start()

	// 5. Handlers and middleware
	sessionSecret, err := sessionKey(cfg.SessionSecret)
	if err != nil {
		slog.Error("Failed to create session secret", "error", err)
		os.Exit(1)
	}
	handler := &api.Handler{
		Engine:   eng,
		Results:  results,
		Profiles: profiles,
		Snippets: snippets,
		Settings: settings,
		Sessions: security.NewSessions(sessionSecret),
		Limiter:  security.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute),
		Lockout:  security.NewLockout(5 * time.Minute),
		Hub:      h,
		Archive:  pool,
		Storage:  provider,
		OnSettings: func(s config.Settings) {
			level.Set(s.SlogLevel())
		},
	}
	finalHandler := api.CORS(cfg.AllowedOrigins, cfg.AppEnv)(handler.Routes())

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Console listening", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	h.Close()
	janitor.Stop()
	if pool != nil {
		pool.Stop()
	}
}

func newStorage(cfg *config.Config) (storage.Provider, error) {
	switch cfg.StorageType {
	case "", "none":
		return nil, nil
	case "local":
		slog.Info("Archiving exports locally", "path", cfg.LocalStoragePath)
		return storage.NewLocalProvider(cfg.LocalStoragePath), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
		client, err := storage.NewS3Client(context.Background(), storage.S3Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("Archiving exports to S3", "bucket", cfg.S3Bucket, "region", cfg.AWSRegion)
		return storage.NewS3Provider(client, cfg.S3Bucket), nil
	}
	return nil, fmt.Errorf("unknown STORAGE_TYPE %q", cfg.StorageType)
}

// sessionKey returns the configured secret or a random one. A random secret
// invalidates every session on restart.
func sessionKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
