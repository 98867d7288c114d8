// cmd/scoutline/main.go
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

	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/api"
	"github.com/FairForge/scoutline/internal/cache"
	"github.com/FairForge/scoutline/internal/config"
	"github.com/FairForge/scoutline/internal/database"
	"github.com/FairForge/scoutline/internal/drivers"
	"github.com/FairForge/scoutline/internal/ingest"
	"github.com/FairForge/scoutline/internal/logging"
	"github.com/FairForge/scoutline/internal/metrics"
	"github.com/FairForge/scoutline/internal/ratelimit"
	"github.com/FairForge/scoutline/internal/sampler"
	"github.com/FairForge/scoutline/internal/store"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	configPath := flag.String("config", os.Getenv("SCOUTLINE_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(&logging.LoggerConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("scoutline failed", zap.Error(err))
	}
}

// runToken mints a bearer token for local testing against a server that
// shares the same secret.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SCOUTLINE_CONFIG"), "path to YAML config file")
	subject := fs.String("sub", "", "token subject")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("token: -sub is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	v := api.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if v == nil {
		return errors.New("token: auth.jwt_secret is not set")
	}
	token, err := v.Sign(*subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.NewCollector()
	checks := map[string]api.HealthCheck{}

	resultCache := cache.NewLRU[*analysis.Result](cfg.Cache.Capacity, cfg.Cache.TTL)
	go resultCache.Janitor(ctx, time.Minute)

	rs, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rs != nil {
		checks["storage"] = rs.Healthy
	}

	acfg := analysis.Config{
		Sampler: sampler.New(cfg.Sampler.ReadTimeout),
		Cache:   resultCache,
		Store:   rs,
		Metrics: m,
		Logger:  logger,
		Defaults: analysis.Options{
			SampleCount: cfg.Sampler.SampleCount,
			HashBytes:   cfg.Sampler.HashBytes,
			SeedBytes:   cfg.Sampler.SeedBytes,
		},
	}

	deps := api.Deps{
		Metrics:  m,
		Verifier: api.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Checks:   checks,
	}

	if cfg.Database.Enabled {
		db, err := database.NewPostgres(database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Name,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = db.Close() }()
		if err := db.CreateTables(ctx); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
		acfg.Index = db
		deps.Index = db
		checks["database"] = db.Ping
		logger.Info("analysis index enabled", zap.String("host", cfg.Database.Host))
	}

	analyzer := analysis.New(acfg)
	deps.Analyzer = analyzer

	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := ratelimit.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		deps.Limiter = limiter
		go sweepLimiter(ctx, limiter, logger)
	}

	server, err := api.NewServer(cfg, logger, deps)
	if err != nil {
		return err
	}

	if cfg.Ingest.Dir != "" {
		w, err := ingest.New(ingest.Config{
			Dir:      cfg.Ingest.Dir,
			Debounce: cfg.Ingest.Debounce,
			Owner:    cfg.Ingest.Owner,
			Existing: true,
		}, analyzer, m, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("ingest watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info("scoutline started",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("codec", cfg.Storage.Codec),
		zap.Bool("auth", deps.Verifier != nil),
		zap.Bool("index", cfg.Database.Enabled))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	return nil
}

// openStore returns nil when persistence is disabled.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.ResultStore, error) {
	var driver drivers.Driver
	switch cfg.Storage.Driver {
	case "none":
		logger.Info("result persistence disabled")
		return nil, nil

	case "local":
		if err := os.MkdirAll(cfg.Storage.LocalPath, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
		driver = drivers.NewLocalDriver(cfg.Storage.LocalPath, logger)
		logger.Info("using local storage", zap.String("path", cfg.Storage.LocalPath))

	case "s3":
		s3cfg := cfg.Storage.S3
		d, err := drivers.NewS3Driver(ctx, drivers.S3Config{
			Endpoint:     s3cfg.Endpoint,
			Region:       s3cfg.Region,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			UsePathStyle: s3cfg.UsePathStyle,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create s3 driver: %w", err)
		}
		if err := d.CheckBucket(ctx, cfg.Storage.Container); err != nil {
			return nil, fmt.Errorf("bucket %s: %w", cfg.Storage.Container, err)
		}
		driver = drivers.NewRetryableDriver(d, drivers.NewRetryPolicy(drivers.WithLogger(logger)))
		logger.Info("using S3-compatible storage", zap.String("endpoint", s3cfg.Endpoint))

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	codec, err := store.ParseCodec(cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}
	return store.New(driver, cfg.Storage.Container, codec, logger)
}

func sweepLimiter(ctx context.Context, l *ratelimit.ClientLimiter, logger *zap.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				logger.Debug("dropped idle rate limit buckets", zap.Int("count", n))
			}
		}
	}
}
