package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/skillpiler/internal/analysis"
	"github.com/amishk599/skillpiler/internal/auth"
	"github.com/amishk599/skillpiler/internal/cache"
	"github.com/amishk599/skillpiler/internal/config"
	"github.com/amishk599/skillpiler/internal/github"
	"github.com/amishk599/skillpiler/internal/model"
	"github.com/amishk599/skillpiler/internal/ratelimit"
	"github.com/amishk599/skillpiler/internal/retry"
	"github.com/amishk599/skillpiler/internal/scheduler"
	"github.com/amishk599/skillpiler/internal/server"
	"github.com/amishk599/skillpiler/internal/store"
)

const defaultSQLiteDSN = "skillpiler.db"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analysis API server",
	Long:  "Serve the analysis API with its worker pool and job cleanup; blocks until SIGINT/SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	gh := github.NewClient(cfg.GitHub.APIBaseURL, &http.Client{Timeout: cfg.GitHub.Timeout}, logger)
	source, closeCache := buildSource(ctx, cfg, gh, logger)
	defer closeCache()

	svc := analysis.NewService(repo, source, analysis.Options{
		Workers:      cfg.Server.Workers,
		DefaultToken: cfg.GitHub.Token,
	}, logger)

	oauth := auth.NewOAuth(auth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		JWTSecret:    cfg.OAuth.JWTSecret,
		Scopes:       cfg.OAuth.Scopes,
	}, gh, logger)
	if !oauth.Configured() {
		logger.Warn("github oauth not configured, private analysis disabled")
	}

	srv := server.New(svc, oauth, server.Options{
		Addr:        cfg.Server.Addr,
		CORSOrigins: cfg.Server.CORSOrigins,
	}, logger)

	sched := scheduler.NewScheduler([]scheduler.Task{
		scheduler.NewCleanupTask(repo, cfg.Server.JobRetention, logger),
	}, cfg.Server.CleanupInterval, logger)

	logger.Info("config loaded",
		"addr", cfg.Server.Addr,
		"storage", cfg.Storage.Driver,
		"workers", cfg.Server.Workers,
		"cache", cfg.Cache.RedisAddr != "",
		"job_retention", cfg.Server.JobRetention.String(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		err := srv.Run(gctx)
		stop()
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// openStore opens the job store selected by the storage driver.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (analysis.Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		logger.Info("using in-memory store, jobs are lost on restart")
		return store.NewMemoryStore(), nil
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		return store.OpenSQL(ctx, "sqlite", dsn)
	case "postgres":
		return store.OpenSQL(ctx, "postgres", cfg.DSN)
	case "redis":
		return store.NewRedisStore(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// buildSource wraps the GitHub client with rate limiting, retries and, when
// configured, the Redis cache. The returned func releases the cache.
func buildSource(ctx context.Context, cfg *config.Config, gh *github.Client, logger *slog.Logger) (model.RepoSource, func()) {
	var source model.RepoSource = gh
	if cfg.GitHub.MinDelay > 0 {
		source = ratelimit.NewSource(source, ratelimit.NewLimiter(cfg.GitHub.MinDelay))
		logger.Info("github rate limiter configured", "min_delay", cfg.GitHub.MinDelay.String())
	}
	source = retry.NewSource(source, cfg.GitHub.MaxRetries, cfg.GitHub.RetryBaseDelay, logger)

	if cfg.Cache.RedisAddr == "" {
		return source, func() {}
	}
	c, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.TTL)
	if err != nil {
		logger.Warn("github cache unavailable, continuing without it", "addr", cfg.Cache.RedisAddr, "error", err)
		return source, func() {}
	}
	logger.Info("github cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL.String())
	return cache.NewSource(source, c, logger), func() { c.Close() }
}
