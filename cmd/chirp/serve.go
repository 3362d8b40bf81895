// ABOUTME: Cobra command running the chirp HTTP server.
// ABOUTME: Wires storage, the optional Redis feed cache, the auth gate, and the procedures.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/2389-research/chirp/internal/auth"
	"github.com/2389-research/chirp/internal/config"
	"github.com/2389-research/chirp/internal/httpapi"
	"github.com/2389-research/chirp/internal/posts"
	"github.com/2389-research/chirp/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chirp server",
	Long: `Run the HTTP server hosting the feed procedures, the auth gate and the web pages.

Posts are stored as markdown files by default, or in Postgres when DATABASE_URL
is set. REDIS_ADDR enables the shared feed cache.`,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := globalConfig.Server
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	logger := log.Logger

	verifier, err := auth.NewVerifier(cfg.SessionSecret, cfg.Issuer)
	if err != nil {
		return fmt.Errorf("session verification: %w", err)
	}
	matcher, err := auth.MatcherByName(cfg.Matcher)
	if err != nil {
		return err
	}

	store, health, err := openStore(ctx, globalConfig)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if cfg.Cache.RedisAddr != "" {
		client, err := storage.NewRedisClient(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		store = storage.NewCachedStore(store, client, cfg.Cache.TTL, logger)
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("feed cache enabled")
	}

	server := httpapi.NewServer(httpapi.Deps{
		Posts:    posts.NewService(store, cfg.RateLimit.PostsPerMinute, logger),
		Gate:     auth.NewGate(matcher, cfg.PublicRoutes, verifier, cfg.SignInURL, logger),
		Verifier: verifier,
		Health:   health,
		Logger:   logger,
	})

	logger.Info().
		Str("addr", cfg.Addr).
		Str("storage", cfg.Storage.Driver).
		Str("matcher", matcher.Name()).
		Msg("chirp server starting")
	return server.ListenAndServe(ctx, cfg.Addr)
}

// openStore opens the configured post store. health is nil for stores
// without a connectivity check.
func openStore(ctx context.Context, c *config.Config) (storage.Store, httpapi.Pinger, error) {
	cfg := c.Server
	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, nil, fmt.Errorf("postgres storage needs a DSN (set DATABASE_URL)")
		}
		pg, err := storage.OpenPostgres(ctx, storage.DefaultPostgresConfig(cfg.Storage.PostgresDSN))
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, pg, nil

	case "markdown", "":
		dir, err := c.GetDataDir()
		if err != nil {
			return nil, nil, err
		}
		md, err := storage.NewMarkdownStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open markdown store: %w", err)
		}
		return md, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
