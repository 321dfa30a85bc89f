package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/auth"
	"github.com/peronio/realmnet/internal/config"
	"github.com/peronio/realmnet/internal/game"
	"github.com/peronio/realmnet/internal/httpapi"
	"github.com/peronio/realmnet/internal/logger"
	"github.com/peronio/realmnet/internal/metrics"
	"github.com/peronio/realmnet/internal/store"
	"github.com/peronio/realmnet/ws"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket server",
	RunE:  runServe,
}

var (
	flagEnvFile     string
	flagPort        int
	flagWSPath      string
	flagClientURL   string
	flagDataPath    string
	flagDatabaseURL string
	flagRedisURL    string
	flagLogLevel    string
)

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&flagEnvFile, "env-file", ".env", "optional dotenv file read before the environment")
	flags.IntVar(&flagPort, "port", 0, "listen port (env PORT, default 3001)")
	flags.StringVar(&flagWSPath, "ws-path", "", "socket endpoint path (env WS_PATH, default /ws)")
	flags.StringVar(&flagClientURL, "client-url", "", "browser client origin allowed by CORS and the upgrade check (env CLIENT_URL)")
	flags.StringVar(&flagDataPath, "data-path", "", "directory of the embedded Pebble store (env DATA_PATH)")
	flags.StringVar(&flagDatabaseURL, "database-url", "", "Postgres DSN; wins over --data-path (env DATABASE_URL)")
	flags.StringVar(&flagRedisURL, "redis-url", "", "redis:// URL holding login sessions (env REDIS_URL)")
	flags.StringVar(&flagLogLevel, "log-level", "", "zerolog level (env LOG_LEVEL, default info)")
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = flagPort
	}
	if changed("ws-path") {
		cfg.WSPath = flagWSPath
	}
	if changed("client-url") {
		cfg.ClientURL = flagClientURL
	}
	if changed("data-path") {
		cfg.DataPath = flagDataPath
	}
	if changed("database-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if changed("redis-url") {
		cfg.RedisURL = flagRedisURL
	}
	if changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if err := logger.Init(cfg.LogLevel, cfg.LogPretty); err != nil {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("unknown log level, using info")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	st, err := store.Open(ctx, store.Options{DatabaseURL: cfg.DatabaseURL, DataPath: cfg.DataPath, Logger: log.Logger})
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	verifier, closeVerifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeVerifier()

	collector := metrics.New()

	var world *game.World
	server := ws.New(&ws.ServerConfig{
		Path:            cfg.WSPath,
		RateLimitConfig: rateLimit(cfg),
		CheckOrigin:     ws.AllowedOrigins(cfg.ClientURL),
		OnClientDisconnect: func(conn realmnet.Conn, voluntary bool) {
			world.Leave(conn, voluntary)
		},
		WelcomeMessage: cfg.WelcomeMessage,
		Metrics:        collector,
		Logger:         &log.Logger,
	})

	world = game.NewWorld(game.Config{
		Store:        st,
		Verifier:     verifier,
		Registry:     server.Registry(),
		DefaultMapID: cfg.DefaultMapID,
		Logger:       &log.Logger,
	})
	if err := world.Register(server); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr: cfg.Addr(),
		Handler: httpapi.SetupRoutes(httpapi.Options{
			Env:         cfg.Env,
			ClientURL:   cfg.ClientURL,
			Socket:      server,
			SocketPath:  server.Path(),
			Connections: server.Connections,
			Metrics:     collector.Handler(),
			Logger:      log.Logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("ws_path", server.Path()).
			Str("env", cfg.Env).
			Msg("realm server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stop websocket server")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	log.Info().Msg("goodbye")
	return nil
}

// newVerifier returns the verifier and a func releasing what it holds.
func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn().Int("tokens", len(cfg.DevTokens)).Msg("REDIS_URL not set, using static development tokens")
		return auth.NewStaticVerifier(cfg.DevTokens), func() {}, nil
	}
	verifier, closeFn, err := openRedisVerifier(ctx, cfg, 0)
	if err != nil {
		return nil, nil, err
	}
	return verifier, closeFn, nil
}

func rateLimit(cfg *config.Config) *ws.RateLimitConfig {
	if !cfg.RateLimited() {
		return ws.NoRateLimit()
	}
	return &ws.RateLimitConfig{
		MessagesPerSecond: rate.Limit(cfg.RateLimitMPS),
		Burst:             cfg.RateLimitBurst,
		Enabled:           true,
	}
}
