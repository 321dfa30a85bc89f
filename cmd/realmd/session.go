package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/peronio/realmnet/internal/auth"
	"github.com/peronio/realmnet/internal/config"
	"github.com/peronio/realmnet/protocol"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Mint and revoke login tokens stored in Redis",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session for a player and print its token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagSessionEnvFile)
		if err != nil {
			return err
		}
		return createSession(cmd.Context(), cfg, flagSessionPlayer, flagSessionTTL, cmd.OutOrStdout())
	},
}

var sessionRevokeCmd = &cobra.Command{
	Use:   "revoke TOKEN",
	Short: "Delete the session behind a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagSessionEnvFile)
		if err != nil {
			return err
		}
		return revokeSession(cmd.Context(), cfg, args[0])
	},
}

var (
	flagSessionEnvFile string
	flagSessionPlayer  string
	flagSessionTTL     time.Duration
)

func init() {
	sessionCmd.PersistentFlags().StringVar(&flagSessionEnvFile, "env-file", ".env", "optional dotenv file read before the environment")
	sessionCreateCmd.Flags().StringVar(&flagSessionPlayer, "player", "", "player id the token logs in as")
	sessionCreateCmd.Flags().DurationVar(&flagSessionTTL, "ttl", auth.DefaultSessionTTL, "session lifetime")
	sessionCmd.AddCommand(sessionCreateCmd, sessionRevokeCmd)
}

func createSession(ctx context.Context, cfg *config.Config, playerID string, ttl time.Duration, out io.Writer) error {
	if !protocol.IsID(playerID) {
		return fmt.Errorf("--player %q is not a player id", playerID)
	}
	verifier, closeFn, err := openRedisVerifier(ctx, cfg, ttl)
	if err != nil {
		return err
	}
	defer closeFn()

	token, err := verifier.CreateSession(ctx, playerID)
	if err != nil {
		return err
	}
	log.Info().Str("player_id", playerID).Dur("ttl", verifier.TTL()).Msg("session created")
	_, err = fmt.Fprintln(out, token)
	return err
}

func revokeSession(ctx context.Context, cfg *config.Config, token string) error {
	verifier, closeFn, err := openRedisVerifier(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer closeFn()

	return verifier.Revoke(ctx, token)
}

// openRedisVerifier connects to REDIS_URL and keys sessions with
// SESSION_SECRET.
func openRedisVerifier(ctx context.Context, cfg *config.Config, ttl time.Duration) (*auth.RedisVerifier, func(), error) {
	if cfg.RedisURL == "" {
		return nil, nil, errors.New("REDIS_URL is not set")
	}
	if cfg.IsProduction() && cfg.SessionSecret == "" {
		return nil, nil, errors.New("SESSION_SECRET is required in production")
	}
	client, err := auth.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis client")
		}
	}
	return auth.NewRedisVerifier(client, ttl, cfg.SessionSecret, log.Logger), closeFn, nil
}
