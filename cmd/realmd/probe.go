package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/protocol"
	"github.com/peronio/realmnet/ws"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Connect to a realm server, ping it and print what comes back",
	RunE:  runProbe,
}

var (
	flagProbeURL     string
	flagProbePage    string
	flagProbeToken   string
	flagProbeTimeout time.Duration
)

func init() {
	flags := probeCmd.Flags()
	flags.StringVar(&flagProbeURL, "url", "ws://localhost:3001/ws", "socket URL")
	flags.StringVar(&flagProbePage, "page", "", "derive the socket URL from this page URL instead of --url")
	flags.StringVar(&flagProbeToken, "token", "", "log in with this token after the ping")
	flags.DurationVar(&flagProbeTimeout, "timeout", 5*time.Second, "give up after this long")
}

func runProbe(cmd *cobra.Command, args []string) error {
	url := flagProbeURL
	if flagProbePage != "" {
		u, err := ws.URLFromPage(flagProbePage, "")
		if err != nil {
			return err
		}
		url = u
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagProbeTimeout)
	defer cancel()

	return probe(ctx, url, flagProbeToken, cmd.OutOrStdout())
}

// probe prints every server message as a JSON line until the pong and,
// with a token, the login answer have arrived.
func probe(ctx context.Context, url, token string, out io.Writer) error {
	pingID := uuid.NewString()
	loginID := uuid.NewString()

	pong := make(chan struct{})
	answered := make(chan struct{})
	connected := make(chan struct{}, 1)

	enc := json.NewEncoder(out)
	quiet := zerolog.Nop()
	client := ws.NewClient(&ws.ClientConfig{
		URL:    url,
		Logger: &quiet,
		OnMessage: func(msg protocol.ServerMessage) {
			_ = enc.Encode(msg)
			switch msg.Header().CorrelationID {
			case pingID:
				close(pong)
			case loginID:
				close(answered)
			}
		},
		OnStateChange: func(_, to realmnet.State) {
			if to == realmnet.Connected {
				select {
				case connected <- struct{}{}:
				default:
				}
			}
		},
	})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", url, err)
	}

	select {
	case <-connected:
	case <-ctx.Done():
		return fmt.Errorf("connect %s: %w", url, ctx.Err())
	}

	ping := &protocol.Ping{Envelope: protocol.Envelope{CorrelationID: pingID}}
	if err := client.Send(ctx, ping); err != nil {
		return err
	}
	if err := wait(ctx, pong, "pong"); err != nil {
		return err
	}

	if token == "" {
		return nil
	}
	login := &protocol.AuthLogin{Envelope: protocol.Envelope{CorrelationID: loginID}, Token: token}
	if err := client.Send(ctx, login); err != nil {
		return err
	}
	return wait(ctx, answered, "login answer")
}

func wait(ctx context.Context, ch <-chan struct{}, what string) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
	}
}
