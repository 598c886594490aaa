package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/communication"
	"rfidmonitor/internal/logging"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "send <type> [json-payload]",
		Short: "Send one envelope to the daemon",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			msgType := strings.TrimSpace(args[0])
			if msgType == "" {
				return errors.New("message type must not be empty")
			}
			payload := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
					return fmt.Errorf("payload must be a JSON object: %w", err)
				}
			}

			svc := communication.NewFromConfig(cfg, logging.NewNop())
			runCtx, cancel := context.WithCancel(cmd.Context())
			done := make(chan error, 1)
			go func() { done <- svc.Run(runCtx) }()
			defer func() {
				cancel()
				<-done
			}()

			waitCtx, waitCancel := context.WithTimeout(cmd.Context(), timeout)
			defer waitCancel()
			if err := svc.WaitReady(waitCtx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("daemon at %s did not acknowledge the handshake within %s", cfg.SocketPath(), timeout)
				}
				return wrapDialError(err, cfg.SocketPath())
			}

			svc.SendEnvelope(payload, msgType)
			if err := svc.Sync(waitCtx); err != nil {
				return fmt.Errorf("send %s: %w", msgType, err)
			}
			if svc.State() != "ready" {
				return fmt.Errorf("send %s: connection %s", msgType, svc.State())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", msgType, cfg.SocketPath())
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the daemon handshake")
	return cmd
}
