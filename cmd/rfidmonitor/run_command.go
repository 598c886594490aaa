package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
	"rfidmonitor/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor modules in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			for _, failed := range preflight.Failed(preflight.RunAll(runCtx, cfg)) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", failed.Name),
					logging.String("detail", failed.Detail),
					logging.String(logging.FieldErrorHint, "run `rfidmonitor check` for details"),
					logging.String(logging.FieldImpact, "affected modules may not work"))
			}

			modules, cleanup, err := buildModules(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			mon, err := monitor.New(cfg, logger, modules...)
			if err != nil {
				return err
			}
			if err := mon.Start(runCtx); err != nil {
				return err
			}
			defer mon.Stop()

			<-runCtx.Done()
			logger.Info("rfidmonitor shutting down")
			return nil
		},
	}
}
