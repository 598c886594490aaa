package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check directories, the daemon endpoint and the record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			for _, line := range checkLines(results, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
}
