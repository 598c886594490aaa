package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/logging"
	"rfidmonitor/internal/monitor"
)

func newServicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the capabilities published by the monitor modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			modules, cleanup, err := buildModules(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			defer cleanup()

			mon, err := monitor.New(cfg, logging.NewNop(), modules...)
			if err != nil {
				return err
			}
			if err := mon.Inspect(cmd.Context()); err != nil {
				return err
			}

			reg := mon.Registry()
			var rows [][]string
			for _, capability := range reg.List() {
				defaultName, _ := reg.DefaultName(capability.Category)
				rows = append(rows, []string{
					capability.Name,
					capability.Category.DisplayName(),
					capability.Signature.String(),
					yesNo(defaultName == capability.Name),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Category", "Signature", "Default"},
				rows,
				nil,
				"%d capabilities",
			))
			return nil
		},
	}
}
