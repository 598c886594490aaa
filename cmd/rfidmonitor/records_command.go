package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rfidmonitor/internal/persistence"
)

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect stored tag reads",
	}
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var code string
	var unsynced bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tag reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Persistence.Enabled {
				return fmt.Errorf("persistence is disabled in %s", ctx.configPath)
			}

			store, err := persistence.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			var records []*persistence.Record
			switch {
			case code != "":
				records, err = store.GetByMatch(cmd.Context(), "code", code)
			case unsynced:
				records, err = store.GetByMatch(cmd.Context(), "synced", false)
			default:
				records, err = store.GetAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.Code,
					rec.Device,
					strconv.Itoa(rec.Antenna),
					rec.ReadAt.Local().Format(time.DateTime),
					yesNo(rec.Synced),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Code", "Device", "Antenna", "Read At", "Synced"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				"%d records",
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Only show reads of this tag code")
	cmd.Flags().BoolVar(&unsynced, "unsynced", false, "Only show reads not yet synchronized")
	return cmd
}
