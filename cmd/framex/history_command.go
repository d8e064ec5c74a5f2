package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"framex/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded extraction sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.OpenFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No extraction sessions recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable("Sessions", historyHeaders(), historyRows(entries), historyAligns()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", history.DefaultListLimit, "Maximum sessions to show")
	return cmd
}

func historyHeaders() []string {
	return []string{"Started", "Status", "Source", "Output", "Delivered", "Budget", "Elapsed"}
}

func historyAligns() []columnAlignment {
	return []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}
}

func historyRows(entries []history.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		output := "-"
		if entry.Width > 0 && entry.Height > 0 {
			output = fmt.Sprintf("%dx%d", entry.Width, entry.Height)
		}
		status := entry.Status
		if entry.Error != "" {
			status += ": " + entry.Error
		}
		rows = append(rows, []string{
			entry.StartedAt.Local().Format(time.DateTime),
			status,
			entry.SourcePath,
			output,
			formatCount(entry.Delivered),
			formatBudget(entry.FrameBudget),
			entry.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return rows
}
