package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framex/internal/config"
	"framex/internal/deps"
	"framex/internal/fileutil"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external dependencies and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printSection(out, "Dependencies", colorize)
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			for _, status := range statuses {
				fmt.Fprintln(out, renderStatusLine(status.Name, dependencyKind(status), dependencyMessage(cmd, status), colorize))
			}

			fmt.Fprintln(out)
			printSection(out, "Configuration", colorize)
			fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Prober", statusInfo, cfg.Engines.Prober, colorize))
			fmt.Fprintln(out, renderStatusLine("History", historyKind(cfg), historyMessage(cfg), colorize))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
}

func dependencyKind(status deps.Status) statusKind {
	switch {
	case status.Available:
		return statusOK
	case status.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(cmd *cobra.Command, status deps.Status) string {
	if !status.Available {
		return status.Detail
	}
	version, err := deps.Version(cmd.Context(), status.Path)
	if err != nil {
		return status.Path
	}
	return fmt.Sprintf("%s (%s)", status.Path, version)
}

func historyKind(cfg *config.Config) statusKind {
	if !cfg.History.Enabled {
		return statusInfo
	}
	if err := fileutil.CheckReadable(cfg.HistoryPath()); err != nil {
		return statusInfo
	}
	return statusOK
}

func historyMessage(cfg *config.Config) string {
	if !cfg.History.Enabled {
		return "disabled"
	}
	if err := fileutil.CheckReadable(cfg.HistoryPath()); err != nil {
		return cfg.HistoryPath() + " (not created yet)"
	}
	return fmt.Sprintf("%s (%s bytes)", cfg.HistoryPath(), formatCount(int(fileutil.SizeOf(cfg.HistoryPath()))))
}
