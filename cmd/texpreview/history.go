// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texpreview/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or export recorded conversions",
	Long: `History lists the conversions applied by preview sessions, newest
first. With --export it writes the full log to export.yaml or export.json
in the history directory.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 0, "maximum entries to list (0 = use config)")
	historyCmd.Flags().String("export", "", "export format: yaml or json")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	store, err := history.NewStore(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("export")
	switch format {
	case "":
	case "yaml":
		path, err := store.ExportYAML(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", path)
		return nil
	case "json":
		path, err := store.ExportJSON(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported to %s\n", path)
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	formatHistory(out, entries)
	return nil
}

func formatHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No conversions recorded.")
		return
	}

	fmt.Fprintf(w, "%-20s  %-8s  %-5s  %-6s  %-8s  %s\n",
		"Settled", "Session", "Seq", "Status", "Time", "Detail")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, e := range entries {
		status, detail := "ok", fmt.Sprintf("%d bytes", e.Bytes)
		if !e.OK {
			status, detail = "error", truncate(e.Message, 40)
		}
		fmt.Fprintf(w, "%-20s  %-8s  %-5d  %-6s  %-8s  %s\n",
			e.SettledAt.Local().Format("2006-01-02 15:04:05"), shortID(e.Session), e.Seq,
			status, e.Duration.Round(time.Millisecond), detail)
	}

	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
