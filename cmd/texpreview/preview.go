// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/texpreview/internal/convert"
	"github.com/pdiddy/texpreview/internal/history"
	"github.com/pdiddy/texpreview/internal/preview"
	"github.com/pdiddy/texpreview/internal/watch"
	"github.com/pdiddy/texpreview/pkg/types"
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.tex>",
	Short: "Watch a LaTeX file and keep its PDF preview up to date",
	Long: `Preview loads a LaTeX file, watches it for changes, and re-renders the
PDF once edits pause for the debounce window (1.5s by default). The PDF is
written atomically to the output directory so viewers that reload on change
never see a partial file.

While running, type a command and press enter:
  r  convert now, ignoring the debounce window
  a  toggle auto-preview
  s  show the current state
  q  quit`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().String("out-dir", "", "directory for the rendered PDF (default from config)")
	previewCmd.Flags().Bool("no-auto", false, "start with auto-preview off")

	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if dir, _ := cmd.Flags().GetString("out-dir"); dir != "" {
		cfg.Preview.OutputDir = dir
	}
	if noAuto, _ := cmd.Flags().GetBool("no-auto"); noAuto {
		cfg.Preview.AutoPreview = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conv, err := convert.New(ctx, cfg.Conversion, loadedSecrets)
	if err != nil {
		return err
	}

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.NewStore(cfg.History)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	out := cmd.OutOrStdout()
	session := uuid.NewString()
	record := func(r types.ConversionResult) {
		if store == nil {
			return
		}
		if err := store.Record(context.Background(), session, r); err != nil {
			slog.Warn("recording history", "err", err)
		}
	}

	ctrl := preview.New(conv, preview.Options{
		Window:      cfg.Preview.Debounce,
		AutoPreview: cfg.Preview.AutoPreview,
		Timeout:     cfg.Preview.Timeout,
		OnResult: func(r types.ConversionResult) {
			path, err := convert.WriteArtifact(cfg.Preview.OutputDir, cfg.Preview.OutputName, r.Artifact)
			if err != nil {
				fmt.Fprintf(out, "[%d] write failed: %v\n", r.Seq, err)
				return
			}
			fmt.Fprintf(out, "[%d] ready: %s (%d bytes, %s)\n", r.Seq, path, len(r.Artifact.Data), r.Duration.Round(time.Millisecond))
			record(r)
		},
		OnError: func(r types.ConversionResult) {
			fmt.Fprintf(out, "[%d] error: %s\n", r.Seq, r.Message)
			record(r)
		},
	})
	defer ctrl.Close()

	path := args[0]
	if err := ctrl.LoadFromFile(path); err != nil {
		return err
	}
	if !ctrl.AutoPreviewEnabled() {
		ctrl.RequestManualConversion()
	}
	fmt.Fprintf(out, "Watching %s (auto-preview %s, session %s)\n", path, onOff(ctrl.AutoPreviewEnabled()), session)

	go readCommands(cmd.InOrStdin(), out, ctrl, stop)

	return watch.File(ctx, path, ctrl.SetDraft)
}

// readCommands handles interactive single-letter commands until in is
// exhausted or q is entered.
func readCommands(in io.Reader, out io.Writer, ctrl *preview.Controller, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "r":
			if ctrl.RequestManualConversion() == 0 {
				fmt.Fprintln(out, "draft is empty")
			}
		case "a":
			fmt.Fprintf(out, "auto-preview %s\n", onOff(ctrl.ToggleAutoPreview()))
		case "s":
			printState(out, ctrl.State())
		case "q":
			quit()
			return
		case "":
		default:
			fmt.Fprintln(out, "commands: r (convert), a (toggle auto-preview), s (state), q (quit)")
		}
	}
}

func printState(w io.Writer, st types.ConversionState) {
	fmt.Fprintf(w, "phase: %s, seq: %d", st.Phase, st.Seq)
	if st.Artifact != nil {
		fmt.Fprintf(w, ", artifact: %s (seq %d)", st.Artifact.ID, st.Artifact.Seq)
	}
	if st.Message != "" {
		fmt.Fprintf(w, ", message: %s", st.Message)
	}
	fmt.Fprintln(w)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
