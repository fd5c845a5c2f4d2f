// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texpreview/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert <files...>",
	Short: "Render LaTeX files to PDF once",
	Long: `Convert renders each LaTeX file to <out-dir>/<name>.pdf using the
configured backend. Files whose PDF already exists are skipped unless
--force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out-dir", "", "output directory (default from config)")
	convertCmd.Flags().Bool("force", false, "re-render files whose PDF already exists")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	outDir, _ := cmd.Flags().GetString("out-dir")
	if outDir == "" {
		outDir = cfg.Preview.OutputDir
	}
	force, _ := cmd.Flags().GetBool("force")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	conv, err := convert.New(ctx, cfg.Conversion, loadedSecrets)
	if err != nil {
		return err
	}

	result := convert.ConvertBatch(ctx, conv, args, outDir, force, cmd.OutOrStdout())
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}
