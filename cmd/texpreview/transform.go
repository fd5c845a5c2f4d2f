// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/texpreview/internal/source"
	"github.com/pdiddy/texpreview/internal/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Wrap plain text in a LaTeX document",
	Long: `Transform turns plain text into a complete LaTeX document. Blank lines
separate blocks; blocks starting with "1." become enumerate lists and
blocks starting with "-", "*" or "•" become itemize lists. Reads standard
input when no file (or "-") is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTransform,
}

func init() {
	transformCmd.Flags().StringP("output", "o", "", "write the document to a file instead of stdout")

	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	path := "-"
	if len(args) == 1 {
		path = args[0]
	}

	text, err := source.LoadText(path, cmd.InOrStdin())
	if err != nil {
		return err
	}
	doc := transform.Transform(text)

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), doc)
		return err
	}
	if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}
