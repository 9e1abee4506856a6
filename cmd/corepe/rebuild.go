package main

import (
	"fmt"
	"os"

	"github.com/davejbax/corepe/binio"
	"github.com/davejbax/corepe/pe"
	"github.com/spf13/cobra"
)

func newRebuildCommand(opts *rootOptions) *cobra.Command {
	outputPath := ""

	cmd := &cobra.Command{
		Use:   "rebuild <file>",
		Short: "Parse a PE image, reassign section offsets, and rewrite it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runRebuild(opts, args[0], outputPath)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "a.out.exe", "Path to rewritten image")

	return cmd
}

func runRebuild(opts *rootOptions, path, outputPath string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read '%s': %w", path, err)
	}

	mode := pe.Unmapped
	if opts.config.Mapping == "mapped" {
		mode = pe.Mapped
	}

	file, err := pe.Parse(binio.NewReaderBytes(raw), mode)
	if err != nil {
		return fmt.Errorf("failed to parse PE image: %w", err)
	}

	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("could not open output file: %w", err)
	}
	defer out.Close()

	n, err := file.Rebuild(out)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	opts.logger.Info("rebuilt PE image", "path", outputPath, "bytes", n)
	return nil
}
