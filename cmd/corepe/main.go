// Command corepe is a small dump/rebuild tool exercising the pe, metadata,
// and x86 packages.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootOptions is shared state threaded through every subcommand, mirroring
// cmd/pixie's rootOptions/opts.config/opts.logger pattern.
type rootOptions struct {
	config     *config
	configPath string
	logger     *slog.Logger
}

func main() {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "corepe",
		Short: "Inspect and rebuild PE/.NET images",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.config = cfg

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(opts.logger)

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file")

	root.AddCommand(newDumpCommand(opts))
	root.AddCommand(newRebuildCommand(opts))
	root.AddCommand(newDisasmCommand(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
