// Package commands implements the quarry command-line interface.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/cli/config"
	"github.com/quarrylabs/quarry/pkg/session"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store logger in context.
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - Analytical Session Manager",
		Long: `Quarry manages analytical sessions over an embedded DuckDB project.

Import CSV, TSV and Parquet files as named datasets, run SQL against them,
derive sorted and filtered datasets, page through results, and export back
to disk. Datasets persist in the project file across sessions.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := slog.New(slog.DiscardHandler)
			if cfg.Verbose {
				logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}))
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					fmt.Fprintf(os.Stderr, "Using config file: %s\n", configFile)
				}
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./quarry.yaml)")
	rootCmd.PersistentFlags().StringP("project", "p", "", "Path to the project database (empty for a scratch session)")
	rootCmd.PersistentFlags().StringP("format", "f", "", "Output format (table|json|csv|markdown)")
	rootCmd.PersistentFlags().Int("preview-limit", 0, "Default row limit for previews")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	// Register completion for format flag
	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return config.Formats, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(NewVersionCommand(Version))
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewImportCommand())
	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewTablesCommand())
	rootCmd.AddCommand(NewDescribeCommand())
	rootCmd.AddCommand(NewRowsCommand())
	rootCmd.AddCommand(NewPreviewCommand())
	rootCmd.AddCommand(NewQueryCommand())
	rootCmd.AddCommand(NewSortCommand())
	rootCmd.AddCommand(NewFilterCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewExportCommand())
	rootCmd.AddCommand(NewDropCommand())
	rootCmd.AddCommand(NewShellCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Format:       config.DefaultFormat,
		PreviewLimit: config.DefaultPreviewLimit,
	}
}

// getLogger retrieves the logger from the command context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// openSession opens a session per the loaded configuration: scratch when no
// project is configured, otherwise bound to the project file.
func openSession(cmd *cobra.Command) (*session.Session, *config.Config, error) {
	cfg := getConfig(cmd.Context())

	s, err := session.New(session.Options{Logger: getLogger(cmd.Context())})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Project != "" {
		if _, err := s.OpenProject(cmd.Context(), cfg.Project); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("open project %s: %w (run 'quarry init' to create one)", cfg.Project, err)
		}
	}
	return s, cfg, nil
}
