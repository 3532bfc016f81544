package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run SQL against the session",
		Long: `Run a SQL statement against the datasets in the session.

By default the result is rendered and discarded. With --save the result
is materialized as a new persisted dataset and its name printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			query := strings.Join(args, " ")

			if save {
				name, err := s.ExecuteSQL(cmd.Context(), query)
				if err != nil {
					return err
				}
				count, err := s.GetRowCount(cmd.Context(), name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved result as %s (%d rows)\n", name, count)
				return nil
			}

			buf, err := s.QueryIPC(cmd.Context(), query)
			if err != nil {
				return err
			}
			return renderIPC(cmd.OutOrStdout(), buf, cfg.Format)
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Materialize the result as a new dataset")
	return cmd
}

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dataset>",
		Short: "Show summary statistics for a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			buf, err := s.SummaryStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderIPC(cmd.OutOrStdout(), buf, cfg.Format)
		},
	}
}
