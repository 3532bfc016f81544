package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <dataset> <file>",
		Short: "Export a dataset to a file",
		Long: `Export a dataset to a CSV or Parquet file, chosen by the output
file extension. An existing file is overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			name, out := args[0], args[1]
			switch strings.ToLower(strings.TrimPrefix(filepath.Ext(out), ".")) {
			case "csv":
				err = s.ExportCSV(cmd.Context(), name, out)
			case "parquet", "pq":
				err = s.ExportParquet(cmd.Context(), name, out)
			default:
				return fmt.Errorf("cannot infer export format from %q (expected a .csv or .parquet extension)", out)
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", name, out)
			return nil
		},
	}
	return cmd
}
