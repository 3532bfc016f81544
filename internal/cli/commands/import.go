package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a file into the project as a dataset",
		Long: `Import a CSV, TSV or Parquet file into the project as a persisted dataset.

The dataset name defaults to a sanitized form of the file name with a
numeric suffix; use --name to pick one explicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			registered, err := s.ImportFile(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}

			count, err := s.GetRowCount(cmd.Context(), registered)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (%d rows)\n", args[0], registered, count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Dataset name (default: derived from the file name)")
	return cmd
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Scan a file lazily and preview it",
		Long: `Register a file as a transient dataset and show a preview.

Scanned datasets never touch the project file; they live only for the
duration of the session.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			name, err := s.ScanFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			buf, err := s.GetPreview(cmd.Context(), name, int64(cfg.PreviewLimit))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Scanned %s as %s\n", args[0], name)
			return renderIPC(cmd.OutOrStdout(), buf, cfg.Format)
		},
	}
	return cmd
}
