package commands

import (
	"github.com/spf13/cobra"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand() *cobra.Command {
	var (
		limit  int64
		offset int64
	)

	cmd := &cobra.Command{
		Use:   "preview <dataset>",
		Short: "Show rows from a dataset",
		Long: `Show a window of rows from a dataset.

Without flags the first rows are shown up to the configured preview
limit; --offset and --limit page through larger datasets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if !cmd.Flags().Changed("limit") {
				limit = int64(cfg.PreviewLimit)
			}

			buf, err := s.GetChunk(cmd.Context(), args[0], offset, limit)
			if err != nil {
				return err
			}
			return renderIPC(cmd.OutOrStdout(), buf, cfg.Format)
		},
	}

	cmd.Flags().Int64VarP(&limit, "limit", "l", 0, "Maximum rows to show (default: preview limit)")
	cmd.Flags().Int64Var(&offset, "offset", 0, "Rows to skip before the window")
	return cmd
}
