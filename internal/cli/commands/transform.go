package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// parseSortKeys splits --by values of the form "col" or "col:desc" into
// column names and sort directions.
func parseSortKeys(keys []string) ([]string, []bool, error) {
	columns := make([]string, 0, len(keys))
	descending := make([]bool, 0, len(keys))
	for _, key := range keys {
		col, dir, found := strings.Cut(key, ":")
		if col == "" {
			return nil, nil, fmt.Errorf("empty sort key %q", key)
		}
		desc := false
		if found {
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				desc = true
			default:
				return nil, nil, fmt.Errorf("invalid sort direction %q in %q (expected asc or desc)", dir, key)
			}
		}
		columns = append(columns, col)
		descending = append(descending, desc)
	}
	return columns, descending, nil
}

// NewSortCommand creates the sort command.
func NewSortCommand() *cobra.Command {
	var keys []string

	cmd := &cobra.Command{
		Use:   "sort <dataset>",
		Short: "Derive a sorted copy of a dataset",
		Long: `Derive a new persisted dataset holding the rows of the source sorted
by one or more columns.

Each --by value is a column name, optionally suffixed with :asc or :desc.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			columns, descending, err := parseSortKeys(keys)
			if err != nil {
				return err
			}

			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			name, err := s.SortDataset(cmd.Context(), args[0], columns, descending)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Sorted %s into %s\n", args[0], name)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&keys, "by", nil, "Sort key, as column or column:desc (repeatable)")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

// NewFilterCommand creates the filter command.
func NewFilterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter <dataset> <predicate>",
		Short: "Derive a filtered copy of a dataset",
		Long: `Derive a new persisted dataset holding the rows of the source that
satisfy a SQL predicate, e.g. "age > 30 AND city = 'Boston'".`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			predicate := strings.Join(args[1:], " ")
			name, err := s.FilterSQL(cmd.Context(), args[0], predicate)
			if err != nil {
				return err
			}

			count, err := s.GetRowCount(cmd.Context(), name)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Filtered %s into %s (%d rows)\n", args[0], name, count)
			return nil
		},
	}
	return cmd
}
