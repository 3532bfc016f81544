package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/pkg/session"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tables",
		Aliases: []string{"ls", "list"},
		Short:   "List datasets in the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			cols := []string{"name", "kind", "rows", "columns"}
			var results []map[string]any
			for _, name := range s.ListDatasets() {
				info, err := s.DescribeDataset(cmd.Context(), name)
				if err != nil {
					return err
				}
				results = append(results, map[string]any{
					"name":    info.Name,
					"kind":    info.Kind.String(),
					"rows":    info.RowCount,
					"columns": len(info.Columns),
				})
			}
			return renderResults(cmd.OutOrStdout(), cols, results, cfg.Format)
		},
	}
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <dataset>",
		Short: "Show the schema and metadata of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, cfg, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			info, err := s.DescribeDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cfg.Format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(describeOutput(info))
			}
			return renderDescribe(cmd.OutOrStdout(), info)
		},
	}
}

type datasetColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type datasetOutput struct {
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Rows       int64           `json:"rows"`
	SizeBytes  int64           `json:"size_bytes,omitempty"`
	SourcePath string          `json:"source_path,omitempty"`
	Columns    []datasetColumn `json:"columns"`
}

func describeOutput(info *session.DatasetInfo) datasetOutput {
	out := datasetOutput{
		Name:       info.Name,
		Kind:       info.Kind.String(),
		Rows:       info.RowCount,
		SizeBytes:  info.EstimatedSizeBytes,
		SourcePath: info.SourcePath,
		Columns:    make([]datasetColumn, 0, len(info.Columns)),
	}
	for _, col := range info.Columns {
		out.Columns = append(out.Columns, datasetColumn{
			Name:     col.Name,
			Type:     col.Type,
			Nullable: col.Nullable,
		})
	}
	return out
}

func renderDescribe(w io.Writer, info *session.DatasetInfo) error {
	_, _ = fmt.Fprintf(w, "Dataset: %s (%s)\n", info.Name, info.Kind)
	if info.SourcePath != "" {
		_, _ = fmt.Fprintf(w, "Source: %s\n", info.SourcePath)
	}
	_, _ = fmt.Fprintf(w, "Rows: %d\n", info.RowCount)
	if info.EstimatedSizeBytes > 0 {
		_, _ = fmt.Fprintf(w, "Estimated size: %d bytes\n", info.EstimatedSizeBytes)
	}
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Nullable"})
	for _, col := range info.Columns {
		nullable := "YES"
		if !col.Nullable {
			nullable = "NO"
		}
		t.AppendRow(table.Row{col.Name, col.Type, nullable})
	}
	t.Render()
	return nil
}

// NewRowsCommand creates the rows command.
func NewRowsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rows <dataset>",
		Short: "Print the row count of a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			count, err := s.GetRowCount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <dataset>",
		Short: "Remove a dataset from the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			removed, err := s.RemoveDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No such dataset: %s\n", args[0])
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
			return nil
		},
	}
}
