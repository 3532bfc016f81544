package storage

import (
	"context"
	"fmt"
)

// ExportCSV writes a table or view to a CSV file with a header row.
// An existing file at path is overwritten.
func (s *Store) ExportCSV(ctx context.Context, name, path string) error {
	s.logger.Debug("exporting csv", "table", name, "path", path)

	stmt := fmt.Sprintf(
		"COPY (SELECT * FROM %s) TO %s (FORMAT CSV, HEADER TRUE)",
		QuoteIdent(name), quoteLiteral(path),
	)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to export %s to csv: %w", name, err)
	}
	return nil
}

// ExportParquet writes a table or view to a Parquet file.
// An existing file at path is overwritten.
func (s *Store) ExportParquet(ctx context.Context, name, path string) error {
	s.logger.Debug("exporting parquet", "table", name, "path", path)

	stmt := fmt.Sprintf(
		"COPY (SELECT * FROM %s) TO %s (FORMAT PARQUET)",
		QuoteIdent(name), quoteLiteral(path),
	)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to export %s to parquet: %w", name, err)
	}
	return nil
}
