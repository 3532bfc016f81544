package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a file extension is not in the
// import allow-list.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Format identifies a supported source file format.
type Format int

const (
	// FormatCSV covers comma-separated files.
	FormatCSV Format = iota
	// FormatTSV covers tab-separated files.
	FormatTSV
	// FormatParquet covers Parquet files.
	FormatParquet
	// FormatArrow covers Arrow IPC files (.arrow, .ipc, .feather).
	FormatArrow
)

// DetectFormat resolves the file format from the path's extension.
func DetectFormat(path string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "csv":
		return FormatCSV, nil
	case "tsv":
		return FormatTSV, nil
	case "parquet", "pq":
		return FormatParquet, nil
	case "arrow", "ipc", "feather":
		return FormatArrow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// readerSQL builds the DuckDB reader expression for a source file.
func readerSQL(format Format, path string) string {
	lit := quoteLiteral(path)
	switch format {
	case FormatTSV:
		return fmt.Sprintf("read_csv(%s, auto_detect=true, delim='\t')", lit)
	case FormatParquet:
		return fmt.Sprintf("read_parquet(%s)", lit)
	case FormatArrow:
		// DuckDB resolves Arrow IPC files directly from the path.
		return lit
	default:
		return fmt.Sprintf("read_csv(%s, auto_detect=true)", lit)
	}
}

// ImportFile copies a source file into a persistent table. The format is
// resolved from the extension; the caller is expected to have validated
// that the file exists.
func (s *Store) ImportFile(ctx context.Context, path, table string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	s.logger.Debug("importing file", "path", path, "table", table)

	stmt := fmt.Sprintf(
		"CREATE TABLE %s AS SELECT * FROM %s",
		QuoteIdent(table), readerSQL(format, path),
	)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}
	return nil
}

// CreateScanView registers a temporary view over a source file. The view
// lives in the connection's temp catalog: it is visible to SQL by name,
// reads the file lazily, and is never written to the project database.
func (s *Store) CreateScanView(ctx context.Context, path, name string) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}

	s.logger.Debug("creating scan view", "path", path, "view", name)

	stmt := fmt.Sprintf(
		"CREATE TEMP VIEW %s AS SELECT * FROM %s",
		QuoteIdent(name), readerSQL(format, path),
	)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	return nil
}
