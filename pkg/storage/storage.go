// Package storage provides the DuckDB-backed project store for Quarry.
//
// A Store owns a single DuckDB database (a project file, or an in-memory
// scratch database) and pins one connection for its whole lifetime so that
// temporary objects, such as transient scan views, stay visible across calls.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// InMemoryPath is the DSN for a scratch database that never touches disk.
const InMemoryPath = ":memory:"

// Column describes a single column of a stored table.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// TableInfo holds the catalog metadata for one table.
type TableInfo struct {
	Name     string
	Columns  []Column
	RowCount int64
}

// Store is a handle to one open DuckDB database.
type Store struct {
	db     *sql.DB
	conn   *sql.Conn
	path   string
	logger *slog.Logger
}

// Open opens (or creates) a DuckDB database at path.
// Use OpenInMemory for a scratch database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database: %w", err)
	}

	// Pin a single connection. Temp views are connection-scoped, so the
	// whole store must run on one connection.
	conn, err := db.Conn(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to acquire duckdb connection: %w", err)
	}

	s := &Store{db: db, conn: conn, path: path, logger: logger}
	if err := s.configure(context.Background()); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}

	logger.Debug("store opened", "path", path)
	return s, nil
}

// OpenInMemory opens a scratch database kept entirely in memory.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	return Open(InMemoryPath, logger)
}

// configure tunes the pinned connection for local analytical workloads.
func (s *Store) configure(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, "SET preserve_insertion_order = true"); err != nil {
		return fmt.Errorf("failed to configure duckdb connection: %w", err)
	}
	return nil
}

// Close releases the pinned connection and the database handle.
func (s *Store) Close() error {
	s.logger.Debug("closing store", "path", s.path)

	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing store: %v", errs)
	}
	return nil
}

// Path returns the database path, or ":memory:" for a scratch store.
func (s *Store) Path() string {
	return s.path
}

// InMemory reports whether the store is a scratch database.
func (s *Store) InMemory() bool {
	return s.path == InMemoryPath
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string) error {
	_, err := s.conn.ExecContext(ctx, query)
	return err
}

// Query runs a statement that returns rows.
func (s *Store) Query(ctx context.Context, query string) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, query)
}

// ListTables returns the names of all tables in the main schema, sorted.
// Temporary views are not part of the catalog and never appear here.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'main' AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table names: %w", err)
	}
	return names, nil
}

// TableInfo returns column metadata and the current row count for a table
// or view. The relation must be visible to the pinned connection.
func (s *Store) TableInfo(ctx context.Context, name string) (*TableInfo, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(
		"DESCRIBE SELECT * FROM %s", QuoteIdent(name),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read describe columns: %w", err)
	}

	var columns []Column
	pos := 1
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan describe row: %w", err)
		}

		// DESCRIBE yields column_name, column_type, null, ... in order.
		col := Column{Position: pos}
		if v, ok := values[0].(string); ok {
			col.Name = v
		}
		if v, ok := values[1].(string); ok {
			col.Type = v
		}
		if v, ok := values[2].(string); ok {
			col.Nullable = v == "YES"
		}
		columns = append(columns, col)
		pos++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating describe rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found", name)
	}

	count, err := s.RowCount(ctx, name)
	if err != nil {
		return nil, err
	}

	return &TableInfo{Name: name, Columns: columns, RowCount: count}, nil
}

// RowCount returns the exact number of rows in a table or view.
func (s *Store) RowCount(ctx context.Context, name string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", QuoteIdent(name))
	if err := s.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", name, err)
	}
	return count, nil
}

// EstimatedSize returns a rough in-memory size of a table in bytes,
// derived from column types and the row count.
func (s *Store) EstimatedSize(ctx context.Context, name string) (int64, error) {
	info, err := s.TableInfo(ctx, name)
	if err != nil {
		return 0, err
	}
	if info.RowCount == 0 {
		return 0, nil
	}

	var perRow int64
	for _, col := range info.Columns {
		perRow += estimatedColumnWidth(col.Type)
	}
	return info.RowCount * perRow, nil
}

func estimatedColumnWidth(colType string) int64 {
	upper := strings.ToUpper(colType)
	switch {
	case strings.Contains(upper, "BIGINT"),
		strings.Contains(upper, "DOUBLE"),
		strings.Contains(upper, "TIMESTAMP"):
		return 8
	case strings.Contains(upper, "INTEGER"), strings.Contains(upper, "FLOAT"):
		return 4
	case strings.Contains(upper, "SMALLINT"):
		return 2
	case strings.Contains(upper, "BOOLEAN"), strings.Contains(upper, "TINYINT"):
		return 1
	case strings.Contains(upper, "VARCHAR"),
		strings.Contains(upper, "TEXT"),
		strings.Contains(upper, "BLOB"):
		return 64
	default:
		return 32
	}
}

// CreateTableAs materializes a query as a new table. The statement is
// auto-committed, so the catalog entry is durable when this returns.
func (s *Store) CreateTableAs(ctx context.Context, name, query string) error {
	s.logger.Debug("materializing table", "table", name)
	stmt := fmt.Sprintf("CREATE TABLE %s AS %s", QuoteIdent(name), query)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to materialize %s: %w", name, err)
	}
	return nil
}

// DropTable drops a table if it exists.
func (s *Store) DropTable(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(name))
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

// DropView drops a view if it exists. Used for transient scan views.
func (s *Store) DropView(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP VIEW IF EXISTS %s", QuoteIdent(name))
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop view %s: %w", name, err)
	}
	return nil
}

// QuoteIdent quotes an identifier for safe interpolation into SQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string literal, typically a file path.
func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
