// Package session implements the Quarry analytical session: a stateful
// owner of one DuckDB project that tracks a registry of named datasets and
// exposes import, query, pagination, export, and removal operations.
//
// A Session starts bound to an in-memory scratch database; NewProject and
// OpenProject rebind it to a project file on disk. Persisted datasets live
// in the project file and survive reopen; transient datasets are
// connection-scoped scan views that vanish with the session.
//
// All tabular payloads leave the session as Arrow IPC stream bytes.
//
// A Session serializes its operations with one coarse lock: name
// allocation and registration are observed as a single atomic step, and
// the registry never diverges from the project catalog on a successful
// call.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quarrylabs/quarry/pkg/storage"
)

// Options configures a new Session.
type Options struct {
	// Logger is the structured logger (optional, discards if nil).
	Logger *slog.Logger
}

// Session owns one open project and its dataset registry.
type Session struct {
	mu       sync.Mutex
	store    *storage.Store
	registry *registry
	counter  uint64
	logger   *slog.Logger
}

// DatasetInfo is the caller-facing description of one dataset.
type DatasetInfo struct {
	Name               string
	Kind               Kind
	Columns            []storage.Column
	RowCount           int64
	EstimatedSizeBytes int64
	// SourcePath is the backing file for transient scans.
	SourcePath string
}

// New creates a session bound to an in-memory scratch database.
func New(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.OpenInMemory(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}

	return &Session{
		store:    store,
		registry: newRegistry(),
		logger:   logger,
	}, nil
}

// Close releases the storage handle. The session must not be used after.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

// ProjectPath returns the bound project file path, or ":memory:" in
// scratch mode.
func (s *Session) ProjectPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ""
	}
	return s.store.Path()
}

// NewProject creates a new project file and binds the session to it.
// Fails with ErrProjectExists if something already exists at path. Any
// previously bound project is closed; transient datasets are discarded.
func (s *Session) NewProject(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrProjectExists, path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.logger.Info("creating project", "path", path)
	return s.rebind(path)
}

// OpenProject binds the session to an existing project file and returns
// the persisted dataset names found in its catalog, sorted. Fails with
// ErrNotFound if the file is missing and ErrInvalidProject if it is not a
// valid project database.
func (s *Session) OpenProject(ctx context.Context, path string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.logger.Info("opening project", "path", path)
	if err := s.rebind(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProject, path, err)
	}

	// Reconcile the registry with the catalog.
	tables, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProject, path, err)
	}
	for _, table := range tables {
		info, err := s.store.TableInfo(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidProject, path, err)
		}
		ds := &Dataset{
			Name:     table,
			Kind:     Persisted,
			Columns:  info.Columns,
			rowCount: info.RowCount,
		}
		if err := s.registry.register(ds); err != nil {
			return nil, err
		}
	}

	s.logger.Info("project opened", "path", path, "table_count", len(tables))
	return s.registry.names(), nil
}

// rebind swaps the backing store and resets the registry. Must be called
// with s.mu held.
func (s *Session) rebind(path string) error {
	store, err := storage.Open(path, s.logger)
	if err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("error closing previous project", "error", err)
		}
	}
	s.store = store
	s.registry.reset()
	return nil
}

// ImportFile copies a source file into the project as a persisted dataset
// and returns its name. When name is empty, one is generated from the
// file's base name, always distinct from the bare stem and from every
// registered name. Supported formats: csv, tsv, parquet/pq,
// arrow/ipc/feather.
func (s *Session) ImportFile(ctx context.Context, path, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSourceFile(path); err != nil {
		return "", err
	}

	if name != "" {
		if err := s.checkNewName(name); err != nil {
			return "", err
		}
	} else {
		name = s.allocateName(fileStem(path))
	}

	s.logger.Info("importing file", "path", path, "table", name)
	if err := s.store.ImportFile(ctx, path, name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := s.registerTable(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// ScanFile registers a transient dataset over a source file and returns
// its generated name. The file is read lazily; nothing is written to the
// project, and the dataset disappears when the session ends.
func (s *Session) ScanFile(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSourceFile(path); err != nil {
		return "", err
	}

	name := s.allocateName(fileStem(path))

	s.logger.Info("scanning file", "path", path, "view", name)
	if err := s.store.CreateScanView(ctx, path, name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}

	info, err := s.store.TableInfo(ctx, name)
	if err != nil {
		_ = s.store.DropView(ctx, name)
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}

	ds := &Dataset{
		Name:       name,
		Kind:       Transient,
		Columns:    info.Columns,
		SourcePath: path,
		rowCount:   info.RowCount,
	}
	if err := s.registry.register(ds); err != nil {
		_ = s.store.DropView(ctx, name)
		return "", err
	}
	return name, nil
}

// checkSourceFile verifies existence before format resolution, per the
// error contract of import and scan.
func (s *Session) checkSourceFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	_, err := storage.DetectFormat(path)
	return err
}

// registerTable reads a just-created table's metadata and registers it as
// a persisted dataset, dropping the table again if registration fails so
// catalog and registry stay in sync. Must be called with s.mu held.
func (s *Session) registerTable(ctx context.Context, name string) error {
	info, err := s.store.TableInfo(ctx, name)
	if err != nil {
		_ = s.store.DropTable(ctx, name)
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	ds := &Dataset{
		Name:     name,
		Kind:     Persisted,
		Columns:  info.Columns,
		rowCount: info.RowCount,
	}
	if err := s.registry.register(ds); err != nil {
		_ = s.store.DropTable(ctx, name)
		return err
	}
	return nil
}

// ListDatasets returns all registered dataset names in lexicographic
// order.
func (s *Session) ListDatasets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.names()
}

// DescribeDataset returns metadata for one dataset: schema, current row
// count, persistence kind, and an estimated in-memory size for persisted
// datasets.
func (s *Session) DescribeDataset(ctx context.Context, name string) (*DatasetInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	count, err := s.resolveRowCount(ctx, ds)
	if err != nil {
		return nil, err
	}

	info := &DatasetInfo{
		Name:       ds.Name,
		Kind:       ds.Kind,
		Columns:    ds.Columns,
		RowCount:   count,
		SourcePath: ds.SourcePath,
	}
	if ds.Kind == Persisted {
		size, err := s.store.EstimatedSize(ctx, ds.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIO, err)
		}
		info.EstimatedSizeBytes = size
	}
	return info, nil
}

// RemoveDataset removes a dataset. Returns true if it was present and
// removed, false if it was already absent; absence is never an error. For
// persisted datasets the catalog change is committed before returning.
func (s *Session) RemoveDataset(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return false, nil
	}

	var err error
	if ds.Kind == Persisted {
		err = s.store.DropTable(ctx, ds.Name)
	} else {
		err = s.store.DropView(ctx, ds.Name)
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}

	s.registry.remove(name)
	s.logger.Info("dataset removed", "name", name, "kind", ds.Kind.String())
	return true, nil
}

// GetRowCount returns the exact number of rows currently in the dataset.
func (s *Session) GetRowCount(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return 0, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return s.resolveRowCount(ctx, ds)
}

// resolveRowCount counts rows and refreshes the descriptor's cache. Must
// be called with s.mu held.
func (s *Session) resolveRowCount(ctx context.Context, ds *Dataset) (int64, error) {
	count, err := s.store.RowCount(ctx, ds.Name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	ds.rowCount = count
	return count, nil
}

// GetPreview returns up to limit rows of the dataset as an Arrow IPC
// stream. limit = 0 yields a zero-row, schema-only stream.
func (s *Session) GetPreview(ctx context.Context, name string, limit int64) ([]byte, error) {
	return s.GetChunk(ctx, name, 0, limit)
}

// GetChunk returns rows [offset, offset+length) of the dataset as an
// Arrow IPC stream. An offset past the end yields a valid zero-row
// stream. Successive chunks over the full range reconstruct the dataset
// with no gaps or duplicates, absent concurrent mutation.
func (s *Session) GetChunk(ctx context.Context, name string, offset, length int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset %d and length %d must be non-negative", ErrValidation, offset, length)
	}

	ds := s.registry.lookup(name)
	if ds == nil {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	buf, err := s.store.TableChunkIPC(ctx, ds.Name, offset, length)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return buf, nil
}

// ExportCSV writes the full dataset to a CSV file with a header row,
// overwriting any existing file at path.
func (s *Session) ExportCSV(ctx context.Context, name, path string) error {
	return s.export(ctx, name, path, (*storage.Store).ExportCSV)
}

// ExportParquet writes the full dataset to a Parquet file, overwriting
// any existing file at path.
func (s *Session) ExportParquet(ctx context.Context, name, path string) error {
	return s.export(ctx, name, path, (*storage.Store).ExportParquet)
}

func (s *Session) export(ctx context.Context, name, path string, write func(*storage.Store, context.Context, string, string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.registry.lookup(name)
	if ds == nil {
		return fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}

	s.logger.Info("exporting dataset", "name", name, "path", path)
	if err := write(s.store, ctx, ds.Name, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// fileStem returns the sanitized base name of a path without extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeIdent(stem)
}
