package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/pkg/storage"
)

const peopleCSV = `name,age,city,score
Alice,30,New York,95.5
Bob,25,San Francisco,88.0
Charlie,35,Chicago,72.3
Diana,28,Boston,91.1
Eve,32,Seattle,85.7
`

const smallCSV = `name,age,city,score
Alice,30,New York,95.5
Bob,25,San Francisco,88.0
Charlie,35,Chicago,72.3
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newScratch(t *testing.T) *Session {
	t.Helper()
	s, err := New(Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ipcRows decodes an Arrow IPC stream and returns its total row count.
func ipcRows(t *testing.T, buf []byte) int64 {
	t.Helper()
	rdr, err := ipc.NewReader(bytes.NewReader(buf))
	require.NoError(t, err)
	defer rdr.Release()

	var total int64
	for rdr.Next() {
		total += rdr.Record().NumRows()
	}
	require.NoError(t, rdr.Err())
	return total
}

// ipcCols decodes an Arrow IPC stream and returns its column names.
func ipcCols(t *testing.T, buf []byte) []string {
	t.Helper()
	rdr, err := ipc.NewReader(bytes.NewReader(buf))
	require.NoError(t, err)
	defer rdr.Release()

	fields := rdr.Schema().Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestImportFile_NamedAndPreview(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	name, err := s.ImportFile(ctx, csv, "people")
	require.NoError(t, err)
	assert.Equal(t, "people", name)

	buf, err := s.GetPreview(ctx, "people", 10)
	require.NoError(t, err)
	assert.EqualValues(t, 5, ipcRows(t, buf))
	assert.Equal(t, []string{"name", "age", "city", "score"}, ipcCols(t, buf))
}

func TestImportFile_AutoNameDistinctFromStem(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	name, err := s.ImportFile(ctx, csv, "")
	require.NoError(t, err)
	assert.NotEqual(t, "people", name)
	assert.Regexp(t, `^people_\d+$`, name)

	count, err := s.GetRowCount(ctx, name)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestImportFile_DuplicateName(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	_, err := s.ImportFile(ctx, csv, "people")
	require.NoError(t, err)

	_, err = s.ImportFile(ctx, csv, "people")
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Collisions fold case.
	_, err = s.ImportFile(ctx, csv, "PEOPLE")
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestImportFile_InvalidName(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	for _, bad := range []string{"has space", "semi;colon", "1leading", "da-sh"} {
		_, err := s.ImportFile(ctx, csv, bad)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
	assert.Empty(t, s.ListDatasets())
}

func TestImportFile_MissingFile(t *testing.T) {
	s := newScratch(t)
	_, err := s.ImportFile(context.Background(), "/nonexistent/data.csv", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImportFile_UnsupportedFormat(t *testing.T) {
	s := newScratch(t)
	path := writeFile(t, "data.xlsx", "not a spreadsheet")

	_, err := s.ImportFile(context.Background(), path, "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Empty(t, s.ListDatasets())
}

func TestScanFile_Transient(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	name, err := s.ScanFile(ctx, csv)
	require.NoError(t, err)
	assert.Contains(t, s.ListDatasets(), name)

	info, err := s.DescribeDataset(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, Transient, info.Kind)
	assert.Equal(t, csv, info.SourcePath)
	assert.EqualValues(t, 5, info.RowCount)

	buf, err := s.GetPreview(ctx, name, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, ipcRows(t, buf))
}

func TestGetPreview_ZeroLimit(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "t")
	require.NoError(t, err)

	buf, err := s.GetPreview(ctx, "t", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ipcRows(t, buf))
	assert.Len(t, ipcCols(t, buf), 4)
}

func TestGetChunk_PaginationComplete(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "t")
	require.NoError(t, err)

	total, err := s.GetRowCount(ctx, "t")
	require.NoError(t, err)

	var chunked int64
	for offset := int64(0); offset < total; offset += 2 {
		buf, err := s.GetChunk(ctx, "t", offset, 2)
		require.NoError(t, err)
		chunked += ipcRows(t, buf)
	}

	full, err := s.GetPreview(ctx, "t", total)
	require.NoError(t, err)
	assert.Equal(t, ipcRows(t, full), chunked)
	assert.Equal(t, total, chunked)
}

func TestGetChunk_PastEnd(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "t")
	require.NoError(t, err)

	buf, err := s.GetChunk(ctx, "t", 100, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 0, ipcRows(t, buf))
}

func TestGetChunk_NegativeArgs(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "t")
	require.NoError(t, err)

	_, err = s.GetChunk(ctx, "t", -1, 2)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.GetChunk(ctx, "t", 0, -2)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetRowCount_Unknown(t *testing.T) {
	s := newScratch(t)
	_, err := s.GetRowCount(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRemoveDataset_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "remove_me")
	require.NoError(t, err)

	removed, err := s.RemoveDataset(ctx, "remove_me")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NotContains(t, s.ListDatasets(), "remove_me")

	removed, err = s.RemoveDataset(ctx, "remove_me")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRemoveDataset_BytesSurviveRemoval(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "t")
	require.NoError(t, err)

	buf, err := s.GetPreview(ctx, "t", 5)
	require.NoError(t, err)

	_, err = s.RemoveDataset(ctx, "t")
	require.NoError(t, err)

	// Previously returned wire bytes are independent copies.
	assert.EqualValues(t, 5, ipcRows(t, buf))
}

func TestRemoveDataset_TransientDropsView(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	name, err := s.ScanFile(ctx, csv)
	require.NoError(t, err)

	removed, err := s.RemoveDataset(ctx, name)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = s.GetRowCount(ctx, name)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestListDatasets_SortedAndDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	for _, name := range []string{"zebra", "apple", "mango"} {
		_, err := s.ImportFile(ctx, csv, name)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, s.ListDatasets())
}

func TestAutoNames_AlwaysDistinct(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	seen := map[string]bool{}
	record := func(name string) {
		assert.False(t, seen[name], "name %q allocated twice", name)
		seen[name] = true
	}

	for i := 0; i < 3; i++ {
		name, err := s.ImportFile(ctx, csv, "")
		require.NoError(t, err)
		record(name)

		name, err = s.ScanFile(ctx, csv)
		require.NoError(t, err)
		record(name)

		name, err = s.ExecuteSQL(ctx, "SELECT 1 AS one")
		require.NoError(t, err)
		record(name)
	}
	assert.Len(t, s.ListDatasets(), len(seen))
}

func TestDescribeDataset(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "info_test")
	require.NoError(t, err)

	info, err := s.DescribeDataset(ctx, "info_test")
	require.NoError(t, err)
	assert.Equal(t, Persisted, info.Kind)
	assert.Len(t, info.Columns, 4)
	assert.Equal(t, "name", info.Columns[0].Name)
	assert.EqualValues(t, 5, info.RowCount)
	assert.Positive(t, info.EstimatedSizeBytes)
}

func TestExport_CSVAndParquet(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)
	_, err := s.ImportFile(ctx, csv, "export_test")
	require.NoError(t, err)

	outDir := t.TempDir()

	outCSV := filepath.Join(outDir, "out.csv")
	require.NoError(t, s.ExportCSV(ctx, "export_test", outCSV))
	content, err := os.ReadFile(outCSV)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Alice")

	outParquet := filepath.Join(outDir, "out.parquet")
	require.NoError(t, s.ExportParquet(ctx, "export_test", outParquet))

	// Round-trip the parquet file through a fresh import.
	name, err := s.ImportFile(ctx, outParquet, "reimported")
	require.NoError(t, err)
	count, err := s.GetRowCount(ctx, name)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
}

func TestExport_UnknownDataset(t *testing.T) {
	s := newScratch(t)
	err := s.ExportCSV(context.Background(), "ghost", filepath.Join(t.TempDir(), "out.csv"))
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestNewProject_RejectsExisting(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)

	path := filepath.Join(t.TempDir(), "project.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	err := s.NewProject(ctx, path)
	assert.ErrorIs(t, err, ErrProjectExists)
}

func TestOpenProject_NotFound(t *testing.T) {
	s := newScratch(t)
	_, err := s.OpenProject(context.Background(), filepath.Join(t.TempDir(), "missing.db"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenProject_InvalidFile(t *testing.T) {
	s := newScratch(t)
	path := writeFile(t, "garbage.db", "this is not a database")

	_, err := s.OpenProject(context.Background(), path)
	assert.ErrorIs(t, err, ErrInvalidProject)
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.db")
	csv := writeFile(t, "people.csv", peopleCSV)

	s, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, s.NewProject(ctx, projectPath))
	assert.Equal(t, projectPath, s.ProjectPath())

	_, err = s.ImportFile(ctx, csv, "my_data")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	names, err := reopened.OpenProject(ctx, projectPath)
	require.NoError(t, err)
	assert.Contains(t, names, "my_data")

	count, err := reopened.GetRowCount(ctx, "my_data")
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	info, err := reopened.DescribeDataset(ctx, "my_data")
	require.NoError(t, err)
	assert.Equal(t, Persisted, info.Kind)
	assert.Len(t, info.Columns, 4)
}

func TestPersistence_ScanNeverTouchesProject(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	projectPath := filepath.Join(dir, "project.db")
	csv := writeFile(t, "people.csv", peopleCSV)

	s, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, s.NewProject(ctx, projectPath))

	scanned, err := s.ScanFile(ctx, csv)
	require.NoError(t, err)
	assert.Contains(t, s.ListDatasets(), scanned)
	require.NoError(t, s.Close())

	reopened, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	names, err := reopened.OpenProject(ctx, projectPath)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestPersistence_RemovalDurable(t *testing.T) {
	ctx := context.Background()
	projectPath := filepath.Join(t.TempDir(), "project.db")
	csv := writeFile(t, "people.csv", peopleCSV)

	s, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, s.NewProject(ctx, projectPath))
	_, err = s.ImportFile(ctx, csv, "gone")
	require.NoError(t, err)

	removed, err := s.RemoveDataset(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, removed)
	require.NoError(t, s.Close())

	reopened, err := New(Options{})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	names, err := reopened.OpenProject(ctx, projectPath)
	require.NoError(t, err)
	assert.NotContains(t, names, "gone")
}

func TestSessionInterop_TransientVisibleToSQL(t *testing.T) {
	ctx := context.Background()
	s := newScratch(t)
	csv := writeFile(t, "people.csv", peopleCSV)

	scanned, err := s.ScanFile(ctx, csv)
	require.NoError(t, err)

	buf, err := s.QueryIPC(ctx, "SELECT COUNT(*) AS n FROM "+storage.QuoteIdent(scanned))
	require.NoError(t, err)
	assert.EqualValues(t, 1, ipcRows(t, buf))
}
