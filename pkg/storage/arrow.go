package storage

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ipcBatchRows is the number of rows collected into one record batch.
const ipcBatchRows = 1024

// QueryIPC executes a query and serializes the full result set as an
// Arrow IPC stream. A query with zero result rows yields a valid
// schema-only stream. Batches are written incrementally so the full
// result is never held as one block.
func (s *Store) QueryIPC(ctx context.Context, query string) ([]byte, error) {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return encodeRowsIPC(rows)
}

// TableChunkIPC serializes rows [offset, offset+limit) of a table or view.
// An offset past the end yields a schema-only stream.
func (s *Store) TableChunkIPC(ctx context.Context, name string, offset, limit int64) ([]byte, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s LIMIT %d OFFSET %d",
		QuoteIdent(name), limit, offset,
	)
	return s.QueryIPC(ctx, query)
}

// TablePreviewIPC serializes the first limit rows of a table or view.
func (s *Store) TablePreviewIPC(ctx context.Context, name string, limit int64) ([]byte, error) {
	return s.TableChunkIPC(ctx, name, 0, limit)
}

// encodeRowsIPC drains a result set into an Arrow IPC stream.
func encodeRowsIPC(rows *sql.Rows) ([]byte, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read result column types: %w", err)
	}

	fields := make([]arrow.Field, len(cols))
	for i, name := range cols {
		fields[i] = arrow.Field{
			Name:     name,
			Type:     arrowTypeFor(colTypes[i].DatabaseTypeName()),
			Nullable: true,
		}
	}
	schema := arrow.NewSchema(fields, nil)

	mem := memory.DefaultAllocator
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(mem))

	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		rec := builder.NewRecord()
		defer rec.Release()
		pending = 0
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		return nil
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		for i, v := range values {
			if err := appendValue(builder.Field(i), v); err != nil {
				return nil, fmt.Errorf("column %s: %w", cols[i], err)
			}
		}
		pending++
		if pending >= ipcBatchRows {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}

	// Close writes the schema even when no batches were produced and
	// terminates the stream.
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish ipc stream: %w", err)
	}
	return buf.Bytes(), nil
}

// arrowTypeFor maps a DuckDB type name onto the Arrow type used on the
// wire. Types without a native mapping are carried as strings.
func arrowTypeFor(dbType string) arrow.DataType {
	upper := strings.ToUpper(dbType)
	switch {
	case upper == "BOOLEAN":
		return arrow.FixedWidthTypes.Boolean
	case strings.HasPrefix(upper, "UTINYINT"),
		strings.HasPrefix(upper, "USMALLINT"),
		strings.HasPrefix(upper, "UINTEGER"),
		strings.HasPrefix(upper, "UBIGINT"):
		return arrow.PrimitiveTypes.Uint64
	case upper == "TINYINT", upper == "SMALLINT", upper == "INTEGER", upper == "BIGINT":
		return arrow.PrimitiveTypes.Int64
	case upper == "FLOAT", upper == "REAL", upper == "DOUBLE":
		return arrow.PrimitiveTypes.Float64
	case strings.HasPrefix(upper, "TIMESTAMP"):
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case upper == "DATE":
		return arrow.FixedWidthTypes.Date32
	case upper == "BLOB":
		return arrow.BinaryTypes.Binary
	default:
		// DECIMAL, HUGEINT, UUID, INTERVAL, nested types.
		return arrow.BinaryTypes.String
	}
}

// appendValue appends one scanned driver value to a column builder.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch bld := b.(type) {
	case *array.BooleanBuilder:
		val, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		bld.Append(val)
	case *array.Int64Builder:
		val, err := toInt64(v)
		if err != nil {
			return err
		}
		bld.Append(val)
	case *array.Uint64Builder:
		val, err := toUint64(v)
		if err != nil {
			return err
		}
		bld.Append(val)
	case *array.Float64Builder:
		val, err := toFloat64(v)
		if err != nil {
			return err
		}
		bld.Append(val)
	case *array.TimestampBuilder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		bld.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.Date32Builder:
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("expected time.Time, got %T", v)
		}
		bld.Append(arrow.Date32FromTime(t))
	case *array.BinaryBuilder:
		val, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, got %T", v)
		}
		bld.Append(val)
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			bld.Append(s)
		} else {
			bld.Append(fmt.Sprint(v))
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected unsigned integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}
