package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleIPC builds a two-column stream with three rows, the last name null.
func sampleIPC(t *testing.T) []byte {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "age", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).AppendValues([]string{"Alice", "Bob", ""}, []bool{true, true, false})
	builder.Field(1).(*array.Int64Builder).AppendValues([]int64{30, 25, 40}, nil)

	rec := builder.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	require.NoError(t, writer.Write(rec))
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestDecodeStream(t *testing.T) {
	cols, results, err := decodeStream(sampleIPC(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "age"}, cols)
	require.Len(t, results, 3)
	assert.Equal(t, "Alice", results[0]["name"])
	assert.EqualValues(t, 30, results[0]["age"])
	assert.Nil(t, results[2]["name"])
}

func TestRenderIPC_Table(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderIPC(&out, sampleIPC(t), "table"))

	s := out.String()
	assert.Contains(t, s, "Alice")
	assert.Contains(t, s, "NULL")
	assert.Contains(t, s, "(3 rows)")
}

func TestRenderIPC_CSV(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderIPC(&out, sampleIPC(t), "csv"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name,age", lines[0])
	assert.Equal(t, "Alice,30", lines[1])
	assert.Equal(t, "NULL,40", lines[3])
}

func TestRenderIPC_Markdown(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderIPC(&out, sampleIPC(t), "markdown"))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "| name | age |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, "| Alice | 30 |", lines[2])
}

func TestRenderIPC_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderIPC(&out, sampleIPC(t), "json"))

	var results []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 3)
	assert.Equal(t, "Alice", results[0]["name"])
	assert.Nil(t, results[2]["name"])
}

func TestRenderTable_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderTable(&out, []string{"a"}, nil))
	assert.Equal(t, "(0 rows)\n", out.String())
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "plain", escapeCSV("plain"))
	assert.Equal(t, `"a,b"`, escapeCSV("a,b"))
	assert.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "text", formatValue([]byte("text")))
	assert.Equal(t, "42", formatValue(int64(42)))
}
