package txtable

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/stretchr/testify/assert"

	"github.com/apitoolkit/timefusion/internal/otelschema"
)

func TestParquetJSONSchemaCoversAllColumns(t *testing.T) {
	schemaJSON := parquetJSONSchema(otelschema.Columns())
	assert.Contains(t, schemaJSON, "project_id")
	assert.Contains(t, schemaJSON, "timestamp")
	assert.Contains(t, schemaJSON, "REQUIRED", "project_id/timestamp must render as required fields")
}

func TestRowToJSONOmitsNulls(t *testing.T) {
	cols := otelschema.Columns()
	row := make([]interface{}, len(cols))
	row[otelschema.ColumnIndex("project_id")] = "acme"
	row[otelschema.ColumnIndex("name")] = "GET /health"

	body, err := rowToJSON(cols, row)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "acme")
	assert.NotContains(t, string(body), "parent_id")
}

func TestDayPartitionTruncatesToUTCDay(t *testing.T) {
	ts := time.Date(2026, 7, 31, 23, 59, 59, 0, time.UTC).UnixMicro()
	assert.Equal(t, "2026-07-31", DayPartition(ts))
}

func TestCoerceParquetValueTimestamp(t *testing.T) {
	micros := float64(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC).UnixMicro())
	v := coerceParquetValue(types.Timestamp, micros)
	tv, ok := v.(time.Time)
	assert.True(t, ok)
	assert.Equal(t, 2026, tv.Year())
}

func TestCoerceParquetValueInt(t *testing.T) {
	v := coerceParquetValue(types.Int64, float64(42))
	assert.Equal(t, int64(42), v)
}

func TestCoerceParquetValueTimestampNativeInt64(t *testing.T) {
	// ReadColumnByPath returns the column's native physical type for an
	// INT64 field (int64), not the generic float64 a JSON-decoded map
	// would hold.
	micros := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMicro()
	v := coerceParquetValue(types.Timestamp, micros)
	tv, ok := v.(time.Time)
	assert.True(t, ok)
	assert.Equal(t, micros, tv.UnixMicro())
}

func TestTimestampMicrosAcceptsTimeAndInt(t *testing.T) {
	want := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	got, ok := timestampMicros(want)
	assert.True(t, ok)
	assert.Equal(t, want.UnixMicro(), got)

	got, ok = timestampMicros(want.UnixMicro())
	assert.True(t, ok)
	assert.Equal(t, want.UnixMicro(), got)

	_, ok = timestampMicros("not a timestamp")
	assert.False(t, ok)
}

// TestTimestampRoundTripThroughJSONEncoding exercises the write-then-read
// path an INSERT ... SELECT TIMESTAMP literal actually takes: the engine
// binds the literal to a time.Time (rowToJSON's input shape), rowToJSON
// must render it as an INT64 micros value (not an RFC3339 string, which
// the parquet JSON writer's INT64 field cannot hold), and
// coerceParquetValue must convert that same micros value back into a
// time.Time equal to the original at microsecond resolution — the
// round-trip spec §8 requires.
func TestTimestampRoundTripThroughJSONEncoding(t *testing.T) {
	cols := otelschema.Columns()
	want := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)

	row := make(sql.Row, len(cols))
	row[otelschema.ColumnIndex("project_id")] = "test_project"
	row[otelschema.ColumnIndex("timestamp")] = want

	body, err := rowToJSON(cols, row)
	assert.NoError(t, err)
	assert.NotContains(t, string(body), "2023-01-01T10:00:00Z",
		"timestamp must be encoded as an integer micros value, not an RFC3339 string")

	var decoded map[string]interface{}
	assert.NoError(t, json.Unmarshal(body, &decoded))

	encodedMicros, ok := decoded["timestamp"].(float64)
	assert.True(t, ok, "timestamp must round-trip through JSON as a number")
	assert.Equal(t, float64(want.UnixMicro()), encodedMicros)

	got := coerceParquetValue(types.Timestamp, encodedMicros)
	gotTime, ok := got.(time.Time)
	assert.True(t, ok)
	assert.Equal(t, want.UnixMicro(), gotTime.UnixMicro())
}
