package pgwire

import (
	"testing"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/stretchr/testify/assert"
)

func TestPreprocessSQLRewritesShowTransactionIsolation(t *testing.T) {
	out := preprocessSQL("SHOW transaction_isolation")
	assert.Equal(t, "SELECT 'read committed' AS transaction_isolation", out)
}

func TestPreprocessSQLRewritesShowTransactionIsolationLevel(t *testing.T) {
	out := preprocessSQL("show   TRANSACTION ISOLATION LEVEL")
	assert.Equal(t, "SELECT 'read committed' AS transaction_isolation", out)
}

func TestPreprocessSQLStripsRegclassCast(t *testing.T) {
	out := preprocessSQL("SELECT oid::regclass FROM pg_class")
	assert.Equal(t, "SELECT oid FROM pg_class", out)
}

func TestPreprocessSQLLeavesOrdinarySQLUntouched(t *testing.T) {
	out := preprocessSQL("SELECT COUNT(*) FROM otel_logs_and_spans")
	assert.Equal(t, "SELECT COUNT(*) FROM otel_logs_and_spans", out)
}

func TestIsWriteVerb(t *testing.T) {
	assert.True(t, isWriteVerb("INSERT INTO t VALUES (1)"))
	assert.True(t, isWriteVerb("  update t set x=1"))
	assert.True(t, isWriteVerb("DELETE FROM t"))
	assert.False(t, isWriteVerb("SELECT 1"))
}

func TestCommandTag(t *testing.T) {
	assert.Equal(t, "INSERT 0 2", string(commandTag("INSERT INTO t VALUES (1),(2)", 2)))
	assert.Equal(t, "UPDATE 3", string(commandTag("UPDATE t SET x=1", 3)))
	assert.Equal(t, "DELETE 1", string(commandTag("DELETE FROM t", 1)))
	assert.Equal(t, "SELECT 5", string(commandTag("SELECT * FROM t", 5)))
}

func TestOIDForTypeMapping(t *testing.T) {
	assert.Equal(t, uint32(oidTimestamp), oidFor(types.Timestamp))
	assert.Equal(t, uint32(oidInt8), oidFor(types.Int64))
	assert.Equal(t, uint32(oidInt4), oidFor(types.Int32))
	assert.Equal(t, uint32(oidText), oidFor(types.Text))
}

func TestEncodeValueTimestampMicrosecondPrecision(t *testing.T) {
	ts := time.Date(2023, 1, 1, 10, 0, 0, 123456000, time.UTC)
	out, err := encodeValue(types.Timestamp, ts)
	assert.NoError(t, err)
	assert.Equal(t, "2023-01-01 10:00:00.123456", out)
}

func TestEncodeValueBool(t *testing.T) {
	out, err := encodeValue(types.Boolean, true)
	assert.NoError(t, err)
	assert.Equal(t, "t", out)
}

func TestEncodeRowOmitsNulls(t *testing.T) {
	schema := sql.Schema{
		{Name: "a", Type: types.Text},
		{Name: "b", Type: types.Int64},
	}
	out, err := encodeRow(schema, sql.Row{nil, int64(42)})
	assert.NoError(t, err)
	assert.Nil(t, out[0])
	assert.Equal(t, []byte("42"), out[1])
}
