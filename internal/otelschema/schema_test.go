package otelschema

import (
	"testing"

	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsEndsWithPartitionColumns(t *testing.T) {
	cols := Columns()
	require.GreaterOrEqual(t, len(cols), 2)

	projectID := cols[len(cols)-2]
	timestamp := cols[len(cols)-1]

	assert.Equal(t, "project_id", projectID.Name)
	assert.False(t, projectID.Nullable)
	assert.Equal(t, types.Text, projectID.Type)

	assert.Equal(t, "timestamp", timestamp.Name)
	assert.False(t, timestamp.Nullable)
	assert.Equal(t, types.Timestamp, timestamp.Type)
}

func TestPartitionsOrder(t *testing.T) {
	assert.Equal(t, []string{"project_id", "timestamp"}, Partitions())
}

func TestSchemaRefIsStable(t *testing.T) {
	a := SchemaRef()
	b := SchemaRef()
	assert.Same(t, &a[0], &b[0])
}

func TestColumnIndex(t *testing.T) {
	assert.GreaterOrEqual(t, ColumnIndex("project_id"), 0)
	assert.GreaterOrEqual(t, ColumnIndex("timestamp"), 0)
	assert.Equal(t, -1, ColumnIndex("does_not_exist"))
}
