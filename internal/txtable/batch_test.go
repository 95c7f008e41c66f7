package txtable

import (
	"testing"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/stretchr/testify/assert"
)

func TestBatchRowCount(t *testing.T) {
	b := Batch{sql.Row{"a"}, sql.Row{"b"}, sql.Row{"c"}}
	assert.Equal(t, 3, b.RowCount())
}

func TestBatchRowCountEmpty(t *testing.T) {
	var b Batch
	assert.Equal(t, 0, b.RowCount())
}
