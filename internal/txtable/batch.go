package txtable

import "github.com/dolthub/go-mysql-server/sql"

// Batch is the unit of commit: a slice of rows matching
// otelschema.Columns() exactly. go-mysql-server's engine streams INSERT
// data row-at-a-time (sql.Row) rather than as Arrow-style column vectors,
// so a batch here is row-major in memory; it is re-columnarized only when
// it reaches the parquet writer in datafile.go, which writes one column
// chunk per field as the format requires on disk.
type Batch []sql.Row

// RowCount returns the number of rows in the batch.
func (b Batch) RowCount() int {
	return len(b)
}
