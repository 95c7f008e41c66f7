// Package vtable implements the routing table: the go-mysql-server
// virtual table that binds to a concrete per-project transactional table
// at plan time, via its sql.Table / sql.FilteredTable / sql.InsertableTable
// interfaces.
package vtable

import (
	"fmt"
	"io"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/types"

	"github.com/apitoolkit/timefusion/internal/catalog"
	"github.com/apitoolkit/timefusion/internal/otelschema"
	"github.com/apitoolkit/timefusion/internal/txerrors"
	"github.com/apitoolkit/timefusion/internal/txtable"
	"github.com/apitoolkit/timefusion/internal/writecoord"
)

// Name is the logical table name the SQL Session registers this table
// under.
const Name = otelschema.TableName

// RoutingTable is the virtual table backing Name. One instance is shared
// across every connection; WithFilters returns a shallow copy carrying
// the bound filter set's "clone is cheap (shared
// references)."
type RoutingTable struct {
	catalog        *catalog.Catalog
	coord          *writecoord.Coordinator
	defaultProject string
	filters        []sql.Expression
}

// New returns a RoutingTable backed by cat and coord, binding to
// defaultProject when no project_id predicate is present.
func New(cat *catalog.Catalog, coord *writecoord.Coordinator, defaultProject string) *RoutingTable {
	return &RoutingTable{catalog: cat, coord: coord, defaultProject: defaultProject}
}

func (t *RoutingTable) Name() string    { return Name }
func (t *RoutingTable) String() string  { return Name }
func (t *RoutingTable) Schema() sql.Schema { return otelschema.Columns() }
func (t *RoutingTable) Collation() sql.CollationID { return sql.Collation_Default }

// singlePartition is the only partition this table ever reports: the
// underlying transactional table already fans storage-level access out
// across its own data files, so the engine sees one logical partition per
// scan, matching the table's own Snapshot() granularity.
type singlePartition struct{}

func (singlePartition) Key() []byte { return []byte("routing-table-partition") }

type partitionIter struct {
	done bool
}

func (p *partitionIter) Next(*sql.Context) (sql.Partition, error) {
	if p.done {
		return nil, io.EOF
	}
	p.done = true
	return singlePartition{}, nil
}

func (p *partitionIter) Close(*sql.Context) error { return nil }

func (t *RoutingTable) Partitions(ctx *sql.Context) (sql.PartitionIter, error) {
	return &partitionIter{}, nil
}

// PartitionRows resolves the bound project, scans its
// table for the current snapshot, and returns the rows that satisfy every
// bound filter (the ones HandledFilters reported, which the engine no
// longer evaluates itself). All other filters are evaluated by the engine.
func (t *RoutingTable) PartitionRows(ctx *sql.Context, _ sql.Partition) (sql.RowIter, error) {
	projectID := t.boundProjectID()

	table, err := t.catalog.ResolveTable(projectID)
	if err != nil {
		return nil, err
	}

	rows, err := table.Scan(ctx.Context)
	if err != nil {
		return nil, err
	}
	kept := make([]sql.Row, 0, len(rows))
	for _, row := range rows {
		match := true
		for _, f := range t.filters {
			v, err := sql.EvaluateCondition(ctx, f, row)
			if err != nil {
				return nil, err
			}
			if !sql.IsTrue(v) {
				match = false
				break
			}
		}
		if match {
			kept = append(kept, row)
		}
	}
	return sql.RowsToRowIter(kept...), nil
}

// boundProjectID walks the bound filter list looking for a literal
// equality on project_id, through any number of NOT wrappers, first match
// wins; falls back to the configured default project.
func (t *RoutingTable) boundProjectID() string {
	for _, f := range t.filters {
		if id, ok := extractProjectEquals(f); ok {
			return id
		}
	}
	return t.defaultProject
}

func extractProjectEquals(e sql.Expression) (string, bool) {
	switch expr := e.(type) {
	case *expression.Equals:
		if id, ok := literalEqualsColumn(expr.Left(), expr.Right(), "project_id"); ok {
			return id, true
		}
		if id, ok := literalEqualsColumn(expr.Right(), expr.Left(), "project_id"); ok {
			return id, true
		}
	case *expression.Not:
		return extractProjectEquals(expr.Child)
	}
	return "", false
}

// literalEqualsColumn returns (value, true) when lit is a string literal
// and col references the named column.
func literalEqualsColumn(col, lit sql.Expression, name string) (string, bool) {
	gf, ok := col.(*expression.GetField)
	if !ok || gf.Name() != name {
		return "", false
	}
	l, ok := lit.(*expression.Literal)
	if !ok {
		return "", false
	}
	s, ok := l.Value().(string)
	if !ok {
		return "", false
	}
	return s, true
}

// Filters implements sql.FilteredTable.
func (t *RoutingTable) Filters() []sql.Expression { return t.filters }

// HandledFilters reports every filter this table recognizes for
// project-binding purposes. go-mysql-server hands exactly these filters to
// WithFilters and drops them from its own re-evaluation, so PartitionRows
// applies them to the scanned rows; every filter not reported here stays
// with the engine.
func (t *RoutingTable) HandledFilters(filters []sql.Expression) []sql.Expression {
	var handled []sql.Expression
	for _, f := range filters {
		if _, ok := extractProjectEquals(f); ok {
			handled = append(handled, f)
		}
	}
	return handled
}

// WithFilters returns a copy of t bound to filters; the copy is cheap
// since it shares the underlying catalog and coordinator references.
func (t *RoutingTable) WithFilters(ctx *sql.Context, filters []sql.Expression) sql.Table {
	next := *t
	next.filters = filters
	return &next
}

// Inserter implements sql.InsertableTable: the engine streams INSERT …
// SELECT batches through a RowInserter.
func (t *RoutingTable) Inserter(ctx *sql.Context) sql.RowInserter {
	return &insertSink{coord: t.coord}
}

// insertSink accumulates inserted rows and, on Close, hands them to the
// Write Coordinator against the default project — commits
// all streamed batches to "default" regardless of each row's own
// project_id; per-row dispatch is an open question, resolved
// in this repo by preserving that literal behavior (see DESIGN.md).
type insertSink struct {
	coord *writecoord.Coordinator
	rows  txtable.Batch
}

func (s *insertSink) Insert(ctx *sql.Context, row sql.Row) error {
	if err := rowMatchesSchema(otelschema.Columns(), row); err != nil {
		return err
	}
	s.rows = append(s.rows, row)
	return nil
}

// rowMatchesSchema checks row for name-and-type equivalence with cols, as
// required by the plan-build-time schema check (every non-null value
// must hold the Go representation its column's SQL type expects). The
// engine always projects an INSERT plan's source values into the
// destination table's Schema() order before calling Insert — one value
// per column, missing columns filled with nil — so a bare arity check
// alone would pass a row whose column count happens to match but whose
// types don't, silently corrupting the write path.
func rowMatchesSchema(cols sql.Schema, row sql.Row) error {
	if len(row) != len(cols) {
		return fmt.Errorf("vtable: insert row has %d values, table has %d columns: %w",
			len(row), len(cols), txerrors.ErrSchemaMismatch)
	}
	for i, c := range cols {
		if row[i] == nil {
			continue
		}
		if !valueMatchesType(c.Type, row[i]) {
			return fmt.Errorf("vtable: column %q expects %v, got %T: %w",
				c.Name, c.Type, row[i], txerrors.ErrSchemaMismatch)
		}
	}
	return nil
}

// valueMatchesType reports whether v holds the Go representation t's
// family expects, mirroring the same type-to-representation mapping
// internal/otelschema and internal/txtable use on the write and read
// paths (time.Time for Timestamp, string for Text, and so on).
func valueMatchesType(t sql.Type, v interface{}) bool {
	switch {
	case t == types.Timestamp:
		_, ok := v.(time.Time)
		return ok
	case t == types.Text:
		_, ok := v.(string)
		return ok
	case t == types.Int32:
		switch v.(type) {
		case int32, int:
			return true
		}
		return false
	case t == types.Int64:
		switch v.(type) {
		case int64, int:
			return true
		}
		return false
	case t == types.Uint64:
		switch v.(type) {
		case uint64, uint:
			return true
		}
		return false
	default:
		return true
	}
}

func (s *insertSink) Close(ctx *sql.Context) error {
	if len(s.rows) == 0 {
		return nil
	}
	if err := s.coord.InsertBatches(ctx.Context, catalog.DefaultProject, s.rows); err != nil {
		return fmt.Errorf("vtable: insert: %w", err)
	}
	return nil
}

var (
	_ sql.Table           = (*RoutingTable)(nil)
	_ sql.FilteredTable   = (*RoutingTable)(nil)
	_ sql.InsertableTable = (*RoutingTable)(nil)
	_ sql.RowInserter     = (*insertSink)(nil)
)
