package vtable

import (
	"testing"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/stretchr/testify/assert"

	"github.com/apitoolkit/timefusion/internal/catalog"
	"github.com/apitoolkit/timefusion/internal/otelschema"
	"github.com/apitoolkit/timefusion/internal/txerrors"
	"github.com/apitoolkit/timefusion/internal/txtable"
	"github.com/apitoolkit/timefusion/internal/writecoord"
)

func projectIDEquals(value string) sql.Expression {
	col := expression.NewGetField(otelschema.ColumnIndex("project_id"), otelschema.Columns()[otelschema.ColumnIndex("project_id")].Type, "project_id", true)
	return expression.NewEquals(col, expression.NewLiteral(value, otelschema.Columns()[otelschema.ColumnIndex("project_id")].Type))
}

func newTestTable() *RoutingTable {
	cat := catalog.New(txtable.Location{Bucket: "b", Prefix: "p", Endpoint: "http://localhost:9000"})
	coord := writecoord.New(cat)
	return New(cat, coord, catalog.DefaultProject)
}

func TestBoundProjectIDDefaultsWhenNoFilter(t *testing.T) {
	rt := newTestTable()
	assert.Equal(t, catalog.DefaultProject, rt.boundProjectID())
}

func TestBoundProjectIDExtractsEquals(t *testing.T) {
	rt := newTestTable()
	rt.filters = []sql.Expression{projectIDEquals("acme")}
	assert.Equal(t, "acme", rt.boundProjectID())
}

func TestBoundProjectIDRecursesThroughNot(t *testing.T) {
	rt := newTestTable()
	rt.filters = []sql.Expression{expression.NewNot(projectIDEquals("acme"))}
	assert.Equal(t, "acme", rt.boundProjectID())
}

func TestBoundProjectIDFirstMatchWins(t *testing.T) {
	rt := newTestTable()
	rt.filters = []sql.Expression{projectIDEquals("first"), projectIDEquals("second")}
	assert.Equal(t, "first", rt.boundProjectID())
}

func TestHandledFiltersOnlyRecognizesProjectPredicate(t *testing.T) {
	rt := newTestTable()
	unrelated := expression.NewEquals(
		expression.NewGetField(otelschema.ColumnIndex("level"), otelschema.Columns()[otelschema.ColumnIndex("level")].Type, "level", true),
		expression.NewLiteral("ERROR", otelschema.Columns()[otelschema.ColumnIndex("level")].Type),
	)
	project := projectIDEquals("acme")

	handled := rt.HandledFilters([]sql.Expression{unrelated, project})
	assert.Len(t, handled, 1)
	assert.Equal(t, project, handled[0])
}

func TestWithFiltersReturnsIndependentCopy(t *testing.T) {
	rt := newTestTable()
	withFilters := rt.WithFilters(nil, []sql.Expression{projectIDEquals("acme")})

	assert.Empty(t, rt.Filters(), "original table must be unaffected by WithFilters")
	assert.Len(t, withFilters.(*RoutingTable).Filters(), 1)
}

func TestSchemaEndsWithPartitionColumns(t *testing.T) {
	rt := newTestTable()
	s := rt.Schema()
	assert.Equal(t, "project_id", s[len(s)-2].Name)
	assert.Equal(t, "timestamp", s[len(s)-1].Name)
}

func wellTypedRow(cols sql.Schema) sql.Row {
	row := make(sql.Row, len(cols))
	row[otelschema.ColumnIndex("project_id")] = "acme"
	row[otelschema.ColumnIndex("timestamp")] = time.Now().UTC()
	row[otelschema.ColumnIndex("name")] = "GET /health"
	return row
}

func TestRowMatchesSchemaAcceptsWellTypedRow(t *testing.T) {
	cols := otelschema.Columns()
	assert.NoError(t, rowMatchesSchema(cols, wellTypedRow(cols)))
}

func TestRowMatchesSchemaRejectsWrongArity(t *testing.T) {
	cols := otelschema.Columns()
	short := make(sql.Row, len(cols)-1)
	err := rowMatchesSchema(cols, short)
	assert.ErrorIs(t, err, txerrors.ErrSchemaMismatch)
}

func TestRowMatchesSchemaRejectsTypeMismatch(t *testing.T) {
	cols := otelschema.Columns()
	row := wellTypedRow(cols)
	// timestamp column holds a string instead of a time.Time: same
	// arity as a well-typed row, but not name-and-type equivalent.
	row[otelschema.ColumnIndex("timestamp")] = "2023-01-01T10:00:00Z"

	err := rowMatchesSchema(cols, row)
	assert.ErrorIs(t, err, txerrors.ErrSchemaMismatch)
}

func TestRowMatchesSchemaIgnoresNullOptionalColumns(t *testing.T) {
	cols := otelschema.Columns()
	row := wellTypedRow(cols)
	row[otelschema.ColumnIndex("name")] = nil

	assert.NoError(t, rowMatchesSchema(cols, row))
}
