package sqlsession

import (
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"
)

// pgSettingsTable is the static pg_settings view carrying the minimum
// client-expected rows so off-the-shelf PostgreSQL drivers don't error
// out on their handshake preamble.
type pgSettingsTable struct{}

var pgSettingsSchema = sql.Schema{
	{Name: "name", Type: types.Text, Source: "pg_settings"},
	{Name: "setting", Type: types.Text, Source: "pg_settings"},
}

var pgSettingsRows = []sql.Row{
	{"TimeZone", "UTC"},
	{"client_encoding", "UTF8"},
	{"datestyle", "ISO, MDY"},
	{"client_min_messages", "notice"},
}

func (pgSettingsTable) Name() string             { return "pg_settings" }
func (pgSettingsTable) String() string            { return "pg_settings" }
func (pgSettingsTable) Schema() sql.Schema         { return pgSettingsSchema }
func (pgSettingsTable) Collation() sql.CollationID { return sql.Collation_Default }

func (pgSettingsTable) Partitions(*sql.Context) (sql.PartitionIter, error) {
	return sql.PartitionsToPartitionIter(staticPartition{}), nil
}

func (pgSettingsTable) PartitionRows(*sql.Context, sql.Partition) (sql.RowIter, error) {
	return sql.RowsToRowIter(pgSettingsRows...), nil
}

type staticPartition struct{}

func (staticPartition) Key() []byte { return []byte("pg_settings") }

var _ sql.Table = pgSettingsTable{}

// setConfigFunc implements set_config(name TEXT, value TEXT, is_local BOOL)
// → TEXT as a semantic no-op that returns value unchanged:
// enough for common client preambles like `SELECT set_config(...)` without
// actually modeling per-session GUCs.
type setConfigFunc struct {
	name, value, isLocal sql.Expression
}

func newSetConfigFunc(args ...sql.Expression) (sql.Expression, error) {
	if len(args) != 3 {
		return nil, sql.ErrInvalidArgNumber.New("set_config", 3, len(args))
	}
	return &setConfigFunc{name: args[0], value: args[1], isLocal: args[2]}, nil
}

func (f *setConfigFunc) Resolved() bool {
	return f.name.Resolved() && f.value.Resolved() && f.isLocal.Resolved()
}

func (f *setConfigFunc) String() string { return "set_config(name, value, is_local)" }

func (f *setConfigFunc) Type() sql.Type { return types.Text }

func (f *setConfigFunc) IsNullable() bool { return false }

func (f *setConfigFunc) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	return f.value.Eval(ctx, row)
}

func (f *setConfigFunc) Children() []sql.Expression {
	return []sql.Expression{f.name, f.value, f.isLocal}
}

func (f *setConfigFunc) WithChildren(children ...sql.Expression) (sql.Expression, error) {
	if len(children) != 3 {
		return nil, sql.ErrInvalidChildrenNumber.New(f, len(children), 3)
	}
	return &setConfigFunc{name: children[0], value: children[1], isLocal: children[2]}, nil
}

func (f *setConfigFunc) FunctionName() string { return "set_config" }

func (f *setConfigFunc) Description() string {
	return "returns value unchanged; session GUCs are not modeled"
}

var _ sql.FunctionExpression = (*setConfigFunc)(nil)
