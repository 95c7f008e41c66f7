// Package sqlsession builds the embedded go-mysql-server query engine: a
// catalog-backed database exposing the routing table under the name
// "otel_logs_and_spans", plus the pg_settings/set_config compatibility
// shims standard PostgreSQL clients expect during their handshake
// preamble.
package sqlsession

import (
	"context"
	"fmt"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/sql"

	"github.com/apitoolkit/timefusion/internal/catalog"
	"github.com/apitoolkit/timefusion/internal/vtable"
	"github.com/apitoolkit/timefusion/internal/writecoord"
)

// DatabaseName is the logical database every connection defaults into.
const DatabaseName = "timefusion"

// Session wraps a configured go-mysql-server engine.
type Session struct {
	engine *sqle.Engine
}

// New builds a Session backed by cat/coord.
func New(cat *catalog.Catalog, coord *writecoord.Coordinator) (*Session, error) {
	db := memory.NewDatabase(DatabaseName)
	db.AddTable(vtable.Name, vtable.New(cat, coord, catalog.DefaultProject))
	db.AddTable("pg_settings", pgSettingsTable{})

	provider := memory.NewDBProvider(db)
	engine := sqle.NewDefault(provider)

	if err := engine.Analyzer.Catalog.RegisterFunction(newContext(), sql.FunctionN{
		Name: "set_config",
		Fn:   newSetConfigFunc,
	}); err != nil {
		return nil, fmt.Errorf("sqlsession: register set_config: %w", err)
	}

	return &Session{engine: engine}, nil
}

func newContext() *sql.Context {
	ctx := sql.NewContext(context.Background(), sql.WithSession(sql.NewBaseSession()))
	ctx.SetCurrentDatabase(DatabaseName)
	return ctx
}

// NewQueryContext returns a fresh *sql.Context for one query, scoped to
// DatabaseName. Each query within a connection is serial, so a context
// is cheap to build per statement.
func (s *Session) NewQueryContext(ctx context.Context) *sql.Context {
	qctx := sql.NewContext(ctx, sql.WithSession(sql.NewBaseSession()))
	qctx.SetCurrentDatabase(DatabaseName)
	return qctx
}

// Query executes one SQL statement and returns its result schema and row
// iterator — the simple query path.
func (s *Session) Query(ctx *sql.Context, query string) (sql.Schema, sql.RowIter, error) {
	schema, iter, _, err := s.engine.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlsession: query: %w", err)
	}
	return schema, iter, nil
}

// PrepareQuery parses and optimizes query's logical plan ahead of bind —
// the extended query Parse step.
func (s *Session) PrepareQuery(ctx *sql.Context, query string) (sql.Node, error) {
	plan, err := s.engine.PrepareQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlsession: prepare: %w", err)
	}
	return plan, nil
}

// ExecutePrepared runs a previously prepared plan after parameter
// substitution has been applied by the caller — the extended query
// Execute step.
func (s *Session) ExecutePrepared(ctx *sql.Context, plan sql.Node, bindings map[string]sql.Expression) (sql.Schema, sql.RowIter, error) {
	schema, iter, _, err := s.engine.QueryWithBindings(ctx, "", plan, bindings, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlsession: execute prepared: %w", err)
	}
	return schema, iter, nil
}
