package pgwire

import (
	"context"
	"fmt"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/jackc/pgproto3/v2"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// preparedStatement is one named (or unnamed, name="") statement created
// by Parse and later bound/executed.
type preparedStatement struct {
	query string
	plan  sql.Node
}

// portal is one named (or unnamed) bound statement ready for Execute.
type portal struct {
	stmt     *preparedStatement
	bindings map[string]sql.Expression
}

func (c *conn) handleParse(ctx context.Context, m *pgproto3.Parse) {
	if c.statements == nil {
		c.statements = make(map[string]*preparedStatement)
	}
	if c.portals == nil {
		c.portals = make(map[string]*portal)
	}

	sqlText := preprocessSQL(m.Query)
	qctx := c.server.session.NewQueryContext(ctx)

	plan, err := c.server.session.PrepareQuery(qctx, sqlText)
	if err != nil {
		c.sendError(err)
		return
	}

	c.statements[m.Name] = &preparedStatement{query: sqlText, plan: plan}
	_ = c.backend.Send(&pgproto3.ParseComplete{})
}

// handleBind substitutes parameter values into a prepared plan. Parameter
// values arrive as raw text/binary bytes; this server only supports the
// text format client-side, consistent with its text-only response
// encoding.
func (c *conn) handleBind(ctx context.Context, m *pgproto3.Bind) {
	stmt, ok := c.statements[m.PreparedStatement]
	if !ok {
		c.sendError(fmt.Errorf("pgwire: unknown prepared statement %q: %w", m.PreparedStatement, txerrors.ErrUnimplemented))
		return
	}

	bindings := make(map[string]sql.Expression, len(m.Parameters))
	for i, raw := range m.Parameters {
		bindings[fmt.Sprintf("v%d", i+1)] = expression.NewLiteral(string(raw), types.Text)
	}

	c.portals[m.DestinationPortal] = &portal{stmt: stmt, bindings: bindings}
	_ = c.backend.Send(&pgproto3.BindComplete{})
}

func (c *conn) handleDescribe(ctx context.Context, m *pgproto3.Describe) {
	var schema sql.Schema
	switch m.ObjectType {
	case 'S':
		if stmt, ok := c.statements[m.Name]; ok {
			schema = stmt.plan.Schema()
		}
	case 'P':
		if p, ok := c.portals[m.Name]; ok {
			schema = p.stmt.plan.Schema()
		}
	}

	if len(schema) == 0 {
		_ = c.backend.Send(&pgproto3.NoData{})
		return
	}
	_ = c.backend.Send(rowDescription(schema))
}

// handleExecute runs a bound portal's plan and streams results.
func (c *conn) handleExecute(ctx context.Context, m *pgproto3.Execute) {
	start := time.Now()
	defer func() {
		queryMetrics.latencyMs.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	p, ok := c.portals[m.Portal]
	if !ok {
		c.sendError(fmt.Errorf("pgwire: unknown portal %q: %w", m.Portal, txerrors.ErrUnimplemented))
		return
	}

	qctx := c.server.session.NewQueryContext(ctx)
	schema, iter, err := c.server.session.ExecutePrepared(qctx, p.stmt.plan, p.bindings)
	if err != nil {
		c.sendError(err)
		return
	}
	c.streamResults(qctx, schema, iter, p.stmt.query)
}
