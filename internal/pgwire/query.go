package pgwire

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/jackc/pgproto3/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// writeVerbs are the statement keywords dispatched directly to the
// database verb rather than pre-processed and routed through the
// general query path.
var writeVerbs = []string{"INSERT", "UPDATE", "DELETE"}

var queryMetrics struct {
	latencyMs metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/apitoolkit/timefusion/pgwire")
	queryMetrics.latencyMs, _ = m.Float64Histogram("timefusion.pgwire.query_latency_ms",
		metric.WithDescription("time to execute and stream one statement (simple query or extended-query Execute)"),
		metric.WithUnit("ms"),
	)
}

// queryLoop runs the ReadyForQuery ↔ Query cycle until Terminate or a
// connection-level error (state machine).
func (c *conn) queryLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.backend.Receive()
		if err != nil {
			slog.Debug("pgwire: connection closed", "remote", c.netConn.RemoteAddr(), "err", err)
			return
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			c.handleSimpleQuery(ctx, m.String)
			if err := c.ready(); err != nil {
				return
			}
		case *pgproto3.Parse:
			c.handleParse(ctx, m)
		case *pgproto3.Bind:
			c.handleBind(ctx, m)
		case *pgproto3.Describe:
			c.handleDescribe(ctx, m)
		case *pgproto3.Execute:
			c.handleExecute(ctx, m)
		case *pgproto3.Sync:
			if err := c.ready(); err != nil {
				return
			}
		case *pgproto3.Terminate:
			return
		default:
			c.sendError(fmt.Errorf("pgwire: unsupported message %T: %w", m, txerrors.ErrUnimplemented))
		}
	}
}

// preprocessSQL rewrites a small, bounded set of client-dialect quirks so
// standard drivers can connect: `::regclass` casts are stripped, and
// `SHOW TRANSACTION ISOLATION LEVEL` is substituted with a literal
// select, covering the "SHOW transaction_isolation" style preambles
// off-the-shelf drivers send.
func preprocessSQL(query string) string {
	trimmed := strings.TrimSpace(query)
	upper := strings.Join(strings.Fields(strings.ToUpper(trimmed)), " ")

	switch {
	case strings.HasPrefix(upper, "SHOW TRANSACTION ISOLATION LEVEL"):
		return "SELECT 'read committed' AS transaction_isolation"
	case strings.HasPrefix(upper, "SHOW TRANSACTION_ISOLATION"):
		return "SELECT 'read committed' AS transaction_isolation"
	}

	return strings.ReplaceAll(trimmed, "::regclass", "")
}

func isWriteVerb(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, verb := range writeVerbs {
		if strings.HasPrefix(upper, verb) {
			return true
		}
	}
	return false
}

// handleSimpleQuery dispatches a simple-query message: write verbs
// execute directly (the engine's InsertableTable/sql.RowInserter path IS
// the database verb here, since DDL is unsupported and tables are
// implicit); everything else is pre-processed then run through the SQL
// engine.
func (c *conn) handleSimpleQuery(ctx context.Context, query string) {
	start := time.Now()
	defer func() {
		queryMetrics.latencyMs.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	sqlText := query
	if !isWriteVerb(query) {
		sqlText = preprocessSQL(query)
	}

	qctx := c.server.session.NewQueryContext(ctx)
	schema, iter, err := c.server.session.Query(qctx, sqlText)
	if err != nil {
		c.sendError(err)
		return
	}

	c.streamResults(qctx, schema, iter, query)
}

// streamResults sends RowDescription, then every DataRow, then
// CommandComplete. Row encoding is always textual: the server advertises
// Text in every FieldInfo regardless of the client's requested format.
func (c *conn) streamResults(qctx *sql.Context, schema sql.Schema, iter sql.RowIter, originalQuery string) {
	if len(schema) > 0 {
		if err := c.backend.Send(rowDescription(schema)); err != nil {
			return
		}
	}

	var count int64
	for {
		row, err := iter.Next(qctx)
		if err != nil {
			break // io.EOF or any terminal iterator error ends the stream
		}
		values, encErr := encodeRow(schema, row)
		if encErr != nil {
			c.sendError(encErr)
			_ = iter.Close(qctx)
			return
		}
		if err := c.backend.Send(&pgproto3.DataRow{Values: values}); err != nil {
			_ = iter.Close(qctx)
			return
		}
		count++
	}
	_ = iter.Close(qctx)

	_ = c.backend.Send(&pgproto3.CommandComplete{CommandTag: commandTag(originalQuery, count)})
}

func commandTag(query string, rows int64) []byte {
	upper := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(upper, "INSERT"):
		return []byte(fmt.Sprintf("INSERT 0 %d", rows))
	case strings.HasPrefix(upper, "UPDATE"):
		return []byte(fmt.Sprintf("UPDATE %d", rows))
	case strings.HasPrefix(upper, "DELETE"):
		return []byte(fmt.Sprintf("DELETE %d", rows))
	default:
		return []byte(fmt.Sprintf("SELECT %d", rows))
	}
}

func (c *conn) sendError(err error) {
	_ = c.backend.Send(&pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     txerrors.SQLState(err),
		Message:  err.Error(),
	})
}
