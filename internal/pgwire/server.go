// Package pgwire implements a PostgreSQL v3 frontend/backend protocol
// server, subset, fronting the embedded SQL engine in
// internal/sqlsession. Framing uses jackc/pgproto3/v2; the accept loop,
// connection bookkeeping, and graceful-drain shape follow an accept-loop
// plus per-connection-goroutine pattern generalized to TCP pgproto3
// framing.
package pgwire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/apitoolkit/timefusion/internal/sqlsession"
)

// serverMetrics holds OTel metric instruments for the wire server.
var serverMetrics struct {
	activeConnections metric.Int64UpDownCounter
}

func init() {
	m := otel.Meter("github.com/apitoolkit/timefusion/pgwire")
	serverMetrics.activeConnections, _ = m.Int64UpDownCounter("timefusion.pgwire.active_connections",
		metric.WithDescription("number of currently open client connections"),
	)
}

// UserVerifier checks a username/password pair against the user
// database. User-password storage is an external collaborator — this
// package only ever calls Verify, never stores a credential itself.
type UserVerifier interface {
	Verify(ctx context.Context, username, password string) (bool, error)
}

// Server accepts TCP connections and serves the Postgres wire protocol
// against one shared SQL session.
type Server struct {
	addr             string
	session          *sqlsession.Session
	verifier         UserVerifier
	fallbackPassword string

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New returns a Server listening on addr (":5432"-style), executing
// queries against session. verifier may be nil, in which case every
// connection authenticates against fallbackPassword alone; if
// fallbackPassword is empty as well, every connection is accepted.
func New(addr string, session *sqlsession.Session, verifier UserVerifier, fallbackPassword string) *Server {
	return &Server{addr: addr, session: session, verifier: verifier, fallbackPassword: fallbackPassword}
}

// Start listens on s.addr and serves connections until ctx is canceled.
// On cancellation the server stops accepting new connections and returns
// once every in-flight connection has completed naturally. In-flight
// commits are not cancellable; they run to completion or failure.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("pgwire: listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Unlock()
	}()

	slog.Info("pgwire: listening", "addr", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("pgwire: accept: %w", err)
			}
		}

		s.wg.Add(1)
		serverMetrics.activeConnections.Add(ctx, 1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer serverMetrics.activeConnections.Add(ctx, -1)
			s.handleConnection(ctx, c)
		}(conn)
	}
}

// Addr returns the address the server is bound to, once Start has run.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
