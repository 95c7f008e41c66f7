package pgwire

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/jackc/pgproto3/v2"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// connState models per-connection state machine:
//
//	Init → Startup → (AuthOk | AuthFail→Closed)
//	AuthOk → ReadyForQuery(Idle) ↔ Query → ReadyForQuery(Idle)
//	Any state → Terminate → Closed
type connState int

const (
	stateInit connState = iota
	stateAuthenticated
	stateClosed
)

// conn is one client connection's handling loop.
type conn struct {
	netConn net.Conn
	backend *pgproto3.Backend
	server  *Server
	state   connState
	user    string

	statements map[string]*preparedStatement
	portals    map[string]*portal
}

func (s *Server) handleConnection(ctx context.Context, nc net.Conn) {
	defer nc.Close()

	c := &conn{
		netConn: nc,
		backend: pgproto3.NewBackend(nc, nc),
		server:  s,
	}

	if err := c.startup(ctx); err != nil {
		slog.Warn("pgwire: startup failed", "remote", nc.RemoteAddr(), "err", err)
		return
	}

	c.queryLoop(ctx)
}

// startup performs the PostgreSQL startup handshake:
// read the StartupMessage, authenticate, and on success send
// AuthenticationOk followed by ReadyForQuery(Idle).
func (c *conn) startup(ctx context.Context) error {
	msg, err := c.backend.ReceiveStartupMessage()
	if err != nil {
		return fmt.Errorf("pgwire: receive startup message: %w", err)
	}

	startup, ok := msg.(*pgproto3.StartupMessage)
	if !ok {
		return fmt.Errorf("pgwire: unexpected startup message %T", msg)
	}
	c.user = startup.Parameters["user"]

	if err := c.authenticate(ctx); err != nil {
		_ = c.backend.Send(&pgproto3.ErrorResponse{
			Severity: "FATAL",
			Code:     txerrors.SQLState(txerrors.ErrAuthFailed),
			Message:  "password authentication failed",
		})
		return fmt.Errorf("pgwire: authenticate %q: %w: %w", c.user, err, txerrors.ErrAuthFailed)
	}

	c.state = stateAuthenticated
	if err := c.backend.Send(&pgproto3.AuthenticationOk{}); err != nil {
		return fmt.Errorf("pgwire: send AuthenticationOk: %w", err)
	}
	return c.ready()
}

// authenticate implements step 1's two auth modes: explicit
// username/password checked against the user database (mode i), falling
// back to the process-wide password when the verifier is not configured
// or does not accept the pair (mode ii). With neither a verifier nor a
// fallback password configured, any credentials are accepted.
func (c *conn) authenticate(ctx context.Context) error {
	if err := c.backend.Send(&pgproto3.AuthenticationCleartextPassword{}); err != nil {
		return fmt.Errorf("request password: %w", err)
	}

	msg, err := c.backend.Receive()
	if err != nil {
		return fmt.Errorf("receive password message: %w", err)
	}

	pw, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		return fmt.Errorf("expected PasswordMessage, got %T", msg)
	}

	if c.server.verifier != nil {
		ok, err := c.server.verifier.Verify(ctx, c.user, pw.Password)
		if err != nil {
			return fmt.Errorf("verify %q: %w", c.user, err)
		}
		if ok {
			return nil
		}
	}

	if c.server.fallbackPassword != "" && pw.Password == c.server.fallbackPassword {
		return nil
	}
	if c.server.verifier == nil && c.server.fallbackPassword == "" {
		return nil // no auth configured: accept any credentials
	}

	return fmt.Errorf("invalid credentials")
}

func (c *conn) ready() error {
	return c.backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
}
