// Package txerrors defines the error kinds shared across TimeFusion's
// subsystems as plain wrapped stdlib errors (errors.New +
// fmt.Errorf("%w")) rather than a bespoke error-kind framework.
package txerrors

import "errors"

var (
	// ErrSchemaInvariant marks an internal bug: the row shape could not be
	// projected into the expected schema. Fatal, logged, never client-caused.
	ErrSchemaInvariant = errors.New("schema invariant violated")

	// ErrUnknownProject is returned by the catalog when a project id has no
	// registered table and no default project exists to fall back to.
	ErrUnknownProject = errors.New("unknown project")

	// ErrSchemaMismatch is returned on INSERT when the input plan's schema
	// does not logically match the routing table's schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnimplemented marks insert modes other than Append, and any SQL
	// construct the embedded engine does not support.
	ErrUnimplemented = errors.New("unimplemented")

	// ErrCommitFailed wraps a failure from the underlying transactional
	// table during Append/commit.
	ErrCommitFailed = errors.New("commit failed")

	// ErrIO marks a connection-level failure; the wire server closes the
	// connection on this error.
	ErrIO = errors.New("io error")

	// ErrAuthFailed marks a failed authentication handshake; the wire
	// server closes the connection before ReadyForQuery.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadEndpoint marks a storage URI that failed to parse.
	ErrBadEndpoint = errors.New("bad endpoint")

	// ErrCredential marks a malformed or rejected credential bag.
	ErrCredential = errors.New("credential error")

	// ErrTableCreate wraps a failure creating a new transactional table.
	ErrTableCreate = errors.New("table create failed")
)

// SQLState maps an error kind to the PostgreSQL SQLSTATE code the wire
// server should report in an ErrorResponse. Unrecognized errors map to
// 58000 (system_error), the catch-all for internal failures.
func SQLState(err error) string {
	switch {
	case errors.Is(err, ErrAuthFailed):
		return "28P01" // invalid_password
	case errors.Is(err, ErrUnknownProject):
		return "3D000" // invalid_catalog_name
	case errors.Is(err, ErrSchemaMismatch):
		return "42804" // datatype_mismatch
	case errors.Is(err, ErrUnimplemented):
		return "0A000" // feature_not_supported
	case errors.Is(err, ErrCommitFailed):
		return "40001" // serialization_failure
	default:
		return "58000" // system_error
	}
}
