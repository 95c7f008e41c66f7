// Package catalog implements the project catalog: the process-wide map
// from project id to its bound transactional table, guarded by a
// read-write lock so that resolving a table for a read or write never
// contends with registering an unrelated project.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/apitoolkit/timefusion/internal/txerrors"
	"github.com/apitoolkit/timefusion/internal/txtable"
)

// DefaultProject is the fallback project name resolve_table consults
// when the requested project is not registered.
const DefaultProject = "default"

// Catalog is the process-wide project → table mapping. Construct it with
// New; the zero value has no maps allocated and RegisterProject panics on
// it.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]*txtable.Table
	base    txtable.Location
	creds   map[string]txtable.Credentials // per-project credentials, as given at registration
	uriByID map[string]txtable.Location
}

// New creates an empty catalog rooted at base; register_project nests
// each project id under base's prefix unless a caller-supplied URI
// overrides it entirely.
func New(base txtable.Location) *Catalog {
	return &Catalog{
		tables:  make(map[string]*txtable.Table),
		base:    base,
		creds:   make(map[string]txtable.Credentials),
		uriByID: make(map[string]txtable.Location),
	}
}

// RegisterProject builds a credential bag, opens or creates the
// project's table, and installs the handle. Idempotent when called again
// with the same uri and credentials: the second call observes the
// already-created table via OpenOrCreate and simply replaces the handle
// with an equivalent one.
//
// uri may be empty, in which case the project is nested under this
// catalog's base location (the same bucket/prefix the default project
// was opened from) at "<base-prefix>/<id>" via Location.WithProject —
// the common case of registering an additional tenant against the one
// bucket the process is already configured for, without having to spell
// out a full s3:// URI per tenant.
func (c *Catalog) RegisterProject(ctx context.Context, id, uri string, accessKey, secretKey, endpoint *string) error {
	var loc txtable.Location
	if uri == "" {
		loc = c.base.WithProject(id)
	} else {
		var err error
		loc, err = txtable.ParseLocation(uri)
		if err != nil {
			return err // already wraps ErrBadEndpoint
		}
	}

	creds, err := txtable.NewCredentials(accessKey, secretKey, endpoint)
	if err != nil {
		return err // already wraps ErrCredential
	}

	t, err := txtable.OpenOrCreate(ctx, loc, creds)
	if err != nil {
		return fmt.Errorf("catalog: register project %q: %w", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[id] = t
	c.creds[id] = creds
	c.uriByID[id] = loc
	return nil
}

// ResolveTable returns the handle for id, falling back to DefaultProject
// (with a warn log) when id is not registered. Fails with
// ErrUnknownProject if neither is registered.
func (c *Catalog) ResolveTable(id string) (*txtable.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.tables[id]; ok {
		return t, nil
	}
	if id != DefaultProject {
		if t, ok := c.tables[DefaultProject]; ok {
			slog.Warn("catalog: project not registered, falling back to default", "project_id", id)
			return t, nil
		}
	}
	return nil, fmt.Errorf("catalog: project %q: %w", id, txerrors.ErrUnknownProject)
}

// FlushPendingWrites reopens every registered table from its commit log,
// refreshing each handle's in-memory view so local reads observe commits
// made by other processes.
func (c *Catalog) FlushPendingWrites(ctx context.Context) error {
	c.mu.RLock()
	tables := make([]*txtable.Table, 0, len(c.tables))
	for _, t := range c.tables {
		tables = append(tables, t)
	}
	c.mu.RUnlock()

	for _, t := range tables {
		if err := t.Reopen(ctx); err != nil {
			return fmt.Errorf("catalog: flush pending writes: %w", err)
		}
	}
	return nil
}

// Registered reports whether id currently has a table handle, without
// falling back to the default project, so callers can check that
// "default" is registered before any query is served.
func (c *Catalog) Registered(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[id]
	return ok
}
