// Package txtable implements the transactional columnar table: an
// S3-backed commit log plus zstd-compressed parquet data files,
// providing atomic batch commit and partitioned scan. Of the table
// operations, the packages above this one call OpenOrCreate and Reopen
// (catalog), Append (write coordinator) and Scan (routing table).
package txtable

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dolthub/go-mysql-server/sql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apitoolkit/timefusion/internal/otelschema"
	"github.com/apitoolkit/timefusion/internal/txerrors"
)

var tracer = otel.Tracer("github.com/apitoolkit/timefusion/txtable")

// Table is one project's transactional columnar table: a commit log plus
// the parquet data files it references. The zero value is not usable;
// construct with Open or Create.
type Table struct {
	loc    Location
	client *s3.Client
	schema sql.Schema

	mu sync.RWMutex // guards st; callers still must hold writecoord's lock for writes
	st state
}

func newClient(loc Location, creds Credentials) *s3.Client {
	endpoint := loc.Endpoint
	if creds.Endpoint != "" {
		endpoint = creds.Endpoint
	}
	opts := s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
	}
	if p := creds.Provider(); p != nil {
		opts.Credentials = p
	}
	return s3.New(opts)
}

// Open loads an existing table at loc. Fails with a "table not present"
// error when loc has no commit log; callers needing open-or-create
// semantics should use OpenOrCreate instead.
func Open(ctx context.Context, loc Location, creds Credentials) (*Table, error) {
	cli := newClient(loc, creds)

	exists, err := tableExists(ctx, cli, loc)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("txtable: table not present at %s", loc.Prefix)
	}

	st, err := readCommitLog(ctx, cli, loc)
	if err != nil {
		return nil, err
	}

	return &Table{loc: loc, client: cli, schema: otelschema.SchemaRef(), st: st}, nil
}

// Create initializes a brand-new table at loc whose column set equals
// otelschema.Columns() and partition set equals otelschema.Partitions().
// Creation is idempotent under concurrent registration of the same
// project: a bare empty commit log is the marker of existence, so the
// first writer to land it wins and later callers simply Open it.
func Create(ctx context.Context, loc Location, creds Credentials) (*Table, error) {
	cli := newClient(loc, creds)

	exists, err := tableExists(ctx, cli, loc)
	if err != nil {
		return nil, fmt.Errorf("txtable: create %s: %w: %w", loc.Prefix, err, txerrors.ErrTableCreate)
	}
	if exists {
		return Open(ctx, loc, creds)
	}

	// Land an empty version-1 commit so tableExists becomes true for the
	// next caller that races to create the same project; first creator
	// wins, the rest fall through to the Open above.
	st, err := appendCommit(ctx, cli, loc, state{}, nil)
	if err != nil {
		return nil, fmt.Errorf("txtable: create %s: %w: %w", loc.Prefix, err, txerrors.ErrTableCreate)
	}

	return &Table{loc: loc, client: cli, schema: otelschema.SchemaRef(), st: st}, nil
}

// OpenOrCreate opens loc, creating it if (and only if) it is not present.
// "Table not present" is the only creation trigger; any other load
// failure propagates untouched.
func OpenOrCreate(ctx context.Context, loc Location, creds Credentials) (*Table, error) {
	exists, err := tableExists(ctx, newClient(loc, creds), loc)
	if err != nil {
		return nil, err
	}
	if exists {
		return Open(ctx, loc, creds)
	}
	return Create(ctx, loc, creds)
}

// Snapshot returns the table's current committed state. Reads observe
// exactly this snapshot until Reopen is called.
func (t *Table) Snapshot() []dataFileEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]dataFileEntry{}, t.st.files...)
}

// Version returns the table's current commit version.
func (t *Table) Version() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.st.version
}

// Reopen reloads the table's state from its commit log, picking up
// commits made by other processes. Reads do not automatically pick these
// up unless Reopen (or catalog.FlushPendingWrites) has run.
func (t *Table) Reopen(ctx context.Context) error {
	st, err := readCommitLog(ctx, t.client, t.loc)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.st = st
	t.mu.Unlock()
	return nil
}

// Append commits batches as one transaction with partition_columns =
// otelschema.Partitions(). Callers MUST already
// hold this project's writer lock (internal/writecoord); Append itself
// does not lock, since FIFO fairness is a property of the coordinator's
// lock, not of this package.
func (t *Table) Append(ctx context.Context, batch Batch) error {
	ctx, span := tracer.Start(ctx, "txtable.Append", trace.WithAttributes(
		attribute.Int("timefusion.row_count", len(batch)),
	))
	defer span.End()

	if len(batch) == 0 {
		return nil // empty batch: commits successfully, changes no visible state
	}

	projIdx := otelschema.ColumnIndex("project_id")
	tsIdx := otelschema.ColumnIndex("timestamp")

	byPartition := make(map[partitionKey][]sql.Row)
	for _, row := range batch {
		pid, _ := row[projIdx].(string)
		ts, _ := timestampMicros(row[tsIdx])
		key := partitionKey{projectID: pid, day: DayPartition(ts)}
		byPartition[key] = append(byPartition[key], row)
	}

	var files []dataFileEntry
	for key, rows := range byPartition {
		f, err := writeDataFile(ctx, t.client, t.loc, t.schema, key.projectID, key.day, rows)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("txtable: append: %w", err)
		}
		files = append(files, f)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	next, err := appendCommit(ctx, t.client, t.loc, t.st, files)
	if err != nil {
		span.RecordError(err)
		return err
	}
	t.st = next
	return nil
}

type partitionKey struct {
	projectID string
	day       string
}

// Scan returns every row in the table's current snapshot, downloading and
// decoding each referenced data file. Filter evaluation and LIMIT
// enforcement are the caller's responsibility (internal/vtable and the
// SQL engine); Scan itself applies no filters.
func (t *Table) Scan(ctx context.Context) ([]sql.Row, error) {
	ctx, span := tracer.Start(ctx, "txtable.Scan")
	defer span.End()

	files := t.Snapshot()
	span.SetAttributes(attribute.Int("timefusion.data_file_count", len(files)))
	if len(files) == 0 {
		return nil, nil
	}

	var rows []sql.Row
	for _, f := range files {
		fileRows, err := readDataFile(ctx, t.client, t.loc.Bucket, f.Key, t.schema)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// Schema returns the table's value schema (equal to otelschema.SchemaRef()).
func (t *Table) Schema() sql.Schema { return t.schema }
