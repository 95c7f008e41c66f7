// Package otelschema is the single source of truth for the OtelLogsAndSpans
// row shape: the wide, mostly-optional column list shared by the write path
// and the routing table's read path. Writer and reader never define the
// schema independently; both call into this package.
package otelschema

import (
	"fmt"
	"reflect"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// TableName is the logical name the routing table is registered under.
const TableName = "otel_logs_and_spans"

// Field describes one column of the row shape before it is projected into
// a sql.Column. The struct tag `otel:"name,notnull"` on Row drives this.
type Field struct {
	Name     string
	Type     sql.Type
	Nullable bool
}

// Row is the canonical OTel logs-and-spans record. Field order here is the
// column order columns() reports; the partition columns are declared last
// so they trail the list, matching the table-format convention that
// partitions are stored apart from the value schema.
type Row struct {
	// Identity
	ID       *string `otel:"id"`
	ParentID *string `otel:"parent_id"`
	Name     *string `otel:"name"`
	Kind     *string `otel:"kind"`

	// Status
	StatusCode       *string `otel:"status_code"`
	StatusMessage    *string `otel:"status_message"`
	Level            *string `otel:"level"`
	SeverityText     *string `otel:"severity___text"`
	SeverityNumber   *int32  `otel:"severity___number"`
	Body             *string `otel:"body"`

	// Timing
	Duration  *uint64 `otel:"duration"`  // nanoseconds
	StartTime *int64  `otel:"start_time"` // microseconds since epoch
	EndTime   *int64  `otel:"end_time"`   // microseconds since epoch

	// Trace context
	ContextTraceID    *string `otel:"context___trace_id"`
	ContextSpanID     *string `otel:"context___span_id"`
	ContextTraceState *string `otel:"context___trace_state"`
	ContextTraceFlags *int32  `otel:"context___trace_flags"`

	// Semantic and resource attributes are sparse and added on demand at
	// table-create time in a real deployment; the fixed set below covers
	// the attributes exercised by the reference ingest scenarios.
	AttributesHTTPMethod     *string `otel:"attributes___http___method"`
	AttributesHTTPStatusCode *int64  `otel:"attributes___http___status_code"`
	ResourceAttributesService *string `otel:"resource___attributes___service___name"`

	// Mandatory partition columns. These MUST remain the last two fields:
	// columns() reflects over the fields in declaration order and rejects a
	// shape whose last two columns are not these, and partitions() names
	// them independently of field order here.
	ProjectID *string `otel:"project_id,notnull"`
	Timestamp *int64  `otel:"timestamp,notnull"` // microseconds since epoch
}

var valueSchema sql.Schema

func init() {
	cols, err := buildColumns()
	if err != nil {
		panic(fmt.Sprintf("otelschema: %v", err))
	}
	valueSchema = cols
}

// buildColumns reflects over Row and fails with SchemaInvariant-flavored
// errors (returned, not panicked, except at package init where invariants
// must hold unconditionally) unless the last two columns are exactly
// project_id (Utf8 NOT NULL) and timestamp (Timestamp µs NOT NULL).
func buildColumns() (sql.Schema, error) {
	t := reflect.TypeOf(Row{})
	schema := make(sql.Schema, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("otel")
		if tag == "" {
			return nil, fmt.Errorf("otelschema: field %s has no otel tag: %w", f.Name, txerrors.ErrSchemaInvariant)
		}
		name, notNull := parseTag(tag)

		col := &sql.Column{
			Name:     name,
			Source:   TableName,
			Nullable: !notNull,
		}

		switch f.Type.Kind() {
		case reflect.Ptr:
			col.Type = goTypeToSQL(f.Type.Elem().Kind(), name)
		default:
			return nil, fmt.Errorf("otelschema: field %s must be a pointer (optional) type: %w", f.Name, txerrors.ErrSchemaInvariant)
		}

		schema = append(schema, col)
	}

	n := len(schema)
	if n < 2 {
		return nil, fmt.Errorf("otelschema: row shape too narrow: %w", txerrors.ErrSchemaInvariant)
	}
	last, prev := schema[n-1], schema[n-2]
	if prev.Name != "project_id" || prev.Nullable || prev.Type != types.Text {
		return nil, fmt.Errorf("otelschema: second-to-last column must be project_id Utf8 NOT NULL, got %s: %w", prev.Name, txerrors.ErrSchemaInvariant)
	}
	if last.Name != "timestamp" || last.Nullable || last.Type != types.Timestamp {
		return nil, fmt.Errorf("otelschema: last column must be timestamp Timestamp(us) NOT NULL, got %s: %w", last.Name, txerrors.ErrSchemaInvariant)
	}

	return schema, nil
}

func parseTag(tag string) (name string, notNull bool) {
	name = tag
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			name = tag[:i]
			if tag[i+1:] == "notnull" {
				notNull = true
			}
			return
		}
	}
	return name, false
}

func goTypeToSQL(kind reflect.Kind, name string) sql.Type {
	switch {
	case name == "timestamp":
		return types.Timestamp
	case name == "project_id":
		return types.Text
	}
	switch kind {
	case reflect.String:
		return types.Text
	case reflect.Int32:
		return types.Int32
	case reflect.Int64:
		return types.Int64
	case reflect.Uint64:
		return types.Uint64
	default:
		return types.Text
	}
}

// Columns returns the ordered list of column descriptors, project_id and
// timestamp trailing. Callers that need a mutable copy should clone it;
// the returned schema is shared and must be treated as read-only.
func Columns() sql.Schema {
	return valueSchema
}

// Partitions returns the ordered partition column list. Kept outside the
// value schema because the underlying table format stores partitions
// separately from column values.
func Partitions() []string {
	return []string{"project_id", "timestamp"}
}

// SchemaRef returns a shareable handle to the value schema for plan
// type-checking. Safe for concurrent use; the underlying schema never
// changes after init. Schema evolution is a planned extension.
func SchemaRef() sql.Schema {
	return valueSchema
}

// ColumnIndex returns the index of the named column in Columns(), or -1.
func ColumnIndex(name string) int {
	for i, c := range valueSchema {
		if c.Name == name {
			return i
		}
	}
	return -1
}
