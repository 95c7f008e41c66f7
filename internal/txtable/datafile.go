package txtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// parquetJSONSchema builds the JSON schema string xitongsys/parquet-go's
// JSON writer expects, derived from otelschema.Columns() so the on-disk
// schema can never drift from the schema the SQL engine sees.
func parquetJSONSchema(cols sql.Schema) string {
	type field struct {
		Tag string `json:"Tag"`
	}
	type rootSchema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}

	root := rootSchema{Tag: "name=otel_logs_and_spans"}
	for _, c := range cols {
		rep := "OPTIONAL"
		if !c.Nullable {
			rep = "REQUIRED"
		}
		root.Fields = append(root.Fields, field{Tag: fmt.Sprintf("%s, repetitiontype=%s", parquetTypeTag(c.Name, c.Type), rep)})
	}

	b, _ := json.Marshal(root)
	return string(b)
}

func parquetTypeTag(name string, t sql.Type) string {
	switch {
	case t == types.Timestamp:
		return fmt.Sprintf("name=%s, type=INT64, convertedtype=TIMESTAMP_MICROS", jsonFieldName(name))
	case t == types.Int64, t == types.Uint64:
		return fmt.Sprintf("name=%s, type=INT64", jsonFieldName(name))
	case t == types.Int32:
		return fmt.Sprintf("name=%s, type=INT32", jsonFieldName(name))
	default:
		return fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8", jsonFieldName(name))
	}
}

// jsonFieldName makes a column name safe as a parquet/JSON field name; the
// triple-underscore delimiter in attribute columns is already valid.
func jsonFieldName(name string) string { return name }

// rowToJSON renders one sql.Row as the JSON object the JSON writer expects,
// using column names from cols positionally.
func rowToJSON(cols sql.Schema, row sql.Row) ([]byte, error) {
	obj := make(map[string]interface{}, len(cols))
	for i, c := range cols {
		if i >= len(row) || row[i] == nil {
			continue // omit nulls; parquet-go leaves OPTIONAL fields unset
		}
		val := row[i]
		if c.Type == types.Timestamp {
			micros, ok := timestampMicros(val)
			if !ok {
				return nil, fmt.Errorf("txtable: column %s: unsupported timestamp representation %T", c.Name, val)
			}
			val = micros
		}
		obj[jsonFieldName(c.Name)] = val
	}
	return json.Marshal(obj)
}

// timestampMicros extracts microseconds-since-epoch from a Timestamp
// column's in-memory representation. The SQL engine binds TIMESTAMP
// literals/columns to time.Time; callers that build a sql.Row by hand
// (tests, internal repartitioning) may already hold the int64 micros
// value directly. The on-disk parquet field is declared
// type=INT64, convertedtype=TIMESTAMP_MICROS (see parquetTypeTag), so
// only the int64 form may reach the JSON writer — never a time.Time,
// which json.Marshal would render as an RFC3339 string.
func timestampMicros(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMicro(), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	}
	return 0, false
}

// writeDataFile encodes a batch as a compressed parquet file in memory and
// uploads it to dayPartition under loc, returning the committed file entry.
func writeDataFile(ctx context.Context, cli *s3.Client, loc Location, cols sql.Schema, projectID, dayPartition string, rows []sql.Row) (dataFileEntry, error) {
	buf := buffer.NewBufferFile()
	schemaJSON := parquetJSONSchema(cols)

	pw, err := writer.NewJSONWriter(schemaJSON, buf, 4)
	if err != nil {
		return dataFileEntry{}, fmt.Errorf("txtable: new parquet writer: %w: %w", err, txerrors.ErrCommitFailed)
	}
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, row := range rows {
		rec, err := rowToJSON(cols, row)
		if err != nil {
			return dataFileEntry{}, fmt.Errorf("txtable: encode row: %w: %w", err, txerrors.ErrCommitFailed)
		}
		if err := pw.Write(string(rec)); err != nil {
			return dataFileEntry{}, fmt.Errorf("txtable: write row: %w: %w", err, txerrors.ErrCommitFailed)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return dataFileEntry{}, fmt.Errorf("txtable: finalize parquet file: %w: %w", err, txerrors.ErrCommitFailed)
	}

	fileName := fmt.Sprintf("%s.parquet", uuid.NewString())
	key := loc.DataFileKey(projectID, dayPartition, fileName)

	if _, err := cli.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	}); err != nil {
		return dataFileEntry{}, fmt.Errorf("txtable: upload data file %s: %w: %w", key, err, txerrors.ErrCommitFailed)
	}

	return dataFileEntry{Key: key, DayPartition: dayPartition, RowCount: int64(len(rows))}, nil
}

// readDataFile downloads and decodes one parquet data file into sql.Rows
// laid out according to cols, reading column-by-column (ReadColumnByPath)
// rather than through a fixed Go struct, since the column set is driven
// dynamically by otelschema.Columns(). Filters are applied after the fact
// by the caller (internal/vtable and the SQL engine).
func readDataFile(ctx context.Context, cli *s3.Client, bucket, key string, cols sql.Schema) ([]sql.Row, error) {
	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("txtable: read data file %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := readAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("txtable: download data file %s: %w", key, err)
	}

	src := newByteSource(data)
	pr, err := reader.NewParquetColumnReader(src, 4)
	if err != nil {
		return nil, fmt.Errorf("txtable: new parquet reader for %s: %w", key, err)
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	columns := make([][]interface{}, len(cols))
	for i, c := range cols {
		path := "parquet_go_root." + jsonFieldName(c.Name)
		values, _, _, err := pr.ReadColumnByPath(path, numRows)
		if err != nil {
			return nil, fmt.Errorf("txtable: read column %s from %s: %w", c.Name, key, err)
		}
		columns[i] = values
	}

	rows := make([]sql.Row, numRows)
	for r := 0; r < numRows; r++ {
		row := make(sql.Row, len(cols))
		for i, c := range cols {
			if r < len(columns[i]) && columns[i][r] != nil {
				row[i] = coerceParquetValue(c.Type, columns[i][r])
			}
		}
		rows[r] = row
	}
	return rows, nil
}

func readAll(r interface{ Read([]byte) (int, error) }) ([]byte, error) {
	data := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return data, nil
}

// coerceParquetValue converts the numeric values the parquet column reader
// produces back into the Go types the SQL engine expects.
// ReadColumnByPath yields values in the column's native physical
// representation (int64/int32 for INT64/INT32 fields), not the generic
// float64 a JSON-decoded map would hold; both shapes are accepted here so
// a timestamp round-trips to time.Time regardless of which the reader
// hands back.
func coerceParquetValue(t sql.Type, v interface{}) interface{} {
	switch {
	case t == types.Timestamp:
		switch n := v.(type) {
		case int64:
			return time.UnixMicro(n).UTC()
		case int32:
			return time.UnixMicro(int64(n)).UTC()
		case float64:
			return time.UnixMicro(int64(n)).UTC()
		}
	case t == types.Int64, t == types.Uint64, t == types.Int32:
		switch n := v.(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return v
}

// DayPartition truncates a microsecond timestamp to its UTC calendar day,
// the partition granularity this repo chose for "timestamp=<T>" (see the
// DESIGN.md entry on partition granularity).
func DayPartition(tsMicros int64) string {
	return time.UnixMicro(tsMicros).UTC().Format("2006-01-02")
}
