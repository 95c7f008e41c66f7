package pgwire

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/jackc/pgproto3/v2"
)

// pgOID values for the handful of types this server advertises. Real
// Postgres OIDs, used so generic drivers parse the wire format correctly
// even though every value is sent as text.
const (
	oidText      = 25
	oidInt4      = 23
	oidInt8      = 20
	oidTimestamp = 1114
)

// rowDescription builds a RowDescription message for schema, advertising
// every field in text format regardless of what the client requested.
// A deliberate simplification: binary result format is unsupported.
func rowDescription(schema sql.Schema) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(schema))
	for i, col := range schema {
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(col.Name),
			TableOID:             0,
			TableAttributeNumber: 0,
			DataTypeOID:          oidFor(col.Type),
			DataTypeSize:         -1,
			TypeModifier:         -1,
			Format:               0, // 0 = text
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// oidFor implements type mapping: Utf8 → TEXT,
// Timestamp(µs, _) → TIMESTAMP, Int64 → INT8, Int32 → INT4, everything
// else → TEXT.
func oidFor(t sql.Type) uint32 {
	switch {
	case t == types.Timestamp:
		return oidTimestamp
	case t == types.Int64:
		return oidInt8
	case t == types.Int32:
		return oidInt4
	default:
		return oidText
	}
}

// encodeRow renders one sql.Row as the text-format byte slices pgproto3's
// DataRow expects, NULL represented as a nil slice.
func encodeRow(schema sql.Schema, row sql.Row) ([][]byte, error) {
	out := make([][]byte, len(row))
	for i, v := range row {
		if v == nil {
			continue
		}
		var colType sql.Type
		if i < len(schema) {
			colType = schema[i].Type
		}
		text, err := encodeValue(colType, v)
		if err != nil {
			return nil, fmt.Errorf("pgwire: encode column %d: %w", i, err)
		}
		out[i] = []byte(text)
	}
	return out, nil
}

func encodeValue(_ sql.Type, v interface{}) (string, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC().Format("2006-01-02 15:04:05.999999"), nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case bool:
		if val {
			return "t", nil
		}
		return "f", nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int:
		return strconv.Itoa(val), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}
