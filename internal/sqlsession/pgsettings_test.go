package sqlsession

import (
	"testing"

	"github.com/dolthub/go-mysql-server/sql"
	"github.com/dolthub/go-mysql-server/sql/expression"
	"github.com/dolthub/go-mysql-server/sql/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGSettingsRowsCoverClientPreamble(t *testing.T) {
	names := make(map[string]string, len(pgSettingsRows))
	for _, row := range pgSettingsRows {
		names[row[0].(string)] = row[1].(string)
	}

	assert.Equal(t, "UTC", names["TimeZone"])
	assert.Equal(t, "UTF8", names["client_encoding"])
	assert.Equal(t, "ISO, MDY", names["datestyle"])
	assert.Equal(t, "notice", names["client_min_messages"])
}

func TestSetConfigReturnsValueUnchanged(t *testing.T) {
	name := expression.NewLiteral("search_path", types.Text)
	value := expression.NewLiteral("public", types.Text)
	isLocal := expression.NewLiteral(false, types.Boolean)

	fn, err := newSetConfigFunc(name, value, isLocal)
	require.NoError(t, err)

	out, err := fn.Eval(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "public", out)
}

func TestSetConfigRequiresThreeArgs(t *testing.T) {
	_, err := newSetConfigFunc(expression.NewLiteral("x", types.Text))
	assert.Error(t, err)
}

var _ sql.Expression = (*setConfigFunc)(nil)
