package txtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestNewCredentialsBothSet(t *testing.T) {
	c, err := NewCredentials(strp("AKIA"), strp("secret"), strp("http://localhost:9000"))
	require.NoError(t, err)
	assert.Equal(t, "AKIA", c.AccessKeyID)
	assert.NotNil(t, c.Provider())
}

func TestNewCredentialsBothEmptyFallsBackToAmbient(t *testing.T) {
	c, err := NewCredentials(nil, nil, strp("http://localhost:9000"))
	require.NoError(t, err)
	assert.Nil(t, c.Provider(), "empty bag yields nil provider")
}

func TestNewCredentialsRejectsPartialPair(t *testing.T) {
	_, err := NewCredentials(strp("AKIA"), nil, strp("http://localhost:9000"))
	assert.Error(t, err)
}

func TestNewCredentialsRejectsBadEndpointScheme(t *testing.T) {
	_, err := NewCredentials(nil, nil, strp("ftp://localhost:9000"))
	assert.Error(t, err)
}
