package txtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://otel-bucket/tenants?endpoint=http://localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "otel-bucket", loc.Bucket)
	assert.Equal(t, "tenants", loc.Prefix)
	assert.Equal(t, "http://localhost:9000", loc.Endpoint)
}

func TestParseLocationRejectsNonS3Scheme(t *testing.T) {
	_, err := ParseLocation("https://otel-bucket/tenants?endpoint=http://localhost:9000")
	assert.Error(t, err)
}

func TestParseLocationRequiresEndpoint(t *testing.T) {
	_, err := ParseLocation("s3://otel-bucket/tenants")
	assert.Error(t, err)
}

func TestParseLocationRequiresBucket(t *testing.T) {
	_, err := ParseLocation("s3:///tenants?endpoint=http://localhost:9000")
	assert.Error(t, err)
}

func TestLocationWithProject(t *testing.T) {
	loc, err := ParseLocation("s3://otel-bucket/tenants?endpoint=http://localhost:9000")
	require.NoError(t, err)

	proj := loc.WithProject("acme")
	assert.Equal(t, "tenants/acme", proj.Prefix)
	assert.Equal(t, loc.Bucket, proj.Bucket, "project location keeps bucket/endpoint untouched")
}

func TestLocationKeys(t *testing.T) {
	loc := Location{Bucket: "b", Prefix: "tenants/acme"}

	assert.Equal(t, "tenants/acme/_delta_log/00000000000000000007.json", loc.CommitLogKey(7))
	assert.Equal(t, "tenants/acme/_delta_log/", loc.CommitLogPrefix())
	assert.Equal(t, "tenants/acme/project_id=acme/timestamp=2026-07-31/f.parquet", loc.DataFileKey("acme", "2026-07-31", "f.parquet"))
}
