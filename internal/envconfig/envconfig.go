// Package envconfig reads TimeFusion's environment configuration: the
// S3 bucket/endpoint/credentials, table prefix, and wire-server port.
// There is no config-file layer here — this package is deliberately a
// thin, direct os.Getenv reader with typed defaults.
package envconfig

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the resolved environment for one process.
type Config struct {
	S3Bucket       string
	S3Endpoint     string
	AccessKeyID    string
	SecretAccessKey string
	TablePrefix    string
	PGWirePort     int
}

const (
	defaultS3Endpoint  = "https://s3.amazonaws.com"
	defaultTablePrefix = "timefusion"
	defaultPGWirePort  = 5432
)

// Load reads AWS_S3_BUCKET, AWS_S3_ENDPOINT, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, TIMEFUSION_TABLE_PREFIX and PGWIRE_PORT from the
// process environment. AWS_S3_BUCKET is required; everything else has a
// default. Credentials may be empty; the S3 client is then built without
// a credentials provider, and no ambient credential chain (e.g. instance
// role) is consulted.
func Load() (Config, error) {
	bucket := os.Getenv("AWS_S3_BUCKET")
	if bucket == "" {
		return Config{}, fmt.Errorf("envconfig: AWS_S3_BUCKET is required")
	}

	cfg := Config{
		S3Bucket:        bucket,
		S3Endpoint:      getOr("AWS_S3_ENDPOINT", defaultS3Endpoint),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		TablePrefix:     getOr("TIMEFUSION_TABLE_PREFIX", defaultTablePrefix),
		PGWirePort:      defaultPGWirePort,
	}

	if raw := os.Getenv("PGWIRE_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("envconfig: invalid PGWIRE_PORT %q", raw)
		}
		cfg.PGWirePort = port
	}

	return cfg, nil
}

func getOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// DefaultStorageURI builds the storage URI for the "default" project from
// this config: s3://<bucket>/<prefix>/?endpoint=<endpoint>.
func (c Config) DefaultStorageURI() string {
	return fmt.Sprintf("s3://%s/%s/?endpoint=%s", c.S3Bucket, c.TablePrefix, c.S3Endpoint)
}
