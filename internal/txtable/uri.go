package txtable

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// Location is a parsed storage URI: s3://<bucket>/<prefix>/?endpoint=<endpoint>.
// The prefix is always the project's own sub-path; the catalog appends
// "/<project_id>" when registering a project under a shared bucket.
type Location struct {
	Bucket   string
	Prefix   string
	Endpoint string
}

// ParseLocation parses a storage URI. Failures surface as ErrBadEndpoint.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("txtable: parse storage uri %q: %w: %v", raw, txerrors.ErrBadEndpoint, err)
	}
	if u.Scheme != "s3" {
		return Location{}, fmt.Errorf("txtable: unsupported scheme %q: %w", u.Scheme, txerrors.ErrBadEndpoint)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("txtable: storage uri %q has no bucket: %w", raw, txerrors.ErrBadEndpoint)
	}

	endpoint := u.Query().Get("endpoint")
	if endpoint == "" {
		return Location{}, fmt.Errorf("txtable: storage uri %q missing endpoint query param: %w", raw, txerrors.ErrBadEndpoint)
	}

	return Location{
		Bucket:   u.Host,
		Prefix:   strings.Trim(u.Path, "/"),
		Endpoint: endpoint,
	}, nil
}

// WithProject returns the location for one project's table, nesting the
// project id under the shared prefix.
func (l Location) WithProject(projectID string) Location {
	l.Prefix = strings.Trim(l.Prefix+"/"+projectID, "/")
	return l
}

// CommitLogKey returns the S3 key of the Nth commit log entry.
func (l Location) CommitLogKey(version int64) string {
	return fmt.Sprintf("%s/_delta_log/%020d.json", l.Prefix, version)
}

// CommitLogPrefix returns the key prefix under which all commit entries live.
func (l Location) CommitLogPrefix() string {
	return l.Prefix + "/_delta_log/"
}

// DataFileKey returns the S3 key for a new data file in the given day
// partition: physical layout is project_id=<P>/timestamp=<T>/…parquet;
// this repo resolves <T> to a UTC calendar-day bucket (see datafile.go).
func (l Location) DataFileKey(projectID, dayPartition, fileName string) string {
	return fmt.Sprintf("%s/project_id=%s/timestamp=%s/%s", l.Prefix, projectID, dayPartition, fileName)
}
