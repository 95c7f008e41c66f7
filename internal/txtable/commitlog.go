package txtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// commitRetryMaxElapsed bounds how long appendCommit retries a PutObject
// that fails for transient reasons (S3 throttling, brief network errors)
// before giving up.
const commitRetryMaxElapsed = 10 * time.Second

func newCommitRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = commitRetryMaxElapsed
	return bo
}

// dataFileEntry describes one committed parquet data file.
type dataFileEntry struct {
	Key          string `json:"key"`
	DayPartition string `json:"day_partition"`
	RowCount     int64  `json:"row_count"`
}

// commitEntry is one JSON line appended to _delta_log/, a commit-log
// convention modeled on transactional table formats that store commits
// as an append-only sequence of version records.
type commitEntry struct {
	Version   int64           `json:"version"`
	Files     []dataFileEntry `json:"files"`
	RowCount  int64           `json:"row_count"`
	Operation string          `json:"operation"` // only "append" is supported
}

// state is the reopenable, in-memory snapshot of a table: its current
// version and the full file list accumulated across every commit so far.
// Table.reopen rebuilds this by replaying the commit log from S3.
type state struct {
	version int64
	files   []dataFileEntry
}

// readCommitLog replays every commit entry for loc from S3 in version
// order and folds them into a state. Returns a zero-version empty state
// (not an error) if no commit log exists yet — callers that need to
// distinguish "exists" from "does not exist" use tableExists.
func readCommitLog(ctx context.Context, cli *s3.Client, loc Location) (state, error) {
	pages := s3.NewListObjectsV2Paginator(cli, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(loc.CommitLogPrefix()),
	})

	var keys []string
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return state{}, fmt.Errorf("txtable: list commit log %s: %w", loc.CommitLogPrefix(), err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)

	var st state
	for _, key := range keys {
		entry, err := getCommitEntry(ctx, cli, loc.Bucket, key)
		if err != nil {
			return state{}, err
		}
		st.files = append(st.files, entry.Files...)
		if entry.Version > st.version {
			st.version = entry.Version
		}
	}
	return st, nil
}

func getCommitEntry(ctx context.Context, cli *s3.Client, bucket, key string) (commitEntry, error) {
	out, err := cli.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return commitEntry{}, fmt.Errorf("txtable: read commit entry %s: %w", key, err)
	}
	defer out.Body.Close()

	var entry commitEntry
	if err := json.NewDecoder(out.Body).Decode(&entry); err != nil {
		return commitEntry{}, fmt.Errorf("txtable: decode commit entry %s: %w", key, err)
	}
	return entry, nil
}

// tableExists distinguishes "no commit log yet" (table not present, the
// only trigger for creation) from any other load failure,
// which must propagate.
func tableExists(ctx context.Context, cli *s3.Client, loc Location) (bool, error) {
	out, err := cli.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(loc.Bucket),
		Prefix:  aws.String(loc.CommitLogPrefix()),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("txtable: probe table %s: %w", loc.Prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func isNotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchBucket") || strings.Contains(err.Error(), "NotFound")
}

// appendCommit writes the next commit log entry and returns the resulting
// state. The commit is a single PutObject of a brand-new, sequentially
// numbered key, so two concurrent committers for the same project would
// race on the same key only if the writer-lock discipline in
// internal/writecoord were bypassed; Table.Append does not take that lock
// itself and relies on its caller (writecoord.InsertBatches) holding it.
func appendCommit(ctx context.Context, cli *s3.Client, loc Location, prev state, files []dataFileEntry) (state, error) {
	var rows int64
	for _, f := range files {
		rows += f.RowCount
	}

	next := commitEntry{
		Version:   prev.version + 1,
		Files:     files,
		RowCount:  rows,
		Operation: "append",
	}

	body, err := json.Marshal(next)
	if err != nil {
		return state{}, fmt.Errorf("txtable: marshal commit entry: %w: %w", err, txerrors.ErrCommitFailed)
	}

	key := loc.CommitLogKey(next.Version)
	err = backoff.Retry(func() error {
		_, putErr := cli.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(body),
		})
		if putErr != nil && isNotFound(putErr) {
			return backoff.Permanent(putErr) // missing bucket won't heal with retries
		}
		return putErr
	}, backoff.WithContext(newCommitRetryBackoff(), ctx))
	if err != nil {
		return state{}, fmt.Errorf("txtable: commit %s: %w: %w", key, err, txerrors.ErrCommitFailed)
	}

	return state{
		version: next.Version,
		files:   append(append([]dataFileEntry{}, prev.files...), files...),
	}, nil
}
