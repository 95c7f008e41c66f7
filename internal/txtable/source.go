package txtable

import (
	"bytes"
	"io"

	"github.com/xitongsys/parquet-go/source"
)

// byteSource adapts an in-memory byte slice to parquet-go's
// source.ParquetFile interface so readDataFile can hand the bytes
// downloaded from S3 straight to the parquet column reader without a
// round trip through a local temp file.
type byteSource struct {
	*bytes.Reader
	data []byte
}

func newByteSource(data []byte) *byteSource {
	return &byteSource{Reader: bytes.NewReader(data), data: data}
}

func (b *byteSource) Open(name string) (source.ParquetFile, error) {
	return newByteSource(b.data), nil
}

func (b *byteSource) Create(name string) (source.ParquetFile, error) {
	return nil, io.ErrClosedPipe // read-only source: never used to create a file
}

func (b *byteSource) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe // read-only source
}

func (b *byteSource) Close() error { return nil }

var _ source.ParquetFile = (*byteSource)(nil)
