package storage

import (
	"context"
	"io"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// ObjectStorage is the durable blob store the upload coordinator writes
// through. A file is only recorded in the ledger after Put has acknowledged
// the bytes.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (ObjectInfo, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
}
