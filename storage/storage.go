package storage

import (
	"context"
	"io"
	"strings"
	"time"
)

// Scheme prefixes an object location, as in s3://bucket/key.
const Scheme = "s3://"

// ObjectInfo represents metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
	ContentType  string
}

// Storage gives read access to objects such as mail attachments.
type Storage interface {
	// Get retrieves an object. A missing object yields an error for which
	// IsNotFound is true.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, *ObjectInfo, error)

	// Exists checks if an object exists in the specified bucket.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	io.Closer
}

// ParseURI splits s3://bucket/key. ok is false for anything else,
// including local paths.
func ParseURI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, Scheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
