// Package storage keeps attachment blobs in S3, Google Cloud Storage or
// MinIO. Queue payloads carry "<bucket>/<key>" references instead of the
// content itself.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrInvalidRef = errors.New("storage: invalid object reference")
	// ErrNotFound is returned by every backend for a missing object.
	ErrNotFound = errors.New("storage: object not found")
)

// Storage is the subset of object storage the mailer needs.
type Storage interface {
	io.Closer

	PutObject(ctx context.Context, bucket, key string, r io.Reader, opts PutOptions) (ObjectInfo, error)
	// GetObject opens the object for reading. Callers close the reader.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (ObjectInfo, error)
}

// PutOptions describe an upload. A Size of zero or less streams with an
// unknown length.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

type ObjectInfo struct {
	Bucket      string
	Key         string
	Size        int64
	ETag        string
	ContentType string
	Metadata    map[string]string
	UpdatedAt   time.Time
}

// Ref formats the reference for bucket and key.
func Ref(bucket, key string) string {
	return bucket + "/" + key
}

// ParseRef splits a "<bucket>/<key>" reference. A leading slash is ignored.
func ParseRef(ref string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(ref, "/"), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return bucket, key, nil
}

// notFound wraps err with ErrNotFound when missing reports true for it.
func notFound(err error, ref string, missing bool) error {
	if missing {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, ref, err)
	}
	return err
}
