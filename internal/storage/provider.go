// Package storage defines the blob store contract emitted artifacts are
// written through. Implementations live in the local, memory and gcs
// subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore persists a single object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// EncodedBlobStore is a BlobStore that can record the Content-Encoding of a
// precompressed object so it is served with the matching header.
type EncodedBlobStore interface {
	BlobStore
	PutEncodedObject(ctx context.Context, path, contentType, contentEncoding string, data io.Reader) (string, error)
}
