package object

import (
	"context"
	"io"
)

// Object describes a stored source snapshot.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// ObjectStore keeps submitted and fetched HTML sources so analyses can be
// replayed from the exact bytes they ran on.
type ObjectStore interface {
	Put(ctx context.Context, owner, name string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
