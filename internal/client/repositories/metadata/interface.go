// Package metadata holds the client's bookkeeping that is not a diagnosis:
// the per-source download cursors and opaque blobs such as the sealed
// signing key.
package metadata

import (
	"context"
)

// Repository stores opaque values by key. Get returns (nil, nil) when the key
// is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// CursorRepository keeps one Cursor per export source. Get returns
// (nil, nil) when the source has no cursor.
type CursorRepository interface {
	Get(ctx context.Context, source string) (*Cursor, error)
	Save(ctx context.Context, cur Cursor) error
	All(ctx context.Context) ([]Cursor, error)
	Reset(ctx context.Context, source string) error
}
