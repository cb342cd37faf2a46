package repository

import (
	"context"
)

// KeyValueStore is the device a cart record is persisted to. Get returns an
// error matching apperrors.ErrNotFound when key has never been written or
// has been deleted.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
