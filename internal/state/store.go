package state

import "context"

// Store persists restart state: the book snapshot and the ingest cursor.
// Values are opaque strings; the keys live next to their codecs in this
// package.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
