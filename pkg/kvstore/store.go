// Package kvstore provides the durable key-value capability the client
// persists its local state into (credential pair, cart aggregate). Backends
// are interchangeable; callers own key naming and value encoding.
package kvstore

import "context"

// Store persists opaque values under string keys. Get reports found=false for
// a missing key without an error. Values are JSON documents by convention;
// the SQL backend relies on that.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
