// Package provider defines the byte store that backs handle leases.
//
// A realm configured with a Provider writes one small record per handle it
// mints (see internal/wire) under "lease:<realm>:<handle>" and requires that
// record to be present whenever the handle is resolved. Expiry, eviction or an
// out-of-band delete of the record therefore invalidates the handle.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for the key. Records that fail to decode
// are treated as corrupt and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. Stores without per-entry TTLs may
	// apply their own expiry window instead. Returns ok=false when the store
	// rejected the write under pressure; the handle is then not minted.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// PrefixDeleter is implemented by stores that can drop every key under a
// prefix in one pass. A closing realm uses it instead of one Del per handle,
// which also clears leases an earlier process left behind under the same
// realm id.
type PrefixDeleter interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}
