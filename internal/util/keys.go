package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// LeasePrefix is the keyspace owned by the registry inside a lease provider.
const LeasePrefix = "lease:"

// LeaseKey returns the provider key for a handle's lease in realm.
func LeaseKey(realm, handle string) string {
	return RealmLeasePrefix(realm) + handle
}

// RealmLeasePrefix is the common prefix of every lease key of realm.
func RealmLeasePrefix(realm string) string {
	return LeasePrefix + realm + ":"
}

// ShortHash returns the first 16 hex chars of sha256(s); used to keep handles
// out of logs.
func ShortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
