package remoteval

import "github.com/unkn0wn-root/remoteval/remote"

// Hooks are callbacks for high-signal registry and codec events.
// Implementations MUST be cheap and non-blocking; they run while serializing.
type Hooks interface {
	// A fresh handle was bound in realm.
	HandleMinted(realm, handle string)

	// A handle left the registry.
	// reason ∈ {"disown", "idle", "lease_expired", "lease_corrupt", "realm_closed"}
	HandleReleased(realm, handle, reason string)

	// Deserialization referenced a handle the realm does not hold.
	UnknownHandle(realm, handle string)

	// The lease store refused a write (backpressure/eviction).
	LeaseRejected(realm, handle string)

	// The lease store failed. op ∈ {"grant", "check", "revoke"}
	LeaseError(realm, op string, err error)

	// A compound value was emitted as type-only because the depth limit was hit.
	DepthTruncated(realm string, t remote.Type)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) HandleMinted(string, string)           {}
func (NopHooks) HandleReleased(string, string, string) {}
func (NopHooks) UnknownHandle(string, string)          {}
func (NopHooks) LeaseRejected(string, string)          {}
func (NopHooks) LeaseError(string, string, error)      {}
func (NopHooks) DepthTruncated(string, remote.Type)    {}
