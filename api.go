package remoteval

import (
	"fmt"
	"time"

	pr "github.com/unkn0wn-root/remoteval/provider"
)

// Ownership controls whether serialization binds the result to a handle.
type Ownership string

const (
	OwnershipRoot Ownership = "root"
	OwnershipNone Ownership = "none"
)

// ParseOwnership reads a resultOwnership command parameter. Empty means none.
func ParseOwnership(s string) (Ownership, error) {
	switch Ownership(s) {
	case "", OwnershipNone:
		return OwnershipNone, nil
	case OwnershipRoot:
		return OwnershipRoot, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidOwnership, s)
}

func (o Ownership) valid() bool { return o == OwnershipRoot || o == OwnershipNone }

// RealmOptions configure a Realm and its handle registry.
// All fields are optional; zero values resolve to the defaults noted.
type RealmOptions struct {
	ID                string // "" => random UUID
	BrowsingContextID string
	NavigableID       string // sharedId prefix; "" => "UNKNOWN"
	Sandbox           string // "" => default realm
	Origin            string
	Type              string // "" => "window"

	DefaultDepth    int // 0 => DefaultDepth (1); use Serialize for an explicit 0
	MaxNodeChildren int // 0 => unlimited

	// Idle policy: handles not resolved or re-minted within IdleTTL are
	// released by a sweep every SweepInterval. Zero disables it.
	IdleTTL       time.Duration
	SweepInterval time.Duration // 0 => IdleTTL/2

	// Lease policy: with a provider set, every handle holds a lease that must
	// be alive for Resolve to succeed.
	Leases       pr.Provider
	LeaseTTL     time.Duration // 0 => 10m
	LeaseTimeout time.Duration // per lease-store call; 0 => 1s

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks
}

// NewRealm builds a realm with its own handle registry.
func NewRealm(opts RealmOptions) (*Realm, error) {
	return newRealm(opts)
}
