package remoteval

import "time"

const (
	// DefaultDepth is how many compound levels are expanded when a command
	// does not ask for a depth.
	DefaultDepth = 1

	defaultNavigableID  = "UNKNOWN"
	defaultRealmType    = "window"
	defaultLeaseTTL     = 10 * time.Minute
	defaultLeaseTimeout = time.Second
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
