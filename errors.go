package remoteval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/remoteval/remote"
)

var (
	// ErrUnknownHandle is returned when a handle is not registered in the realm:
	// never minted, released, swept, lease expired, or minted by another realm.
	ErrUnknownHandle = errors.New("remoteval: unknown handle")

	// ErrUnsupportedType is returned when a value has no handle and its type
	// cannot be constructed by the deserializer.
	ErrUnsupportedType = errors.New("remoteval: unsupported type")

	// ErrMalformedValue is returned when a tag's required payload is missing or
	// has the wrong shape.
	ErrMalformedValue = remote.ErrMalformedValue

	// ErrNoSuchNode is returned when a node argument names a sharedId the
	// realm never assigned.
	ErrNoSuchNode = errors.New("remoteval: no such node")

	// ErrUnserializableValue is returned when a runtime value has no wire mapping.
	ErrUnserializableValue = errors.New("remoteval: unserializable value")

	// ErrInvalidOwnership is returned for ownership modes other than root/none.
	ErrInvalidOwnership = errors.New("remoteval: invalid result ownership")

	// ErrRealmClosed is returned when minting into a closed realm.
	ErrRealmClosed = errors.New("remoteval: realm closed")

	// ErrLeaseRejected is returned when the lease store refuses a new handle's
	// lease, typically because a capacity-bounded store is full.
	ErrLeaseRejected = errors.New("remoteval: handle lease rejected")

	// ErrNoRealm is returned when a realm lookup matches nothing (or more than one).
	ErrNoRealm = errors.New("remoteval: no such realm")
)

// CodecError locates a failure inside a value. Path is "$" for the top level,
// "$[1]" for the second element, "$[0][1]" for the value of the first pair.
type CodecError struct {
	Op     string // "serialize" or "deserialize"
	Path   string
	Type   remote.Type
	Handle string
	Err    error
}

func (e *CodecError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" ")
	b.WriteString(e.Path)
	if e.Type != "" {
		fmt.Fprintf(&b, " (type %q)", e.Type)
	}
	if e.Handle != "" {
		fmt.Fprintf(&b, " (handle %q)", e.Handle)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("unknown error")
	}
	return b.String()
}

func (e *CodecError) Unwrap() error { return e.Err }
