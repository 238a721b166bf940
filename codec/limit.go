package codec

import (
	"fmt"

	"github.com/unkn0wn-root/remoteval/remote"
)

// Limit wraps another codec to enforce a maximum payload size at Decode
// time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: refuse oversized command arguments before any of their
// handles are resolved.
type Limit struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Decode.
	MaxDecode int
}

func (c Limit) Encode(rv remote.RemoteValue) ([]byte, error) { return c.Inner.Encode(rv) }
func (c Limit) Decode(b []byte) (remote.RemoteValue, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return remote.RemoteValue{}, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
