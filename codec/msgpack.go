package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/unkn0wn-root/remoteval/remote"
)

// Msgpack encodes remote values with vmihailenco/msgpack/v5.
// The zero value is ready to use.
type Msgpack struct{}

func (Msgpack) Encode(rv remote.RemoteValue) ([]byte, error) {
	return msgpack.Marshal(rv.ToWire())
}

func (Msgpack) Decode(b []byte) (remote.RemoteValue, error) {
	var tree any
	err := msgpack.Unmarshal(b, &tree)
	return decoded("msgpack", tree, err)
}
