// Package codec turns remote values into bytes for a transport and back.
//
// Every codec encodes the generic tree produced by remote.RemoteValue.ToWire
// and decodes through remote.FromWire, so handle priority and payload
// validation are the same whichever format is on the wire.
package codec

import (
	"fmt"

	"github.com/unkn0wn-root/remoteval/remote"
)

// Codec encodes/decodes remote values to []byte.
type Codec interface {
	Encode(remote.RemoteValue) ([]byte, error)
	Decode([]byte) (remote.RemoteValue, error)
}

// ByName returns the codec for a format name: "json", "cbor", "msgpack"
// or "protobuf".
func ByName(name string) (Codec, error) {
	switch name {
	case "json", "":
		return JSON{}, nil
	case "cbor":
		return NewCBOR(true)
	case "msgpack":
		return Msgpack{}, nil
	case "protobuf", "proto":
		return Protobuf{}, nil
	}
	return nil, fmt.Errorf("codec: unknown format %q", name)
}

func decoded(format string, tree any, err error) (remote.RemoteValue, error) {
	if err != nil {
		return remote.RemoteValue{}, fmt.Errorf("codec %s: %w", format, err)
	}
	rv, err := remote.FromWire(tree)
	if err != nil {
		return remote.RemoteValue{}, fmt.Errorf("codec %s: %w", format, err)
	}
	return rv, nil
}
