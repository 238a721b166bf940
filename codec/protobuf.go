package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/remoteval/remote"
)

// Protobuf carries remote values as google.protobuf.Value, for transports
// that speak protobuf end to end. All numbers travel as doubles; the
// sentinel strings keep NaN, the infinities and -0 intact.
type Protobuf struct{}

var protoOpts = proto.MarshalOptions{Deterministic: true}

func (Protobuf) Encode(rv remote.RemoteValue) ([]byte, error) {
	v, err := structpb.NewValue(rv.ToWire())
	if err != nil {
		return nil, err
	}
	return protoOpts.Marshal(v)
}

func (Protobuf) Decode(b []byte) (remote.RemoteValue, error) {
	var v structpb.Value
	if err := proto.Unmarshal(b, &v); err != nil {
		return decoded("protobuf", nil, err)
	}
	return decoded("protobuf", v.AsInterface(), nil)
}
