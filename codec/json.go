package codec

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/unkn0wn-root/remoteval/remote"
)

var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// JSON is the protocol's native format. Numbers decode as json.Number so
// that integers survive untouched until they are parsed.
type JSON struct{}

func (JSON) Encode(rv remote.RemoteValue) ([]byte, error) { return jsonAPI.Marshal(rv.ToWire()) }
func (JSON) Decode(b []byte) (remote.RemoteValue, error) {
	var tree any
	err := jsonAPI.Unmarshal(b, &tree)
	return decoded("json", tree, err)
}
