package remote

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// MarshalJSON encodes rv in the protocol's JSON shape.
func (rv RemoteValue) MarshalJSON() ([]byte, error) {
	return jsonAPI.Marshal(rv.ToWire())
}

// UnmarshalJSON decodes the protocol's JSON shape, including bare
// {"handle": ...} references.
func (rv *RemoteValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := jsonAPI.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := FromWire(raw)
	if err != nil {
		return err
	}
	*rv = parsed
	return nil
}
