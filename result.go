package remoteval

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ResultSuccess   = "success"
	ResultException = "exception"
)

// EvaluateResult is the result of script.evaluate and script.callFunction.
type EvaluateResult struct {
	Type             string              `json:"type"`
	Result           *remote.RemoteValue `json:"result,omitempty"`
	ExceptionDetails *ExceptionDetails   `json:"exceptionDetails,omitempty"`
	Realm            string              `json:"realm"`
}

// Encode renders the result as protocol JSON.
func (e EvaluateResult) Encode() ([]byte, error) { return json.Marshal(e) }

type ExceptionDetails struct {
	ColumnNumber int                `json:"columnNumber"`
	LineNumber   int                `json:"lineNumber"`
	Text         string             `json:"text"`
	Exception    remote.RemoteValue `json:"exception"`
	StackTrace   StackTrace         `json:"stackTrace"`
}

type StackTrace struct {
	CallFrames []StackFrame `json:"callFrames"`
}

type StackFrame struct {
	FunctionName string `json:"functionName"`
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// SerializationOptions is the serializationOptions command parameter.
type SerializationOptions struct {
	MaxObjectDepth *int `json:"maxObjectDepth,omitempty"`
}

// EvaluateParams are the codec-relevant parameters of script.evaluate.
type EvaluateParams struct {
	Expression           string                `json:"expression"`
	AwaitPromise         bool                  `json:"awaitPromise"`
	ResultOwnership      string                `json:"resultOwnership,omitempty"`
	SerializationOptions *SerializationOptions `json:"serializationOptions,omitempty"`
}

// CallParams are the codec-relevant parameters of script.callFunction.
type CallParams struct {
	FunctionDeclaration  string                `json:"functionDeclaration"`
	AwaitPromise         bool                  `json:"awaitPromise"`
	This                 *remote.RemoteValue   `json:"this,omitempty"`
	Arguments            []remote.RemoteValue  `json:"arguments,omitempty"`
	ResultOwnership      string                `json:"resultOwnership,omitempty"`
	SerializationOptions *SerializationOptions `json:"serializationOptions,omitempty"`
}

// Call is a decoded callFunction: every argument is a live value.
type Call struct {
	Declaration string
	This        host.Value
	Args        []host.Value
	Ownership   Ownership
	Depth       int
}

// ParseCallParams decodes a callFunction parameter object.
func ParseCallParams(b []byte) (CallParams, error) {
	var p CallParams
	if err := json.Unmarshal(b, &p); err != nil {
		return CallParams{}, err
	}
	return p, nil
}

// ParseEvaluateParams decodes an evaluate parameter object.
func ParseEvaluateParams(b []byte) (EvaluateParams, error) {
	var p EvaluateParams
	if err := json.Unmarshal(b, &p); err != nil {
		return EvaluateParams{}, err
	}
	return p, nil
}

func (r *Realm) depth(o *SerializationOptions) int {
	if o == nil || o.MaxObjectDepth == nil || *o.MaxObjectDepth < 0 {
		return r.defaultDepth
	}
	return *o.MaxObjectDepth
}

// EvaluateOptions returns the ownership and depth of an evaluate command.
func (r *Realm) EvaluateOptions(p EvaluateParams) (Ownership, int, error) {
	o, err := ParseOwnership(p.ResultOwnership)
	if err != nil {
		return "", 0, err
	}
	return o, r.depth(p.SerializationOptions), nil
}

// DecodeCall resolves this and every argument before anything runs. Any
// failure rejects the whole call.
func (r *Realm) DecodeCall(p CallParams) (Call, error) {
	o, err := ParseOwnership(p.ResultOwnership)
	if err != nil {
		return Call{}, err
	}
	c := Call{
		Declaration: p.FunctionDeclaration,
		This:        host.Undefined{},
		Ownership:   o,
		Depth:       r.depth(p.SerializationOptions),
	}
	if p.This != nil {
		if c.This, err = r.des.deserialize(*p.This, "this"); err != nil {
			return Call{}, err
		}
	}
	if c.Args, err = r.des.DeserializeArgs(p.Arguments); err != nil {
		return Call{}, err
	}
	return c, nil
}

// Success wraps a returned value.
func (r *Realm) Success(v host.Value, ownership Ownership, depth int) (EvaluateResult, error) {
	rv, err := r.ser.Serialize(v, ownership, depth)
	if err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{Type: ResultSuccess, Result: &rv, Realm: r.id}, nil
}

// Exception wraps a thrown value. Exceptions are always serialized with
// root ownership so that the client can inspect the thrown object.
func (r *Realm) Exception(thrown host.Value, text string, depth int) (EvaluateResult, error) {
	rv, err := r.ser.Serialize(thrown, OwnershipRoot, depth)
	if err != nil {
		return EvaluateResult{}, err
	}
	return EvaluateResult{
		Type: ResultException,
		ExceptionDetails: &ExceptionDetails{
			Text:       text,
			Exception:  rv,
			StackTrace: StackTrace{CallFrames: []StackFrame{}},
		},
		Realm: r.id,
	}, nil
}

// LogArgs serializes console arguments for log.entryAdded. Log mirroring
// never mints handles.
func (r *Realm) LogArgs(args []host.Value) ([]remote.RemoteValue, error) {
	out := make([]remote.RemoteValue, len(args))
	for i, a := range args {
		rv, err := r.ser.Serialize(a, OwnershipNone, r.defaultDepth)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}
