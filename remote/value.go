package remote

import "errors"

// ErrMalformedValue is returned when a tag's required payload is missing or
// has the wrong shape.
var ErrMalformedValue = errors.New("remoteval: malformed value")

// RemoteValue is one node of the wire representation. See the package
// documentation for which Go type Value holds per Type.
//
// A RemoteValue read off the wire with a non-empty Handle is a reference: its
// Type and Value are whatever the sender put next to the handle and carry no
// meaning.
type RemoteValue struct {
	Type   Type
	Handle string
	Value  any
}

// Pair is one entry of an "object" or "map" value. Exactly one of Key and
// KeyValue is meaningful: KeyValue is nil for plain string keys.
type Pair struct {
	Key      string
	KeyValue *RemoteValue
	Value    RemoteValue
}

// StringKey reports the key as a plain string when it is one.
func (p Pair) StringKey() (string, bool) {
	if p.KeyValue == nil {
		return p.Key, true
	}
	return "", false
}

// RegExpValue is the payload of a "regexp" value.
type RegExpValue struct {
	Pattern string
	Flags   string
}

// NodeProperties is the payload of a "node" value.
//
// Attributes is nil for nodes that have none (text, comment); elements report
// an empty map. Children is nil when not expanded. NodeValue is nil for
// element nodes.
type NodeProperties struct {
	NodeType       int
	LocalName      string
	NamespaceURI   string
	ChildNodeCount int
	Attributes     map[string]string
	Children       []RemoteValue
	NodeValue      *string
	SharedID       string
}

// container reports whether the node type can have children; only those
// report childNodeCount.
func (n *NodeProperties) container() bool {
	switch n.NodeType {
	case 1, 9, 11:
		return true
	}
	return false
}

// IsReference reports whether rv only names a live object by handle.
func (rv RemoteValue) IsReference() bool { return rv.Handle != "" }

// HasValue reports whether the value field is present.
func (rv RemoteValue) HasValue() bool { return rv.Value != nil }

// Reference builds a bare handle reference.
func Reference(handle string) RemoteValue { return RemoteValue{Handle: handle} }

func Undefined() RemoteValue           { return RemoteValue{Type: TypeUndefined} }
func Null() RemoteValue                { return RemoteValue{Type: TypeNull} }
func String(s string) RemoteValue      { return RemoteValue{Type: TypeString, Value: s} }
func Boolean(b bool) RemoteValue       { return RemoteValue{Type: TypeBoolean, Value: b} }
func NumberValue(f float64) RemoteValue { return RemoteValue{Type: TypeNumber, Value: Number(f)} }

// BigInt builds a "bigint" value from its decimal representation.
func BigInt(decimal string) RemoteValue { return RemoteValue{Type: TypeBigInt, Value: decimal} }

// Date builds a "date" value from an ISO-8601 string.
func Date(iso string) RemoteValue { return RemoteValue{Type: TypeDate, Value: iso} }

func RegExp(pattern, flags string) RemoteValue {
	return RemoteValue{Type: TypeRegExp, Value: RegExpValue{Pattern: pattern, Flags: flags}}
}

func Array(items ...RemoteValue) RemoteValue {
	if items == nil {
		items = []RemoteValue{}
	}
	return RemoteValue{Type: TypeArray, Value: items}
}

func Set(items ...RemoteValue) RemoteValue {
	if items == nil {
		items = []RemoteValue{}
	}
	return RemoteValue{Type: TypeSet, Value: items}
}

func Object(pairs ...Pair) RemoteValue {
	if pairs == nil {
		pairs = []Pair{}
	}
	return RemoteValue{Type: TypeObject, Value: pairs}
}

func Map(pairs ...Pair) RemoteValue {
	if pairs == nil {
		pairs = []Pair{}
	}
	return RemoteValue{Type: TypeMap, Value: pairs}
}

// Prop is a string-keyed Pair.
func Prop(key string, v RemoteValue) Pair { return Pair{Key: key, Value: v} }

// Entry is a Pair keyed by a nested remote value.
func Entry(key, v RemoteValue) Pair { return Pair{KeyValue: &key, Value: v} }

// Items returns the elements of an array or set value.
func (rv RemoteValue) Items() ([]RemoteValue, bool) {
	items, ok := rv.Value.([]RemoteValue)
	return items, ok
}

// Pairs returns the entries of an object or map value.
func (rv RemoteValue) Pairs() ([]Pair, bool) {
	pairs, ok := rv.Value.([]Pair)
	return pairs, ok
}

// Node returns the properties of a node value.
func (rv RemoteValue) Node() (*NodeProperties, bool) {
	n, ok := rv.Value.(*NodeProperties)
	return n, ok && n != nil
}

// WithoutHandles returns a deep copy of rv with every handle removed. Log
// mirroring of a value uses the same shape as the result, minus handles.
func (rv RemoteValue) WithoutHandles() RemoteValue {
	out := RemoteValue{Type: rv.Type, Value: rv.Value}
	switch v := rv.Value.(type) {
	case []RemoteValue:
		items := make([]RemoteValue, len(v))
		for i, it := range v {
			items[i] = it.WithoutHandles()
		}
		out.Value = items
	case []Pair:
		pairs := make([]Pair, len(v))
		for i, p := range v {
			np := Pair{Key: p.Key, Value: p.Value.WithoutHandles()}
			if p.KeyValue != nil {
				k := p.KeyValue.WithoutHandles()
				np.KeyValue = &k
			}
			pairs[i] = np
		}
		out.Value = pairs
	case *NodeProperties:
		if v != nil {
			n := *v
			if v.Children != nil {
				n.Children = make([]RemoteValue, len(v.Children))
				for i, c := range v.Children {
					n.Children[i] = c.WithoutHandles()
				}
			}
			out.Value = &n
		}
	}
	return out
}
