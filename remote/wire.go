package remote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ToWire converts rv into a generic tree of map[string]any, []any and scalars
// that every byte codec can encode as-is.
func (rv RemoteValue) ToWire() map[string]any {
	out := make(map[string]any, 3)
	if rv.Type != "" {
		out["type"] = string(rv.Type)
	}
	if rv.Handle != "" {
		out["handle"] = rv.Handle
	}
	if v, ok := valueToWire(rv.Value); ok {
		out["value"] = v
	}
	return out
}

func valueToWire(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		return x, true
	case bool:
		return x, true
	case Number:
		return x.Wire(), true
	case RegExpValue:
		return map[string]any{"pattern": x.Pattern, "flags": x.Flags}, true
	case *RegExpValue:
		if x == nil {
			return nil, false
		}
		return map[string]any{"pattern": x.Pattern, "flags": x.Flags}, true
	case []RemoteValue:
		items := make([]any, len(x))
		for i, it := range x {
			items[i] = it.ToWire()
		}
		return items, true
	case []Pair:
		pairs := make([]any, len(x))
		for i, p := range x {
			var key any = p.Key
			if p.KeyValue != nil {
				key = p.KeyValue.ToWire()
			}
			pairs[i] = []any{key, p.Value.ToWire()}
		}
		return pairs, true
	case *NodeProperties:
		if x == nil {
			return nil, false
		}
		return x.toWire(), true
	}
	return v, true
}

func (n *NodeProperties) toWire() map[string]any {
	out := map[string]any{
		"nodeType": n.NodeType,
		"sharedId": n.SharedID,
	}
	if n.container() {
		out["childNodeCount"] = n.ChildNodeCount
	}
	if n.LocalName != "" {
		out["localName"] = n.LocalName
	}
	if n.NamespaceURI != "" {
		out["namespaceURI"] = n.NamespaceURI
	}
	if n.Attributes != nil {
		attrs := make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			attrs[k] = v
		}
		out["attributes"] = attrs
	}
	if n.Children != nil {
		children := make([]any, len(n.Children))
		for i, c := range n.Children {
			children[i] = c.ToWire()
		}
		out["children"] = children
	}
	if n.NodeValue != nil {
		out["nodeValue"] = *n.NodeValue
	}
	return out
}

// FromWire parses a generic tree (as produced by a JSON, CBOR or MessagePack
// decoder into any) into a RemoteValue.
//
// An input carrying "handle" yields a reference and nothing else in it is
// looked at. Unknown type tags are preserved so that the caller can report
// them; structurally invalid payloads fail with ErrMalformedValue.
func FromWire(v any) (RemoteValue, error) {
	return fromWire(v, "$")
}

func fromWire(v any, path string) (RemoteValue, error) {
	m, ok := asMap(v)
	if !ok {
		return RemoteValue{}, malformed(path, "expected object, got %T", v)
	}

	if h, present := m["handle"]; present && h != nil {
		hs, ok := h.(string)
		if !ok || hs == "" {
			return RemoteValue{}, malformed(path, "handle must be a non-empty string")
		}
		rv := RemoteValue{Handle: hs}
		if t, ok := m["type"].(string); ok {
			rv.Type = Type(t)
		}
		return rv, nil
	}

	ts, ok := m["type"].(string)
	if !ok {
		return RemoteValue{}, malformed(path, "missing type")
	}
	rv := RemoteValue{Type: Type(ts)}
	raw, hasValue := m["value"]
	if hasValue && raw == nil {
		hasValue = false
	}

	switch rv.Type {
	case TypeString, TypeBigInt, TypeDate:
		if !hasValue {
			return RemoteValue{}, malformed(path, "%s requires value", rv.Type)
		}
		s, ok := raw.(string)
		if !ok {
			return RemoteValue{}, malformed(path, "%s value must be a string, got %T", rv.Type, raw)
		}
		rv.Value = s
	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return RemoteValue{}, malformed(path, "boolean value must be a bool, got %T", raw)
		}
		rv.Value = b
	case TypeNumber:
		if !hasValue {
			return RemoteValue{}, malformed(path, "number requires value")
		}
		n, err := ParseNumber(raw)
		if err != nil {
			return RemoteValue{}, fmt.Errorf("%s: %w", path, err)
		}
		rv.Value = n
	case TypeRegExp:
		rm, ok := asMap(raw)
		if !ok {
			return RemoteValue{}, malformed(path, "regexp requires {pattern, flags}")
		}
		pattern, ok := rm["pattern"].(string)
		if !ok {
			return RemoteValue{}, malformed(path, "regexp requires pattern")
		}
		re := RegExpValue{Pattern: pattern}
		if f, present := rm["flags"]; present && f != nil {
			fs, ok := f.(string)
			if !ok {
				return RemoteValue{}, malformed(path, "regexp flags must be a string")
			}
			re.Flags = fs
		}
		rv.Value = re
	case TypeArray, TypeSet:
		if !hasValue {
			break
		}
		list, ok := raw.([]any)
		if !ok {
			return RemoteValue{}, malformed(path, "%s value must be a list, got %T", rv.Type, raw)
		}
		items := make([]RemoteValue, len(list))
		for i, it := range list {
			parsed, err := fromWire(it, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return RemoteValue{}, err
			}
			items[i] = parsed
		}
		rv.Value = items
	case TypeObject, TypeMap:
		if !hasValue {
			break
		}
		pairs, err := pairsFromWire(raw, path)
		if err != nil {
			return RemoteValue{}, err
		}
		rv.Value = pairs
	case TypeNode:
		if !hasValue {
			break
		}
		n, err := nodeFromWire(raw, path)
		if err != nil {
			return RemoteValue{}, err
		}
		rv.Value = n
	}
	return rv, nil
}

func pairsFromWire(raw any, path string) ([]Pair, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, malformed(path, "value must be a list of pairs, got %T", raw)
	}
	pairs := make([]Pair, len(list))
	for i, it := range list {
		at := path + "[" + strconv.Itoa(i) + "]"
		kv, ok := it.([]any)
		if !ok || len(kv) != 2 {
			return nil, malformed(at, "expected [key, value]")
		}
		var p Pair
		switch k := kv[0].(type) {
		case string:
			p.Key = k
		default:
			key, err := fromWire(k, at+"[0]")
			if err != nil {
				return nil, err
			}
			p.KeyValue = &key
		}
		val, err := fromWire(kv[1], at+"[1]")
		if err != nil {
			return nil, err
		}
		p.Value = val
		pairs[i] = p
	}
	return pairs, nil
}

func nodeFromWire(raw any, path string) (*NodeProperties, error) {
	m, ok := asMap(raw)
	if !ok {
		return nil, malformed(path, "node value must be an object")
	}
	n := &NodeProperties{}
	// A node sent back as an argument may carry nothing but its sharedId.
	if nt, present := m["nodeType"]; present && nt != nil {
		i, ok := asInt(nt)
		if !ok {
			return nil, malformed(path, "nodeType must be an integer")
		}
		n.NodeType = i
	}
	n.ChildNodeCount, _ = asInt(m["childNodeCount"])
	n.SharedID, _ = m["sharedId"].(string)
	n.LocalName, _ = m["localName"].(string)
	n.NamespaceURI, _ = m["namespaceURI"].(string)
	if nv, ok := m["nodeValue"].(string); ok {
		n.NodeValue = &nv
	}
	if a, present := m["attributes"]; present && a != nil {
		am, ok := asMap(a)
		if !ok {
			return nil, malformed(path, "node attributes must be an object")
		}
		n.Attributes = make(map[string]string, len(am))
		for k, v := range am {
			s, ok := v.(string)
			if !ok {
				return nil, malformed(path, "attribute %q must be a string", k)
			}
			n.Attributes[k] = s
		}
	}
	if c, present := m["children"]; present && c != nil {
		list, ok := c.([]any)
		if !ok {
			return nil, malformed(path, "node children must be a list")
		}
		n.Children = make([]RemoteValue, len(list))
		for i, it := range list {
			child, err := fromWire(it, path+".children["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			n.Children[i] = child
		}
	}
	return n, nil
}

func malformed(path, format string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", path, ErrMalformedValue, fmt.Sprintf(format, args...))
}

// asMap accepts both decoded map shapes; CBOR decodes into map[any]any unless
// told otherwise.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	case float32:
		return asInt(float64(x))
	case json.Number:
		i, err := x.Int64()
		return int(i), err == nil
	}
	return 0, false
}
