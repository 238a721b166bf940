package remoteval

import (
	"fmt"
	"strconv"
	"time"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

const (
	dateLayout  = "2006-01-02T15:04:05.000Z"
	invalidDate = "Invalid Date"
)

// Serializer turns runtime values into remote values for one realm.
type Serializer struct {
	reg             *HandleRegistry
	maxNodeChildren int
	hooks           Hooks
}

// Serialize converts v, expanding compound values maxDepth levels deep.
//
// With OwnershipRoot a heap-allocated v is bound to a handle (minted, or
// reused when v already has one) and the handle is attached to the result.
// Nested values never carry handles. OwnershipNone registers nothing.
func (s *Serializer) Serialize(v host.Value, ownership Ownership, maxDepth int) (remote.RemoteValue, error) {
	if !ownership.valid() {
		return remote.RemoteValue{}, fmt.Errorf("%w: %q", ErrInvalidOwnership, ownership)
	}
	if maxDepth < 0 {
		maxDepth = 0
	}

	rv, err := s.serialize(v, maxDepth, "$")
	if err != nil {
		return remote.RemoteValue{}, err
	}

	if ownership == OwnershipRoot && !rv.Type.Primitive() {
		if ref, ok := v.(host.Ref); ok {
			h, err := s.reg.MintOrReuse(ref)
			if err != nil {
				return remote.RemoteValue{}, &CodecError{Op: "serialize", Path: "$", Type: rv.Type, Err: err}
			}
			rv.Handle = h
		}
	}
	return rv, nil
}

func (s *Serializer) serialize(v host.Value, depth int, path string) (remote.RemoteValue, error) {
	switch x := v.(type) {
	case host.Undefined:
		return remote.Undefined(), nil
	case host.Null:
		return remote.Null(), nil
	case host.String:
		return remote.String(string(x)), nil
	case host.Number:
		return remote.NumberValue(float64(x)), nil
	case host.Boolean:
		return remote.Boolean(bool(x)), nil
	case host.BigInt:
		return remote.BigInt(x.String()), nil

	case *host.Array:
		if x == nil {
			break
		}
		return s.list(remote.TypeArray, x.Elements, depth, path)
	case *host.Set:
		if x == nil {
			break
		}
		return s.list(remote.TypeSet, x.Elements, depth, path)
	case *host.Object:
		if x == nil {
			break
		}
		return s.object(x, depth, path)
	case *host.Map:
		if x == nil {
			break
		}
		return s.mapping(x, depth, path)
	case *host.Node:
		if x == nil {
			break
		}
		return s.node(x, depth, path)

	case *host.Date:
		if x == nil {
			break
		}
		return remote.Date(FormatDate(x)), nil
	case *host.RegExp:
		if x == nil {
			break
		}
		return remote.RegExp(x.Pattern, x.Flags), nil

	case *host.Symbol:
		return opaque(remote.TypeSymbol), nil
	case *host.WeakMap:
		return opaque(remote.TypeWeakMap), nil
	case *host.WeakSet:
		return opaque(remote.TypeWeakSet), nil
	case *host.Function:
		return opaque(remote.TypeFunction), nil
	case *host.Promise:
		return opaque(remote.TypePromise), nil
	case *host.TypedArray:
		return opaque(remote.TypeTypedArray), nil
	case *host.Proxy:
		return opaque(remote.TypeProxy), nil
	case *host.Error:
		return opaque(remote.TypeError), nil
	case *host.Window:
		return opaque(remote.TypeWindow), nil
	}
	return remote.RemoteValue{}, &CodecError{
		Op:   "serialize",
		Path: path,
		Err:  fmt.Errorf("%w: %T", ErrUnserializableValue, v),
	}
}

func opaque(t remote.Type) remote.RemoteValue { return remote.RemoteValue{Type: t} }

// truncated reports whether a compound value at depth is emitted type-only.
func (s *Serializer) truncated(t remote.Type, depth int) bool {
	if depth > 0 || !t.Compound() {
		return false
	}
	s.hooks.DepthTruncated(s.reg.realm, t)
	return true
}

func (s *Serializer) list(t remote.Type, elems []host.Value, depth int, path string) (remote.RemoteValue, error) {
	if s.truncated(t, depth) {
		return remote.RemoteValue{Type: t}, nil
	}
	items := make([]remote.RemoteValue, len(elems))
	for i, e := range elems {
		rv, err := s.serialize(e, depth-1, path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return remote.RemoteValue{}, err
		}
		items[i] = rv
	}
	return remote.RemoteValue{Type: t, Value: items}, nil
}

func (s *Serializer) object(o *host.Object, depth int, path string) (remote.RemoteValue, error) {
	if s.truncated(remote.TypeObject, depth) {
		return remote.RemoteValue{Type: remote.TypeObject}, nil
	}
	pairs := make([]remote.Pair, len(o.Properties))
	for i, p := range o.Properties {
		rv, err := s.serialize(p.Value, depth-1, path+"["+strconv.Itoa(i)+"][1]")
		if err != nil {
			return remote.RemoteValue{}, err
		}
		pairs[i] = remote.Prop(p.Key, rv)
	}
	return remote.RemoteValue{Type: remote.TypeObject, Value: pairs}, nil
}

// mapping emits string keys as plain strings and every other key as a
// nested remote value at the same depth as the entry's value.
func (s *Serializer) mapping(m *host.Map, depth int, path string) (remote.RemoteValue, error) {
	if s.truncated(remote.TypeMap, depth) {
		return remote.RemoteValue{Type: remote.TypeMap}, nil
	}
	pairs := make([]remote.Pair, len(m.Entries))
	for i, e := range m.Entries {
		at := path + "[" + strconv.Itoa(i) + "]"
		val, err := s.serialize(e.Value, depth-1, at+"[1]")
		if err != nil {
			return remote.RemoteValue{}, err
		}
		if k, ok := e.Key.(host.String); ok {
			pairs[i] = remote.Prop(string(k), val)
			continue
		}
		key, err := s.serialize(e.Key, depth-1, at+"[0]")
		if err != nil {
			return remote.RemoteValue{}, err
		}
		pairs[i] = remote.Entry(key, val)
	}
	return remote.RemoteValue{Type: remote.TypeMap, Value: pairs}, nil
}

// node always emits its properties; only children are subject to depth.
func (s *Serializer) node(n *host.Node, depth int, path string) (remote.RemoteValue, error) {
	props := &remote.NodeProperties{
		NodeType:       n.NodeType,
		LocalName:      n.LocalName,
		NamespaceURI:   n.NamespaceURI,
		ChildNodeCount: len(n.Children),
		SharedID:       s.reg.NodeIdentity(n),
	}
	if n.NodeType == host.ElementNode {
		props.Attributes = make(map[string]string, len(n.Attributes))
		for _, a := range n.Attributes {
			props.Attributes[a.Name] = a.Value
		}
	}
	if n.HasNodeValue() {
		nv := n.NodeValue
		props.NodeValue = &nv
	}

	if n.Container() && depth > 0 {
		children := n.Children
		if s.maxNodeChildren > 0 && len(children) > s.maxNodeChildren {
			children = children[:s.maxNodeChildren]
		}
		props.Children = make([]remote.RemoteValue, len(children))
		for i, c := range children {
			rv, err := s.serialize(c, depth-1, path+".children["+strconv.Itoa(i)+"]")
			if err != nil {
				return remote.RemoteValue{}, err
			}
			props.Children[i] = rv
		}
	}
	return remote.RemoteValue{Type: remote.TypeNode, Value: props}, nil
}

// FormatDate renders d the way the runtime's toISOString does, in UTC with
// millisecond precision. Years outside 0000..9999 use the six-digit form.
func FormatDate(d *host.Date) string {
	if d.Invalid {
		return invalidDate
	}
	t := d.Time.UTC()
	if y := t.Year(); y < 0 || y > 9999 {
		return fmt.Sprintf("%+07d", y) + t.Format("-01-02T15:04:05.000Z")
	}
	return t.Format(dateLayout)
}

// ParseDate reads an ISO-8601 instant, including the six-digit year form
// FormatDate writes. The offset is honored and the result is in UTC.
func ParseDate(s string) (time.Time, error) {
	in := s
	year, rest, extended := splitExtendedYear(s)
	if extended {
		// 2000 is a leap year, so Feb 29 survives until the real year is set.
		in = "2000" + rest
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, in)
		if err != nil {
			continue
		}
		if extended {
			e := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
			if e.Day() != t.Day() {
				break
			}
			t = e
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrMalformedValue, s)
}

// splitExtendedYear splits a "+YYYYYY" or "-YYYYYY" prefix. Negative zero
// is not a valid year.
func splitExtendedYear(s string) (int, string, bool) {
	if len(s) < 7 || (s[0] != '+' && s[0] != '-') {
		return 0, "", false
	}
	for i := 1; i < 7; i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, "", false
		}
	}
	y, _ := strconv.Atoi(s[1:7])
	if s[0] == '-' {
		if y == 0 {
			return 0, "", false
		}
		y = -y
	}
	return y, s[7:], true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999", // local-less forms read as UTC
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}
