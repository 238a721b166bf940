package remoteval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/unkn0wn-root/remoteval/host"
	"github.com/unkn0wn-root/remoteval/remote"
)

// Deserializer turns remote values back into runtime values for one realm.
// It resolves handles and sharedIds but never registers anything.
type Deserializer struct {
	reg *HandleRegistry
}

// Deserialize converts rv. A value carrying a handle resolves to the bound
// object at every nesting level; its type and value are ignored.
func (d *Deserializer) Deserialize(rv remote.RemoteValue) (host.Value, error) {
	return d.deserialize(rv, "$")
}

// DeserializeArgs converts a call's arguments in order. It stops at the
// first failure and returns no partial result.
func (d *Deserializer) DeserializeArgs(args []remote.RemoteValue) ([]host.Value, error) {
	out := make([]host.Value, len(args))
	for i, a := range args {
		v, err := d.deserialize(a, "arguments["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Deserializer) fail(path string, rv remote.RemoteValue, err error) error {
	return &CodecError{Op: "deserialize", Path: path, Type: rv.Type, Handle: rv.Handle, Err: err}
}

func (d *Deserializer) malformed(path string, rv remote.RemoteValue, format string, args ...any) error {
	return d.fail(path, rv, fmt.Errorf("%w: %s", ErrMalformedValue, fmt.Sprintf(format, args...)))
}

func (d *Deserializer) deserialize(rv remote.RemoteValue, path string) (host.Value, error) {
	if rv.Handle != "" {
		ref, err := d.reg.Resolve(rv.Handle)
		if err != nil {
			return nil, &CodecError{Op: "deserialize", Path: path, Handle: rv.Handle, Err: err}
		}
		return ref, nil
	}

	switch rv.Type {
	case "":
		return nil, d.malformed(path, rv, "missing type")
	case remote.TypeUndefined:
		return host.Undefined{}, nil
	case remote.TypeNull:
		return host.Null{}, nil
	case remote.TypeString:
		s, ok := rv.Value.(string)
		if !ok {
			return nil, d.malformed(path, rv, "string value must be a string, got %T", rv.Value)
		}
		return host.String(s), nil
	case remote.TypeBoolean:
		b, ok := rv.Value.(bool)
		if !ok {
			return nil, d.malformed(path, rv, "boolean value must be a bool, got %T", rv.Value)
		}
		return host.Boolean(b), nil
	case remote.TypeNumber:
		if !rv.HasValue() {
			return nil, d.malformed(path, rv, "number requires value")
		}
		n, err := remote.ParseNumber(rv.Value)
		if err != nil {
			return nil, d.fail(path, rv, err)
		}
		return host.Number(n), nil
	case remote.TypeBigInt:
		s, ok := rv.Value.(string)
		if !ok {
			return nil, d.malformed(path, rv, "bigint value must be a string, got %T", rv.Value)
		}
		b, err := host.ParseBigInt(s)
		if err != nil {
			return nil, d.malformed(path, rv, "%v", err)
		}
		return b, nil
	case remote.TypeDate:
		s, ok := rv.Value.(string)
		if !ok {
			return nil, d.malformed(path, rv, "date value must be a string, got %T", rv.Value)
		}
		if s == invalidDate {
			return &host.Date{Invalid: true}, nil
		}
		t, err := ParseDate(s)
		if err != nil {
			return nil, d.fail(path, rv, err)
		}
		return host.NewDate(t), nil
	case remote.TypeRegExp:
		switch re := rv.Value.(type) {
		case remote.RegExpValue:
			return &host.RegExp{Pattern: re.Pattern, Flags: re.Flags}, nil
		case *remote.RegExpValue:
			if re != nil {
				return &host.RegExp{Pattern: re.Pattern, Flags: re.Flags}, nil
			}
		}
		return nil, d.malformed(path, rv, "regexp requires {pattern, flags}")
	case remote.TypeArray, remote.TypeSet:
		items, ok := rv.Items()
		if !ok {
			return nil, d.malformed(path, rv, "%s requires a list value", rv.Type)
		}
		elems := make([]host.Value, len(items))
		for i, it := range items {
			v, err := d.deserialize(it, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		if rv.Type == remote.TypeArray {
			return host.NewArray(elems...), nil
		}
		set := host.NewSet()
		for _, e := range elems {
			set.Add(e)
		}
		return set, nil
	case remote.TypeObject:
		return d.object(rv, path)
	case remote.TypeMap:
		return d.mapping(rv, path)
	case remote.TypeNode:
		return d.node(rv, path)
	}
	// Known opaque kinds cannot be built from a payload; they only travel
	// by handle.
	return nil, d.fail(path, rv, fmt.Errorf("%w: %q", ErrUnsupportedType, rv.Type))
}

func (d *Deserializer) object(rv remote.RemoteValue, path string) (host.Value, error) {
	pairs, ok := rv.Pairs()
	if !ok {
		return nil, d.malformed(path, rv, "object requires a list of pairs")
	}
	obj := host.NewObject()
	for i, p := range pairs {
		at := path + "[" + strconv.Itoa(i) + "]"
		key, ok := p.StringKey()
		if !ok {
			kv, err := d.deserialize(*p.KeyValue, at+"[0]")
			if err != nil {
				return nil, err
			}
			if key, ok = propertyKey(kv); !ok {
				return nil, d.malformed(at+"[0]", *p.KeyValue, "object key must be a string, got %s", kv.Kind())
			}
		}
		v, err := d.deserialize(p.Value, at+"[1]")
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
	return obj, nil
}

func (d *Deserializer) mapping(rv remote.RemoteValue, path string) (host.Value, error) {
	pairs, ok := rv.Pairs()
	if !ok {
		return nil, d.malformed(path, rv, "map requires a list of pairs")
	}
	m := host.NewMap()
	for i, p := range pairs {
		at := path + "[" + strconv.Itoa(i) + "]"
		var key host.Value = host.String(p.Key)
		if p.KeyValue != nil {
			kv, err := d.deserialize(*p.KeyValue, at+"[0]")
			if err != nil {
				return nil, err
			}
			key = kv
		}
		v, err := d.deserialize(p.Value, at+"[1]")
		if err != nil {
			return nil, err
		}
		m.Set(key, v)
	}
	return m, nil
}

// node resolves a node by the sharedId it was serialized with. Nodes are
// never constructed from their properties.
func (d *Deserializer) node(rv remote.RemoteValue, path string) (host.Value, error) {
	props, ok := rv.Node()
	if !ok || props.SharedID == "" {
		return nil, d.malformed(path, rv, "node requires value.sharedId")
	}
	n, ok := d.reg.ResolveSharedID(props.SharedID)
	if !ok {
		return nil, d.fail(path, rv, fmt.Errorf("%w: %q", ErrNoSuchNode, props.SharedID))
	}
	return n, nil
}

// propertyKey converts a primitive to the property key the runtime would use.
func propertyKey(v host.Value) (string, bool) {
	switch x := v.(type) {
	case host.String:
		return string(x), true
	case host.Number:
		return numberKey(float64(x)), true
	case host.Boolean:
		return strconv.FormatBool(bool(x)), true
	case host.BigInt:
		return x.String(), true
	case host.Null:
		return "null", true
	case host.Undefined:
		return "undefined", true
	}
	return "", false
}

func numberKey(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		// 1e+21, 1e-7: no zero padding in the exponent.
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + exp
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
