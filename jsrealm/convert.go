package jsrealm

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/unkn0wn-root/remoteval"
	"github.com/unkn0wn-root/remoteval/host"
)

var proxyType = reflect.TypeOf(goja.Proxy{})

// pass tracks how deep each object has been filled during one conversion, so
// cycles terminate and shared objects are walked once per depth.
type pass struct {
	filled map[*goja.Object]int
}

func newPass() *pass { return &pass{filled: make(map[*goja.Object]int)} }

// fill reports whether obj's contents must be (re)read at depth.
func (p *pass) fill(obj *goja.Object, depth int) bool {
	if depth <= 0 {
		return false
	}
	if d, ok := p.filled[obj]; ok && d >= depth {
		return false
	}
	p.filled[obj] = depth
	return true
}

// bind returns the Ref already standing for obj, or records fresh. A Ref
// lives as long as the realm, which keeps handle identity stable across
// evaluations.
func (r *Realm) bind(obj *goja.Object, fresh host.Ref) host.Ref {
	if cur, ok := r.refs[obj]; ok && cur.Kind() == fresh.Kind() {
		return cur
	}
	r.refs[obj] = fresh
	r.objs[fresh] = obj
	return fresh
}

// toHost snapshots v as a host value. Compound contents are read down to
// depth only; deeper levels are never serialized.
func (r *Realm) toHost(v goja.Value, depth int, p *pass) (host.Value, error) {
	switch {
	case v == nil || goja.IsUndefined(v):
		return host.Undefined{}, nil
	case goja.IsNull(v):
		return host.Null{}, nil
	}
	switch x := v.(type) {
	case *goja.Symbol:
		if s, ok := r.syms[x]; ok {
			return s, nil
		}
		desc, err := call(r.h.description, x)
		if err != nil {
			return nil, err
		}
		s := &host.Symbol{Description: desc.String()}
		r.syms[x] = s
		r.objs[s] = x
		return s, nil
	case *goja.Object:
		return r.objectToHost(x, depth, p)
	}

	switch x := v.Export().(type) {
	case string:
		return host.String(x), nil
	case bool:
		return host.Boolean(x), nil
	case int64:
		return host.Number(float64(x)), nil
	case float64:
		return host.Number(x), nil
	case *big.Int:
		return host.BigInt{Int: x}, nil
	}
	return nil, fmt.Errorf("%w: %T", remoteval.ErrUnserializableValue, v.Export())
}

func (r *Realm) objectToHost(obj *goja.Object, depth int, p *pass) (host.Value, error) {
	if hn, ok := r.unwrap[obj]; ok {
		return r.nodeToHost(hn, depth), nil
	}
	if obj.ExportType() == proxyType {
		return r.bind(obj, &host.Proxy{}), nil
	}

	kv, err := call(r.h.kind, obj)
	if err != nil {
		return nil, err
	}
	switch kv.String() {
	case "function":
		f := r.bind(obj, &host.Function{}).(*host.Function)
		f.Name = obj.Get("name").String()
		return f, nil
	case "array":
		a := r.bind(obj, &host.Array{}).(*host.Array)
		if !p.fill(obj, depth) {
			return a, nil
		}
		n := int(obj.Get("length").ToInteger())
		elems := make([]host.Value, n)
		for i := 0; i < n; i++ {
			if elems[i], err = r.toHost(obj.Get(strconv.Itoa(i)), depth-1, p); err != nil {
				return nil, err
			}
		}
		a.Elements = elems
		return a, nil
	case "map":
		m := r.bind(obj, &host.Map{}).(*host.Map)
		if !p.fill(obj, depth) {
			return m, nil
		}
		pairs, err := r.list(r.h.entries, obj)
		if err != nil {
			return nil, err
		}
		entries := make([]host.Entry, len(pairs))
		for i, pair := range pairs {
			po := pair.ToObject(r.vm)
			if entries[i].Key, err = r.toHost(po.Get("0"), depth-1, p); err != nil {
				return nil, err
			}
			if entries[i].Value, err = r.toHost(po.Get("1"), depth-1, p); err != nil {
				return nil, err
			}
		}
		m.Entries = entries
		return m, nil
	case "set":
		s := r.bind(obj, &host.Set{}).(*host.Set)
		if !p.fill(obj, depth) {
			return s, nil
		}
		vals, err := r.list(r.h.values, obj)
		if err != nil {
			return nil, err
		}
		elems := make([]host.Value, len(vals))
		for i, e := range vals {
			if elems[i], err = r.toHost(e, depth-1, p); err != nil {
				return nil, err
			}
		}
		s.Elements = elems
		return s, nil
	case "date":
		d := r.bind(obj, &host.Date{}).(*host.Date)
		ms, err := call(r.h.time, obj)
		if err != nil {
			return nil, err
		}
		f := ms.ToFloat()
		d.Invalid = math.IsNaN(f)
		d.Time = time.Time{}
		if !d.Invalid {
			d.Time = time.UnixMilli(int64(f)).UTC()
		}
		return d, nil
	case "regexp":
		re := r.bind(obj, &host.RegExp{}).(*host.RegExp)
		src, err := call(r.h.source, obj)
		if err != nil {
			return nil, err
		}
		so := src.ToObject(r.vm)
		re.Pattern = so.Get("0").String()
		re.Flags = so.Get("1").String()
		return re, nil
	case "error":
		e := r.bind(obj, &host.Error{}).(*host.Error)
		e.Name = obj.Get("name").String()
		e.Message = obj.Get("message").String()
		return e, nil
	case "typedarray":
		ta := r.bind(obj, &host.TypedArray{}).(*host.TypedArray)
		tag, err := call(r.h.tag, obj)
		if err != nil {
			return nil, err
		}
		ta.Class = tag.String()
		ta.Length = int(obj.Get("length").ToInteger())
		return ta, nil
	case "weakmap":
		return r.bind(obj, &host.WeakMap{}), nil
	case "weakset":
		return r.bind(obj, &host.WeakSet{}), nil
	case "promise":
		return r.bind(obj, &host.Promise{}), nil
	case "window":
		return r.bind(obj, &host.Window{}), nil
	}

	o := r.bind(obj, &host.Object{}).(*host.Object)
	if !p.fill(obj, depth) {
		return o, nil
	}
	keys := obj.Keys()
	props := make([]host.Property, len(keys))
	for i, k := range keys {
		props[i].Key = k
		if props[i].Value, err = r.toHost(obj.Get(k), depth-1, p); err != nil {
			return nil, err
		}
	}
	o.Properties = props
	return o, nil
}

// list calls a helper returning an array and splits the result.
func (r *Realm) list(fn goja.Callable, obj *goja.Object) ([]goja.Value, error) {
	res, err := call(fn, obj)
	if err != nil {
		return nil, err
	}
	arr := res.ToObject(r.vm)
	n := int(arr.Get("length").ToInteger())
	out := make([]goja.Value, n)
	for i := range out {
		out[i] = arr.Get(strconv.Itoa(i))
	}
	return out, nil
}

// toJS turns a deserialized value into an engine value. Values that were
// produced by this realm map back to the very same engine object.
func (r *Realm) toJS(v host.Value) (goja.Value, error) {
	if ref, ok := v.(host.Ref); ok {
		if obj, ok := r.objs[ref]; ok {
			return obj, nil
		}
	}

	switch x := v.(type) {
	case host.Undefined:
		return goja.Undefined(), nil
	case host.Null:
		return goja.Null(), nil
	case host.String:
		return r.vm.ToValue(string(x)), nil
	case host.Number:
		return r.vm.ToValue(float64(x)), nil
	case host.Boolean:
		return r.vm.ToValue(bool(x)), nil
	case host.BigInt:
		return call(r.h.mkBigInt, r.vm.ToValue(x.String()))
	case *host.Array:
		items, err := r.toJSList(x.Elements)
		if err != nil {
			return nil, err
		}
		return r.vm.NewArray(items...), nil
	case *host.Set:
		items, err := r.toJSList(x.Elements)
		if err != nil {
			return nil, err
		}
		return call(r.h.mkSet, r.vm.NewArray(items...))
	case *host.Object:
		obj := r.vm.NewObject()
		for _, p := range x.Properties {
			pv, err := r.toJS(p.Value)
			if err != nil {
				return nil, err
			}
			if err := obj.Set(p.Key, pv); err != nil {
				return nil, err
			}
		}
		return obj, nil
	case *host.Map:
		pairs := make([]any, len(x.Entries))
		for i, e := range x.Entries {
			k, err := r.toJS(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := r.toJS(e.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = r.vm.NewArray(k, val)
		}
		return call(r.h.mkMap, r.vm.NewArray(pairs...))
	case *host.Date:
		ms := math.NaN()
		if !x.Invalid {
			ms = float64(x.Time.UnixMilli())
		}
		return call(r.h.mkDate, r.vm.ToValue(ms))
	case *host.RegExp:
		return call(r.h.mkRegExp, r.vm.ToValue(x.Pattern), r.vm.ToValue(x.Flags))
	case *host.Node:
		if hn, ok := r.hnodes[x]; ok {
			return r.wrap(hn), nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no object in this realm", remoteval.ErrUnsupportedType, v.Kind())
}

func (r *Realm) toJSList(vals []host.Value) ([]any, error) {
	out := make([]any, len(vals))
	for i, v := range vals {
		jv, err := r.toJS(v)
		if err != nil {
			return nil, err
		}
		out[i] = jv
	}
	return out, nil
}
