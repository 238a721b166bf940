package jsrealm

import (
	"fmt"

	"github.com/dop251/goja"
)

// helperSrc evaluates to an object of small functions that classify and
// take apart engine values, and build the ones Go cannot create directly.
const helperSrc = `({
	kind: function (v) {
		if (typeof v === "function") return "function";
		if (Array.isArray(v)) return "array";
		if (v instanceof Map) return "map";
		if (v instanceof Set) return "set";
		if (v instanceof WeakMap) return "weakmap";
		if (v instanceof WeakSet) return "weakset";
		if (v instanceof Date) return "date";
		if (v instanceof RegExp) return "regexp";
		if (v instanceof Promise) return "promise";
		if (ArrayBuffer.isView(v)) return "typedarray";
		if (v instanceof Error) return "error";
		if (v === globalThis) return "window";
		return "object";
	},
	tag: function (v) { return Object.prototype.toString.call(v).slice(8, -1); },
	entries: function (m) { return Array.from(m.entries()); },
	values: function (s) { return Array.from(s.values()); },
	time: function (d) { return d.getTime(); },
	source: function (r) { return [r.source, r.flags]; },
	description: function (s) { return s.description === undefined ? "" : s.description; },
	mkMap: function (entries) { return new Map(entries); },
	mkSet: function (values) { return new Set(values); },
	mkDate: function (ms) { return new Date(ms); },
	mkRegExp: function (p, f) { return new RegExp(p, f); },
	mkBigInt: function (s) { return BigInt(s); }
})`

type helpers struct {
	kind, tag, entries, values, time, source, description goja.Callable
	mkMap, mkSet, mkDate, mkRegExp, mkBigInt              goja.Callable
}

func loadHelpers(vm *goja.Runtime) (*helpers, error) {
	v, err := vm.RunString(helperSrc)
	if err != nil {
		return nil, fmt.Errorf("jsrealm: helpers: %w", err)
	}
	obj := v.ToObject(vm)
	h := &helpers{}
	for name, dst := range map[string]*goja.Callable{
		"kind": &h.kind, "tag": &h.tag, "entries": &h.entries, "values": &h.values,
		"time": &h.time, "source": &h.source, "description": &h.description,
		"mkMap": &h.mkMap, "mkSet": &h.mkSet, "mkDate": &h.mkDate,
		"mkRegExp": &h.mkRegExp, "mkBigInt": &h.mkBigInt,
	} {
		fn, ok := goja.AssertFunction(obj.Get(name))
		if !ok {
			return nil, fmt.Errorf("jsrealm: helper %s is not a function", name)
		}
		*dst = fn
	}
	return h, nil
}

func call(fn goja.Callable, args ...goja.Value) (goja.Value, error) {
	return fn(goja.Undefined(), args...)
}
