// Package host models the live values of a script runtime as seen by the
// codec: one Go type per runtime kind.
//
// Primitive kinds (Undefined, Null, String, Number, Boolean, BigInt) are plain
// values. Every other kind is a pointer type implementing Ref; two Refs denote
// the same runtime object iff they are the same pointer.
package host

import (
	"fmt"
	"math/big"
	"time"
)

// Kind identifies a runtime kind.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindString
	KindNumber
	KindBoolean
	KindBigInt
	KindSymbol
	KindArray
	KindObject
	KindMap
	KindSet
	KindWeakMap
	KindWeakSet
	KindDate
	KindRegExp
	KindFunction
	KindPromise
	KindTypedArray
	KindProxy
	KindError
	KindWindow
	KindNode
)

var kindNames = [...]string{
	"undefined", "null", "string", "number", "boolean", "bigint", "symbol",
	"array", "object", "map", "set", "weakmap", "weakset", "date", "regexp",
	"function", "promise", "typedarray", "proxy", "error", "window", "node",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a runtime value. The set of implementations is closed.
type Value interface {
	Kind() Kind
	isValue()
}

// Ref is a heap-allocated runtime value with identity.
type Ref interface {
	Value
	isRef()
}

type (
	Undefined struct{}
	Null      struct{}
	String    string
	Number    float64
	Boolean   bool
)

// BigInt is an arbitrary-precision integer. The zero value is 0.
type BigInt struct{ Int *big.Int }

func (Undefined) Kind() Kind { return KindUndefined }
func (Null) Kind() Kind      { return KindNull }
func (String) Kind() Kind    { return KindString }
func (Number) Kind() Kind    { return KindNumber }
func (Boolean) Kind() Kind   { return KindBoolean }
func (BigInt) Kind() Kind    { return KindBigInt }

func (Undefined) isValue() {}
func (Null) isValue()      {}
func (String) isValue()    {}
func (Number) isValue()    {}
func (Boolean) isValue()   {}
func (BigInt) isValue()    {}

// ParseBigInt parses an optionally signed decimal integer.
func ParseBigInt(s string) (BigInt, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, fmt.Errorf("invalid bigint %q", s)
	}
	return BigInt{Int: i}, nil
}

// String renders b in decimal.
func (b BigInt) String() string {
	if b.Int == nil {
		return "0"
	}
	return b.Int.String()
}

// Symbol is a unique symbol.
type Symbol struct{ Description string }

// Array is an ordered list of elements.
type Array struct{ Elements []Value }

// Property is one own string-keyed property of an Object.
type Property struct {
	Key   string
	Value Value
}

// Object is a plain object with ordered string keys.
type Object struct {
	Properties []Property

	idx index[Property]
}

// Entry is one Map entry.
type Entry struct {
	Key   Value
	Value Value
}

// Map keeps entries in insertion order; keys may be of any kind.
type Map struct {
	Entries []Entry

	idx index[Entry]
}

// Set keeps elements in insertion order.
type Set struct {
	Elements []Value

	idx index[Value]
}

// Opaque kinds carry a blank byte: pointers to distinct zero-size values may
// compare equal, and a Ref's pointer is its identity.
type (
	WeakMap struct{ _ byte }
	WeakSet struct{ _ byte }
)

// Date is an instant. Invalid mirrors a date whose time value is NaN.
type Date struct {
	Time    time.Time
	Invalid bool
}

type RegExp struct {
	Pattern string
	Flags   string
}

type Function struct{ Name string }
type Promise struct{ _ byte }

// TypedArray is a view over binary data, e.g. Int32Array.
type TypedArray struct {
	Class  string
	Length int
}

type Proxy struct{ _ byte }

type Error struct {
	Name    string
	Message string
}

// Window is the realm's global object.
type Window struct{ _ byte }

func (*Symbol) Kind() Kind     { return KindSymbol }
func (*Array) Kind() Kind      { return KindArray }
func (*Object) Kind() Kind     { return KindObject }
func (*Map) Kind() Kind        { return KindMap }
func (*Set) Kind() Kind        { return KindSet }
func (*WeakMap) Kind() Kind    { return KindWeakMap }
func (*WeakSet) Kind() Kind    { return KindWeakSet }
func (*Date) Kind() Kind       { return KindDate }
func (*RegExp) Kind() Kind     { return KindRegExp }
func (*Function) Kind() Kind   { return KindFunction }
func (*Promise) Kind() Kind    { return KindPromise }
func (*TypedArray) Kind() Kind { return KindTypedArray }
func (*Proxy) Kind() Kind      { return KindProxy }
func (*Error) Kind() Kind      { return KindError }
func (*Window) Kind() Kind     { return KindWindow }
func (*Node) Kind() Kind       { return KindNode }

func (*Symbol) isValue()     {}
func (*Array) isValue()      {}
func (*Object) isValue()     {}
func (*Map) isValue()        {}
func (*Set) isValue()        {}
func (*WeakMap) isValue()    {}
func (*WeakSet) isValue()    {}
func (*Date) isValue()       {}
func (*RegExp) isValue()     {}
func (*Function) isValue()   {}
func (*Promise) isValue()    {}
func (*TypedArray) isValue() {}
func (*Proxy) isValue()      {}
func (*Error) isValue()      {}
func (*Window) isValue()     {}
func (*Node) isValue()       {}

func (*Symbol) isRef()     {}
func (*Array) isRef()      {}
func (*Object) isRef()     {}
func (*Map) isRef()        {}
func (*Set) isRef()        {}
func (*WeakMap) isRef()    {}
func (*WeakSet) isRef()    {}
func (*Date) isRef()       {}
func (*RegExp) isRef()     {}
func (*Function) isRef()   {}
func (*Promise) isRef()    {}
func (*TypedArray) isRef() {}
func (*Proxy) isRef()      {}
func (*Error) isRef()      {}
func (*Window) isRef()     {}
func (*Node) isRef()       {}
