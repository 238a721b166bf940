// Package remote defines the wire representation of runtime values exchanged
// over the remote debugging protocol ("remote values").
//
// A RemoteValue is a tagged union: Type selects which Go type Value holds.
//
//	string, date            -> string (date is ISO-8601, UTC)
//	boolean                 -> bool
//	number                  -> Number
//	bigint                  -> string (decimal digits)
//	regexp                  -> RegExpValue
//	array, set              -> []RemoteValue
//	object, map             -> []Pair
//	node                    -> *NodeProperties
//
// A nil Value means the "value" field is absent on the wire. Heap kinds may
// additionally carry an opaque Handle naming the live object in its realm.
//
// Nothing in this package talks to a runtime; see the root package for the
// serializer and deserializer.
package remote

// Type is the "type" tag of a remote value.
type Type string

const (
	TypeUndefined  Type = "undefined"
	TypeNull       Type = "null"
	TypeString     Type = "string"
	TypeNumber     Type = "number"
	TypeBoolean    Type = "boolean"
	TypeBigInt     Type = "bigint"
	TypeSymbol     Type = "symbol"
	TypeArray      Type = "array"
	TypeObject     Type = "object"
	TypeMap        Type = "map"
	TypeSet        Type = "set"
	TypeWeakMap    Type = "weakmap"
	TypeWeakSet    Type = "weakset"
	TypeDate       Type = "date"
	TypeRegExp     Type = "regexp"
	TypeFunction   Type = "function"
	TypePromise    Type = "promise"
	TypeTypedArray Type = "typedarray"
	TypeProxy      Type = "proxy"
	TypeError      Type = "error"
	TypeWindow     Type = "window"
	TypeNode       Type = "node"
)

var known = map[Type]struct{}{
	TypeUndefined: {}, TypeNull: {}, TypeString: {}, TypeNumber: {},
	TypeBoolean: {}, TypeBigInt: {}, TypeSymbol: {}, TypeArray: {},
	TypeObject: {}, TypeMap: {}, TypeSet: {}, TypeWeakMap: {},
	TypeWeakSet: {}, TypeDate: {}, TypeRegExp: {}, TypeFunction: {},
	TypePromise: {}, TypeTypedArray: {}, TypeProxy: {}, TypeError: {},
	TypeWindow: {}, TypeNode: {},
}

// Known reports whether t is one of the protocol's tags.
func (t Type) Known() bool {
	_, ok := known[t]
	return ok
}

// Compound reports whether values of this type expand into nested remote
// values and are therefore subject to the depth limit.
func (t Type) Compound() bool {
	switch t {
	case TypeArray, TypeObject, TypeMap, TypeSet:
		return true
	}
	return false
}

// Primitive reports whether t is a non-heap scalar. Primitives never carry a
// handle.
func (t Type) Primitive() bool {
	switch t {
	case TypeUndefined, TypeNull, TypeString, TypeNumber, TypeBoolean, TypeBigInt:
		return true
	}
	return false
}
