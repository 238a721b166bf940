package host

import "time"

// NewArray returns an array holding elems.
func NewArray(elems ...Value) *Array { return &Array{Elements: elems} }

// NewSet returns a set holding elems in order.
func NewSet(elems ...Value) *Set { return &Set{Elements: elems} }

// NewObject returns an empty object.
func NewObject() *Object { return &Object{} }

// Set defines or overwrites an own property, keeping first-definition order.
func (o *Object) Set(key string, v Value) *Object {
	if i := o.idx.find(o.Properties, propertyKey, key); i >= 0 {
		o.Properties[i].Value = v
		return o
	}
	o.Properties = append(o.Properties, Property{Key: key, Value: v})
	o.idx.appended(o.Properties, key)
	return o
}

// Get returns the value of an own property.
func (o *Object) Get(key string) (Value, bool) {
	if i := o.idx.find(o.Properties, propertyKey, key); i >= 0 {
		return o.Properties[i].Value, true
	}
	return nil, false
}

// NewMap returns an empty map.
func NewMap() *Map { return &Map{} }

// Set adds or overwrites an entry. Keys compare with SameValueZero: primitives
// by value, heap values by identity.
func (m *Map) Set(key, v Value) *Map {
	k := valueKey(key)
	if i := m.idx.find(m.Entries, entryKey, k); i >= 0 {
		m.Entries[i].Value = v
		return m
	}
	m.Entries = append(m.Entries, Entry{Key: key, Value: v})
	m.idx.appended(m.Entries, k)
	return m
}

// Add appends v unless an equal element is already present.
func (s *Set) Add(v Value) *Set {
	k := valueKey(v)
	if s.idx.find(s.Elements, valueKey, k) >= 0 {
		return s
	}
	s.Elements = append(s.Elements, v)
	s.idx.appended(s.Elements, k)
	return s
}

// NewDate returns a date at t.
func NewDate(t time.Time) *Date { return &Date{Time: t} }
