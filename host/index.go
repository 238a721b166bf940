package host

// indexThreshold is the size at which lookups switch from a linear scan to
// a position map.
const indexThreshold = 16

// index maps normalized keys to slice positions. It belongs to one slice
// and is rebuilt whenever that slice is replaced or resized behind its back.
type index[E any] struct {
	pos   map[any]int
	first *E
	n     int
}

func (ix *index[E]) fresh(s []E) bool {
	return ix.pos != nil && ix.n == len(s) && ix.n > 0 && ix.first == &s[0]
}

// find returns the position of the first element whose key is k, or -1.
func (ix *index[E]) find(s []E, keyOf func(E) any, k any) int {
	if len(s) < indexThreshold {
		for i := range s {
			if keyOf(s[i]) == k {
				return i
			}
		}
		return -1
	}
	if !ix.fresh(s) {
		ix.pos = make(map[any]int, len(s))
		for i := range s {
			if _, dup := ix.pos[keyOf(s[i])]; !dup {
				ix.pos[keyOf(s[i])] = i
			}
		}
		ix.first, ix.n = &s[0], len(s)
	}
	if i, ok := ix.pos[k]; ok {
		return i
	}
	return -1
}

// appended records that the last element of s, keyed k, was just added to
// the slice the index was built from.
func (ix *index[E]) appended(s []E, k any) {
	if ix.pos == nil || ix.n != len(s)-1 {
		return
	}
	ix.pos[k] = len(s) - 1
	ix.first, ix.n = &s[0], len(s)
}

type nanKey struct{}

type bigIntKey string

// valueKey normalizes v so that == on keys compares like the runtime does
// for Map keys and Set members (SameValueZero): NaN equals NaN, +0 equals
// -0, heap values compare by identity.
func valueKey(v Value) any {
	switch x := v.(type) {
	case Number:
		if x != x {
			return nanKey{}
		}
		if x == 0 {
			return Number(0)
		}
	case BigInt:
		return bigIntKey(x.String())
	}
	return v
}

func propertyKey(p Property) any { return p.Key }
func entryKey(e Entry) any       { return valueKey(e.Key) }
