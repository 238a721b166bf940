package remote

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Sentinel strings for numbers JSON cannot carry.
const (
	NaN              = "NaN"
	PositiveInfinity = "Infinity"
	NegativeInfinity = "-Infinity"
	NegativeZero     = "-0"
)

// Number is the payload of a "number" remote value.
type Number float64

// Wire returns the JSON-compatible form of n: a float64, or one of the
// sentinel strings for NaN, the infinities and negative zero.
func (n Number) Wire() any {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return NaN
	case math.IsInf(f, 1):
		return PositiveInfinity
	case math.IsInf(f, -1):
		return NegativeInfinity
	case f == 0 && math.Signbit(f):
		return NegativeZero
	}
	return f
}

// ParseNumber accepts the wire form of a number. Any Go numeric type produced
// by the JSON, CBOR and MessagePack decoders is accepted.
func ParseNumber(v any) (Number, error) {
	switch x := v.(type) {
	case Number:
		return x, nil
	case string:
		switch x {
		case NaN:
			return Number(math.NaN()), nil
		case PositiveInfinity:
			return Number(math.Inf(1)), nil
		case NegativeInfinity:
			return Number(math.Inf(-1)), nil
		case NegativeZero:
			return Number(math.Copysign(0, -1)), nil
		}
		return 0, fmt.Errorf("%w: unknown number sentinel %q", ErrMalformedValue, x)
	case float64:
		return Number(x), nil
	case float32:
		return Number(x), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: number %q: %v", ErrMalformedValue, x, err)
		}
		return Number(f), nil
	case int:
		return Number(x), nil
	case int8:
		return Number(x), nil
	case int16:
		return Number(x), nil
	case int32:
		return Number(x), nil
	case int64:
		return Number(x), nil
	case uint:
		return Number(x), nil
	case uint8:
		return Number(x), nil
	case uint16:
		return Number(x), nil
	case uint32:
		return Number(x), nil
	case uint64:
		return Number(x), nil
	}
	return 0, fmt.Errorf("%w: number value has type %T", ErrMalformedValue, v)
}
