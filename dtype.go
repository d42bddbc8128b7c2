package tilecache

import (
	"encoding/binary"
	"math"
)

// ElementType describes the size and interpretation of a single tile
// element. It is a closed enum over the seven kinds the cache core
// understands; the core never interprets payload bytes beyond widening
// them to a float64 for CachedGrid.Value.
type ElementType uint8

const (
	Bool ElementType = iota
	Byte
	Short
	Int
	Long
	Float
	Double
)

// Size returns the size in bytes of a single element of this type. It is
// a total function over the seven declared ElementType constants; any
// other value (for example an arbitrary uint8 converted to ElementType)
// reaches the default branch, which panics.
func (t ElementType) Size() int {
	switch t {
	case Bool, Byte:
		return 1
	case Short:
		return 2
	case Int, Float:
		return 4
	case Long, Double:
		return 8
	default:
		panic("tilecache: unreachable: unknown element type")
	}
}

func (t ElementType) String() string {
	switch t {
	case Bool:
		return "bool"
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Int:
		return "int"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		panic("tilecache: unreachable: unknown element type")
	}
}

// Widen converts the element at byte offset off in raw to a float64,
// honoring unsigned for the byte/short/int/long integer kinds (widened
// without sign extension when unsigned is true). This centralizes the
// dynamic dispatch on element type called for by the cache core's design
// notes: one switch, not one scattered through every read path.
func (t ElementType) Widen(raw []byte, off int, order binary.ByteOrder, unsigned bool) float64 {
	switch t {
	case Bool:
		if raw[off] != 0 {
			return 1
		}
		return 0
	case Byte:
		if unsigned {
			return float64(raw[off])
		}
		return float64(int8(raw[off]))
	case Short:
		v := order.Uint16(raw[off:])
		if unsigned {
			return float64(v)
		}
		return float64(int16(v))
	case Int:
		v := order.Uint32(raw[off:])
		if unsigned {
			return float64(v)
		}
		return float64(int32(v))
	case Long:
		v := order.Uint64(raw[off:])
		if unsigned {
			return float64(v)
		}
		return float64(int64(v))
	case Float:
		return float64(math.Float32frombits(order.Uint32(raw[off:])))
	case Double:
		return math.Float64frombits(order.Uint64(raw[off:]))
	default:
		panic("tilecache: unreachable: unknown element type")
	}
}

// PutWidened writes val into raw at byte offset off, truncating/encoding
// it according to t and unsigned. It is the inverse of Widen, used by
// tile sinks and tests that synthesize tile payloads.
func (t ElementType) PutWidened(raw []byte, off int, order binary.ByteOrder, unsigned bool, val float64) {
	switch t {
	case Bool:
		if val != 0 {
			raw[off] = 1
		} else {
			raw[off] = 0
		}
	case Byte:
		if unsigned {
			raw[off] = byte(uint8(val))
		} else {
			raw[off] = byte(int8(val))
		}
	case Short:
		if unsigned {
			order.PutUint16(raw[off:], uint16(val))
		} else {
			order.PutUint16(raw[off:], uint16(int16(val)))
		}
	case Int:
		if unsigned {
			order.PutUint32(raw[off:], uint32(val))
		} else {
			order.PutUint32(raw[off:], uint32(int32(val)))
		}
	case Long:
		if unsigned {
			order.PutUint64(raw[off:], uint64(val))
		} else {
			order.PutUint64(raw[off:], uint64(int64(val)))
		}
	case Float:
		order.PutUint32(raw[off:], math.Float32bits(float32(val)))
	case Double:
		order.PutUint64(raw[off:], math.Float64bits(val))
	default:
		panic("tilecache: unreachable: unknown element type")
	}
}
