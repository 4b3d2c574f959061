package eval

import (
	"math"

	"github.com/chazu/rexpr/target"
)

// rung is a level of the numeric promotion ladder. Byte, short and char
// promote to int before any arithmetic.
type rung int

const (
	rungInt rung = iota
	rungLong
	rungFloat
	rungDouble
)

func rungOf(t target.Tag) rung {
	switch t {
	case target.TagDouble:
		return rungDouble
	case target.TagFloat:
		return rungFloat
	case target.TagLong:
		return rungLong
	}
	return rungInt
}

// promote selects the computation rung for a binary operation: the wider
// operand wins, int is the floor.
func promote(a, b target.Tag) rung {
	return max(rungOf(a), rungOf(b))
}

func toFloat32(v target.Value) float32 {
	switch v.Tag() {
	case target.TagFloat:
		return v.Float32()
	case target.TagDouble:
		return float32(v.Float64())
	}
	return float32(v.Int64())
}

func toLong(v target.Value) int64 {
	if v.Tag() != target.TagFloat && v.Tag() != target.TagDouble {
		return v.Int64()
	}
	f := v.Float64()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func toInt(v target.Value) int32 {
	if v.Tag() != target.TagFloat && v.Tag() != target.TagDouble {
		return int32(v.Int64())
	}
	f := v.Float64()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// castTo converts a primitive numeric value to tag with the target
// language's widening and narrowing rules. Floating values saturate when
// narrowed to integral types; NaN becomes zero.
func castTo(v target.Value, tag target.Tag) target.Value {
	if v.Tag() == tag || !v.Tag().Numeric() {
		return v
	}
	switch tag {
	case target.TagDouble:
		return target.Double(v.Float64())
	case target.TagFloat:
		return target.Float(toFloat32(v))
	case target.TagLong:
		return target.Long(toLong(v))
	case target.TagInt:
		return target.Int(toInt(v))
	case target.TagShort:
		return target.Short(int16(toInt(v)))
	case target.TagByte:
		return target.Byte(int8(toInt(v)))
	case target.TagChar:
		return target.Char(uint16(toInt(v)))
	}
	return v
}
