package eval

import (
	"github.com/chazu/rexpr/target"
)

// Unary applies op to the value of operand and returns the result as a
// Constant.
func (e *Evaluator) Unary(op Op, operand Slot) (Slot, error) {
	v, err := ReadSlot(operand)
	if err != nil {
		return nil, err
	}
	r, err := UnaryValue(op, v)
	if err != nil {
		return nil, err
	}
	return Constant(r), nil
}

// UnaryValue applies a unary operator to a primitive. ! takes booleans, ~
// integral values, + and - any numeric value. Byte, short and char promote
// to int first.
func UnaryValue(op Op, v target.Value) (target.Value, error) {
	if !v.Tag().Primitive() {
		return target.Null(), mismatch(op, "unsupported operator for operand", v)
	}

	switch op {
	case OpNot:
		if v.Tag() == target.TagBool {
			return target.Bool(!v.Bool()), nil
		}

	case OpComplement:
		switch {
		case v.Tag() == target.TagLong:
			return target.Long(^v.Int64()), nil
		case v.Tag().Integral():
			return target.Int(^int32(v.Int64())), nil
		}

	case OpAdd, OpSub:
		if !v.Tag().Numeric() {
			break
		}
		neg := op == OpSub
		switch rungOf(v.Tag()) {
		case rungDouble:
			f := v.Float64()
			if neg {
				f = -f
			}
			return target.Double(f), nil
		case rungFloat:
			f := v.Float32()
			if neg {
				f = -f
			}
			return target.Float(f), nil
		case rungLong:
			n := v.Int64()
			if neg {
				n = -n
			}
			return target.Long(n), nil
		default:
			n := int32(v.Int64())
			if neg {
				n = -n
			}
			return target.Int(n), nil
		}
	}
	return target.Null(), mismatch(op, "unsupported operator for operand type", v)
}
