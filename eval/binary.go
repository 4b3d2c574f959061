package eval

import (
	"math"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Binary operators
// ---------------------------------------------------------------------------

// Binary applies op to left and right. Plain assignment writes the right
// value to left verbatim; compound assignment computes the base operator,
// narrows the result to left's primitive type and writes it. Both return
// left. Every other operator returns a Constant.
func (e *Evaluator) Binary(op Op, left, right Slot) (Slot, error) {
	if op == OpAssign {
		rv, err := ReadSlot(right)
		if err != nil {
			return nil, err
		}
		if err := writeSlot(left, rv); err != nil {
			return nil, err
		}
		return left, nil
	}

	lv, err := ReadSlot(left)
	if err != nil {
		return nil, err
	}
	rv, err := ReadSlot(right)
	if err != nil {
		return nil, err
	}

	if !op.IsCompound() {
		r, err := e.Compute(op, lv, rv)
		if err != nil {
			return nil, err
		}
		return Constant(r), nil
	}

	r, err := e.Compute(op.Base(), lv, rv)
	if err != nil {
		return nil, err
	}
	if lv.Tag().Primitive() {
		r = castTo(r, lv.Tag())
	}
	if err := writeSlot(left, r); err != nil {
		return nil, err
	}
	return left, nil
}

func writeSlot(s Slot, v target.Value) error {
	if err := s.Write(v); err != nil {
		if _, ok := err.(*Error); ok {
			return err
		}
		return writeFailed(err, "writing %s", s)
	}
	return nil
}

// Compute applies a non-assigning binary operator to two values. The rules
// are tried in order:
//
//  1. + with a string operand concatenates string forms.
//  2. With a reference or null operand only == and != are defined, as
//     identity; null equals only null.
//  3. Two booleans support && || == != & | ^.
//  4. Numeric operands compare as doubles and compute on the wider of
//     double, float, long and int. Bitwise and shift operators need
//     integral operands.
func (e *Evaluator) Compute(op Op, l, r target.Value) (target.Value, error) {
	if op.IsAssign() || op == OpNot || op == OpComplement || op == OpInvalid {
		return target.Null(), mismatch(op, "not a binary operator", l, r)
	}
	lt, rt := l.Tag(), r.Tag()

	if op == OpAdd && (lt == target.TagText || rt == target.TagText) {
		return e.concat(l, r)
	}
	if lt.Reference() || rt.Reference() {
		return referenceOp(op, l, r)
	}
	if lt == target.TagBool && rt == target.TagBool {
		return boolOp(op, l, r)
	}
	if lt == target.TagBool || rt == target.TagBool {
		return target.Null(), mismatch(op, "unsupported operator for operand types", l, r)
	}
	if op.IsRelational() {
		return compare(op, l.Float64(), r.Float64()), nil
	}
	return arith(op, l, r)
}

func (e *Evaluator) concat(l, r target.Value) (target.Value, error) {
	ls, err := e.StringOf(l)
	if err != nil {
		return target.Null(), err
	}
	rs, err := e.StringOf(r)
	if err != nil {
		return target.Null(), err
	}
	return e.mirror(ls + rs)
}

func referenceOp(op Op, l, r target.Value) (target.Value, error) {
	switch op {
	case OpEq:
		return target.Bool(identical(l, r)), nil
	case OpNe:
		return target.Bool(!identical(l, r)), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for reference operands", l, r)
}

func identical(l, r target.Value) bool {
	if l.IsNull() || r.IsNull() {
		return l.IsNull() && r.IsNull()
	}
	if !l.Tag().Reference() || !r.Tag().Reference() {
		return false
	}
	return l.Ref().ID() == r.Ref().ID()
}

func boolOp(op Op, l, r target.Value) (target.Value, error) {
	a, b := l.Bool(), r.Bool()
	switch op {
	case OpLogicalAnd, OpAnd:
		return target.Bool(a && b), nil
	case OpLogicalOr, OpOr:
		return target.Bool(a || b), nil
	case OpXor, OpNe:
		return target.Bool(a != b), nil
	case OpEq:
		return target.Bool(a == b), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for boolean operands", l, r)
}

func compare(op Op, a, b float64) target.Value {
	switch op {
	case OpEq:
		return target.Bool(a == b)
	case OpNe:
		return target.Bool(a != b)
	case OpLt:
		return target.Bool(a < b)
	case OpGt:
		return target.Bool(a > b)
	case OpLe:
		return target.Bool(a <= b)
	}
	return target.Bool(a >= b)
}

func arith(op Op, l, r target.Value) (target.Value, error) {
	switch promote(l.Tag(), r.Tag()) {
	case rungDouble:
		return arithDouble(op, l, r)
	case rungFloat:
		return arithFloat(op, l, r)
	case rungLong:
		return arithLong(op, l, r)
	}
	return arithInt(op, l, r)
}

func arithDouble(op Op, l, r target.Value) (target.Value, error) {
	a, b := l.Float64(), r.Float64()
	switch op {
	case OpAdd:
		return target.Double(a + b), nil
	case OpSub:
		return target.Double(a - b), nil
	case OpMul:
		return target.Double(a * b), nil
	case OpDiv:
		return target.Double(a / b), nil
	case OpRem:
		return target.Double(math.Mod(a, b)), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for double operands", l, r)
}

func arithFloat(op Op, l, r target.Value) (target.Value, error) {
	a, b := toFloat32(l), toFloat32(r)
	switch op {
	case OpAdd:
		return target.Float(a + b), nil
	case OpSub:
		return target.Float(a - b), nil
	case OpMul:
		return target.Float(a * b), nil
	case OpDiv:
		return target.Float(a / b), nil
	case OpRem:
		return target.Float(float32(math.Mod(float64(a), float64(b)))), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for float operands", l, r)
}

func arithLong(op Op, l, r target.Value) (target.Value, error) {
	a, b := l.Int64(), r.Int64()
	switch op {
	case OpAdd:
		return target.Long(a + b), nil
	case OpSub:
		return target.Long(a - b), nil
	case OpMul:
		return target.Long(a * b), nil
	case OpDiv, OpRem:
		if b == 0 {
			return target.Null(), arithmetic(op, "/ by zero", l, r)
		}
		if op == OpDiv {
			return target.Long(a / b), nil
		}
		return target.Long(a % b), nil
	case OpShl:
		return target.Long(a << (uint64(b) & 63)), nil
	case OpShr:
		return target.Long(a >> (uint64(b) & 63)), nil
	case OpUshr:
		return target.Long(int64(uint64(a) >> (uint64(b) & 63))), nil
	case OpAnd:
		return target.Long(a & b), nil
	case OpOr:
		return target.Long(a | b), nil
	case OpXor:
		return target.Long(a ^ b), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for long operands", l, r)
}

func arithInt(op Op, l, r target.Value) (target.Value, error) {
	a, b := int32(l.Int64()), int32(r.Int64())
	switch op {
	case OpAdd:
		return target.Int(a + b), nil
	case OpSub:
		return target.Int(a - b), nil
	case OpMul:
		return target.Int(a * b), nil
	case OpDiv, OpRem:
		if b == 0 {
			return target.Null(), arithmetic(op, "/ by zero", l, r)
		}
		if op == OpDiv {
			return target.Int(a / b), nil
		}
		return target.Int(a % b), nil
	case OpShl:
		return target.Int(a << (uint32(b) & 31)), nil
	case OpShr:
		return target.Int(a >> (uint32(b) & 31)), nil
	case OpUshr:
		return target.Int(int32(uint32(a) >> (uint32(b) & 31))), nil
	case OpAnd:
		return target.Int(a & b), nil
	case OpOr:
		return target.Int(a | b), nil
	case OpXor:
		return target.Int(a ^ b), nil
	}
	return target.Null(), mismatch(op, "unsupported operator for int operands", l, r)
}

// ---------------------------------------------------------------------------
// Conditional
// ---------------------------------------------------------------------------

// Ternary returns a when test holds and b otherwise. The chosen slot is
// returned as is, never read.
func (e *Evaluator) Ternary(test, a, b Slot) (Slot, error) {
	tv, err := ReadSlot(test)
	if err != nil {
		return nil, err
	}
	if tv.Tag() != target.TagBool {
		return nil, mismatch(OpInvalid, "condition is not a boolean", tv)
	}
	if tv.Bool() {
		return a, nil
	}
	return b, nil
}
