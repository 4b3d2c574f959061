package eval

// Op is a unary, binary or assignment operator as identified by the
// expression parser.
type Op int

const (
	OpInvalid Op = iota

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpShl
	OpShr
	OpUshr
	OpAnd
	OpOr
	OpXor
	OpLogicalAnd
	OpLogicalOr
	OpNot
	OpComplement

	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe

	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpRemAssign
	OpShlAssign
	OpShrAssign
	OpUshrAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
)

var opTokens = map[Op]string{
	OpAdd:        "+",
	OpSub:        "-",
	OpMul:        "*",
	OpDiv:        "/",
	OpRem:        "%",
	OpShl:        "<<",
	OpShr:        ">>",
	OpUshr:       ">>>",
	OpAnd:        "&",
	OpOr:         "|",
	OpXor:        "^",
	OpLogicalAnd: "&&",
	OpLogicalOr:  "||",
	OpNot:        "!",
	OpComplement: "~",
	OpEq:         "==",
	OpNe:         "!=",
	OpLt:         "<",
	OpGt:         ">",
	OpLe:         "<=",
	OpGe:         ">=",
	OpAssign:     "=",
	OpAddAssign:  "+=",
	OpSubAssign:  "-=",
	OpMulAssign:  "*=",
	OpDivAssign:  "/=",
	OpRemAssign:  "%=",
	OpShlAssign:  "<<=",
	OpShrAssign:  ">>=",
	OpUshrAssign: ">>>=",
	OpAndAssign:  "&=",
	OpOrAssign:   "|=",
	OpXorAssign:  "^=",
}

var tokenOps = func() map[string]Op {
	m := make(map[string]Op, len(opTokens))
	for op, tok := range opTokens {
		m[tok] = op
	}
	return m
}()

// compound maps each compound assignment to the operator it applies.
var compound = map[Op]Op{
	OpAddAssign:  OpAdd,
	OpSubAssign:  OpSub,
	OpMulAssign:  OpMul,
	OpDivAssign:  OpDiv,
	OpRemAssign:  OpRem,
	OpShlAssign:  OpShl,
	OpShrAssign:  OpShr,
	OpUshrAssign: OpUshr,
	OpAndAssign:  OpAnd,
	OpOrAssign:   OpOr,
	OpXorAssign:  OpXor,
}

// ParseOp returns the operator spelled by tok.
func ParseOp(tok string) (Op, bool) {
	op, ok := tokenOps[tok]
	return op, ok
}

func (op Op) String() string {
	if tok, ok := opTokens[op]; ok {
		return tok
	}
	return "?"
}

// IsAssign reports whether op stores into its left operand.
func (op Op) IsAssign() bool {
	return op == OpAssign || op.IsCompound()
}

// IsCompound reports whether op is one of the op= forms.
func (op Op) IsCompound() bool {
	_, ok := compound[op]
	return ok
}

// Base returns the operator a compound assignment applies, or op itself.
func (op Op) Base() Op {
	if base, ok := compound[op]; ok {
		return base
	}
	return op
}

// IsRelational reports whether op compares its operands.
func (op Op) IsRelational() bool {
	return op >= OpEq && op <= OpGe
}

// IsShift reports whether op is <<, >> or >>>.
func (op Op) IsShift() bool {
	return op == OpShl || op == OpShr || op == OpUshr
}

// IsBitwise reports whether op is &, | or ^.
func (op Op) IsBitwise() bool {
	return op == OpAnd || op == OpOr || op == OpXor
}
