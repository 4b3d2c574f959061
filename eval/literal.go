package eval

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Literal parsing
// ---------------------------------------------------------------------------

// ParseBool parses the literals true and false (case-sensitive).
func ParseBool(text string) (target.Value, error) {
	switch text {
	case "true":
		return target.Bool(true), nil
	case "false":
		return target.Bool(false), nil
	}
	return target.Null(), parseError(text, errors.New("not a boolean literal"))
}

// ParseInt parses a decimal, hex (0x) or octal (leading 0) integer literal.
// A trailing l or L selects long; otherwise the literal is an int and must
// fit in 32 bits.
func ParseInt(text string) (target.Value, error) {
	digits, long := strings.CutSuffix(text, "L")
	if !long {
		digits, long = strings.CutSuffix(text, "l")
	}

	neg := false
	if rest, ok := strings.CutPrefix(digits, "-"); ok {
		neg, digits = true, rest
	}

	base := 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		base, digits = 16, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		base, digits = 8, digits[1:]
	}
	if digits == "" {
		return target.Null(), parseError(text, errors.New("missing digits"))
	}
	// strconv accepts a sign of its own; only the one before the prefix is legal.
	if digits[0] == '+' || digits[0] == '-' {
		return target.Null(), parseError(text, errors.New("misplaced sign"))
	}
	if neg {
		digits = "-" + digits
	}

	bits := 32
	if long {
		bits = 64
	}
	n, err := strconv.ParseInt(digits, base, bits)
	if err != nil {
		return target.Null(), parseError(text, err)
	}
	if long {
		return target.Long(n), nil
	}
	return target.Int(int32(n)), nil
}

var floatLiteral = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseFloat parses a floating point literal. A trailing f or F selects
// float; d, D or no suffix selects double.
func ParseFloat(text string) (target.Value, error) {
	digits, single := cutAnySuffix(text, "f", "F")
	if !single {
		digits, _ = cutAnySuffix(text, "d", "D")
	}
	// strconv also takes hex mantissas, underscores, Inf and NaN.
	if !floatLiteral.MatchString(digits) {
		return target.Null(), parseError(text, errors.New("malformed floating point literal"))
	}
	if single {
		f, err := strconv.ParseFloat(digits, 32)
		if err != nil {
			return target.Null(), parseError(text, err)
		}
		return target.Float(float32(f)), nil
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return target.Null(), parseError(text, err)
	}
	return target.Double(f), nil
}

// ParseChar returns the first character between the quotes of a char
// literal. Escapes are decoded by the tokenizer, not here.
func ParseChar(text string) (target.Value, error) {
	inner, ok := unquote(text, '\'')
	if !ok || inner == "" {
		return target.Null(), parseError(text, errors.New("not a char literal"))
	}
	r, _ := utf8.DecodeRuneInString(inner)
	if r > 0xFFFF {
		// Only the leading UTF-16 unit fits in a char.
		r, _ = utf16.EncodeRune(r)
	}
	return target.Char(uint16(r)), nil
}

// ParseString mirrors the text between the quotes of a string literal into
// the debuggee.
func (e *Evaluator) ParseString(text string) (target.Value, error) {
	inner, ok := unquote(text, '"')
	if !ok {
		return target.Null(), parseError(text, errors.New("not a string literal"))
	}
	return e.mirror(inner)
}

// NullLiteral returns the untyped null value.
func NullLiteral() target.Value { return target.Null() }

// LiteralKind identifies the literal forms the tokenizer reports.
type LiteralKind int

const (
	LitBool LiteralKind = iota
	LitInt
	LitFloat
	LitChar
	LitString
	LitNull
)

// Literal parses text as a literal of kind k and wraps it in a Constant.
func (e *Evaluator) Literal(k LiteralKind, text string) (Slot, error) {
	var (
		v   target.Value
		err error
	)
	switch k {
	case LitBool:
		v, err = ParseBool(text)
	case LitInt:
		v, err = ParseInt(text)
	case LitFloat:
		v, err = ParseFloat(text)
	case LitChar:
		v, err = ParseChar(text)
	case LitString:
		v, err = e.ParseString(text)
	case LitNull:
		v = NullLiteral()
	default:
		err = parseError(text, errors.New("unknown literal kind"))
	}
	if err != nil {
		return nil, err
	}
	return Constant(v), nil
}

func cutAnySuffix(s string, suffixes ...string) (string, bool) {
	for _, suf := range suffixes {
		if rest, ok := strings.CutSuffix(s, suf); ok {
			return rest, true
		}
	}
	return s, false
}

func unquote(text string, quote byte) (string, bool) {
	if len(text) < 2 || text[0] != quote || text[len(text)-1] != quote {
		return "", false
	}
	return text[1 : len(text)-1], true
}
