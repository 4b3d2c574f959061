package eval

import (
	"math"
	"strconv"
	"strings"

	"github.com/chazu/rexpr/target"
)

// StringOf returns the string form of v as string concatenation sees it.
// Objects and arrays are asked for their toString() in the debuggee.
func (e *Evaluator) StringOf(v target.Value) (string, error) {
	switch v.Tag() {
	case target.TagNull:
		return "null", nil
	case target.TagText:
		return v.Str(), nil
	case target.TagObject, target.TagArray:
		s, err := e.Invoke(v, "toString", nil)
		if err != nil {
			return "", err
		}
		switch s.Tag() {
		case target.TagNull:
			return "null", nil
		case target.TagText:
			return s.Str(), nil
		}
		return "", mismatch(OpInvalid, "toString did not return a string", v, s)
	}
	return FormatPrimitive(v), nil
}

// FormatPrimitive renders a primitive in the target language's canonical
// form: 5, 2.5, 1.0E10, true, or the character itself for chars.
func FormatPrimitive(v target.Value) string {
	switch v.Tag() {
	case target.TagBool:
		return strconv.FormatBool(v.Bool())
	case target.TagChar:
		return string(rune(v.Char()))
	case target.TagFloat:
		return formatFloat(float64(v.Float32()), 32)
	case target.TagDouble:
		return formatFloat(v.Float64(), 64)
	case target.TagByte, target.TagShort, target.TagInt, target.TagLong:
		return strconv.FormatInt(v.Int64(), 10)
	}
	return v.Describe()
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}

	if abs := math.Abs(f); abs >= 1e-3 && abs < 1e7 {
		s := strconv.FormatFloat(f, 'f', -1, bits)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}

	// Computerized scientific notation: 1.0E10, 1.5E-5.
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'E', -1, bits), "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	n, _ := strconv.Atoi(exp)
	return mant + "E" + strconv.Itoa(n)
}
