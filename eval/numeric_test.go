package eval

import (
	"math"
	"testing"

	"github.com/chazu/rexpr/target"
)

func TestPromote(t *testing.T) {
	tests := []struct {
		a, b target.Tag
		want rung
	}{
		{target.TagByte, target.TagShort, rungInt},
		{target.TagChar, target.TagInt, rungInt},
		{target.TagInt, target.TagLong, rungLong},
		{target.TagLong, target.TagFloat, rungFloat},
		{target.TagFloat, target.TagDouble, rungDouble},
		{target.TagDouble, target.TagByte, rungDouble},
	}
	for _, tt := range tests {
		if got := promote(tt.a, tt.b); got != tt.want {
			t.Errorf("promote(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCastTo(t *testing.T) {
	tests := []struct {
		name string
		v    target.Value
		tag  target.Tag
		want target.Value
	}{
		{"double to int truncates", target.Double(-2.9), target.TagInt, target.Int(-2)},
		{"double to int saturates", target.Double(1e20), target.TagInt, target.Int(math.MaxInt32)},
		{"negative saturates", target.Double(-1e20), target.TagInt, target.Int(math.MinInt32)},
		{"NaN to int is zero", target.Double(math.NaN()), target.TagInt, target.Int(0)},
		{"NaN to long is zero", target.Float(float32(math.NaN())), target.TagLong, target.Long(0)},
		{"double to long saturates", target.Double(1e30), target.TagLong, target.Long(math.MaxInt64)},
		{"long to int wraps", target.Long(1<<32 + 5), target.TagInt, target.Int(5)},
		{"int to short wraps", target.Int(70000), target.TagShort, target.Short(4464)},
		{"int to char wraps", target.Int(65601), target.TagChar, target.Char('A')},
		{"double to byte via int", target.Double(300.5), target.TagByte, target.Byte(44)},
		{"int to double", target.Int(3), target.TagDouble, target.Double(3)},
		{"double to float", target.Double(0.5), target.TagFloat, target.Float(0.5)},
		{"same tag", target.Long(7), target.TagLong, target.Long(7)},
		{"bool unchanged", target.Bool(true), target.TagInt, target.Bool(true)},
	}
	for _, tt := range tests {
		got := castTo(tt.v, tt.tag)
		if got.Tag() != tt.want.Tag() || got.Describe() != tt.want.Describe() {
			t.Errorf("%s: castTo(%v, %v) = %v, want %v", tt.name, tt.v, tt.tag, got, tt.want)
		}
	}
}
