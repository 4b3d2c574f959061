package expr_test

import (
	"errors"
	"testing"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/target"
	"github.com/chazu/rexpr/vm"
)

func newWalker(t *testing.T, thread string) (*vm.VM, *expr.Walker) {
	t.Helper()
	machine := vm.NewDemo()
	th, ok := machine.ThreadByName(thread)
	if !ok {
		t.Fatalf("demo has no thread %q", thread)
	}
	handles := func(id string) (target.Value, bool) {
		if id == "h-1" {
			return machine.Named("origin")
		}
		return target.Null(), false
	}
	return machine, expr.NewWalker(eval.New(machine, th), handles)
}

func mustValue(t *testing.T, w *expr.Walker, n *expr.Node) target.Value {
	t.Helper()
	v, err := w.Value(n)
	if err != nil {
		t.Fatalf("%s returned error: %v", n, err)
	}
	return v
}

func intLit(text string) *expr.Node { return expr.Lit(expr.LitInt, text) }

// ---------------------------------------------------------------------------
// Walker tests
// ---------------------------------------------------------------------------

func TestWalker_Expressions(t *testing.T) {
	_, w := newWalker(t, "main")

	tests := []struct {
		node *expr.Node
		want string
	}{
		{expr.Binary("+", expr.Ident("i"), intLit("1")), "int 6"},
		{expr.Binary("*", expr.Ident("x"), expr.Ident("y")), "int 12"},
		{expr.Binary("/", expr.Ident("d"), intLit("2")), "double 1.25"},
		{expr.Binary("==", expr.Ident("n"), expr.Lit(expr.LitInt, "9007199254740992L")), "boolean true"},
		{expr.Binary("+", expr.Ident("s"), expr.Ident("c")), `java.lang.String "hia"`},
		{expr.Field(expr.Ident("arr"), "length"), "int 3"},
		{expr.Index(expr.Ident("arr"), intLit("1")), "int 2"},
		{expr.Field(expr.Field(expr.This(), "next"), "label"), `java.lang.String "origin"`},
		{expr.Static("demo.Point", "count"), "int 2"},
		{expr.Static("java.lang.Integer", "MAX_VALUE"), "int 2147483647"},
		{expr.Unary("-", expr.Ident("f")), "float -1.5"},
		{expr.Unary("!", expr.Ident("flag")), "boolean false"},
		{expr.Ternary(expr.Ident("flag"), intLit("1"), intLit("2")), "int 1"},
		{expr.Call(expr.Ident("ov"), "f", intLit("1")), `java.lang.String "f(int)"`},
		{expr.Call(expr.Ident("s"), "length"), "int 2"},
		{expr.Call(nil, "getX"), "int 3"},
		{expr.StaticCall("java.lang.Math", "max", intLit("3"), expr.Ident("i")), "int 5"},
		{expr.Call(expr.Ident("ov"), "f", expr.Lit(expr.LitNull, "null")), `java.lang.String "f(Object)"`},
		{expr.Field(expr.Handle("h-1"), "label"), `java.lang.String "origin"`},
	}
	for _, tt := range tests {
		v, err := w.Value(tt.node)
		if err != nil {
			t.Errorf("%s returned error: %v", tt.node, err)
			continue
		}
		if v.Describe() != tt.want {
			t.Errorf("%s = %s, want %s", tt.node, v.Describe(), tt.want)
		}
	}
}

func TestWalker_ShortCircuit(t *testing.T) {
	_, w := newWalker(t, "main")

	// The right operands would fail: boom() throws and nope is undefined.
	boom := expr.Call(expr.Ident("ov"), "boom")
	tests := []*expr.Node{
		expr.Binary("||", expr.Ident("flag"), boom),
		expr.Binary("&&", expr.Unary("!", expr.Ident("flag")), expr.Ident("nope")),
		expr.Ternary(expr.Ident("flag"), intLit("1"), boom),
		expr.Ternary(expr.Lit(expr.LitBool, "false"), expr.Ident("nope"), intLit("2")),
	}
	for _, n := range tests {
		if _, err := w.Value(n); err != nil {
			t.Errorf("%s evaluated a branch it should have skipped: %v", n, err)
		}
	}

	// When the left operand does not decide, the right one runs.
	_, err := w.Value(expr.Binary("&&", expr.Ident("flag"), boom))
	if eval.KindOf(err) != eval.KindRemoteFailure {
		t.Errorf("flag && boom(): got %v, want RemoteFailure", err)
	}
}

func TestWalker_Assignment(t *testing.T) {
	machine, w := newWalker(t, "main")

	mustValue(t, w, expr.Assign("+=", expr.Field(expr.This(), "x"), intLit("10")))
	mustValue(t, w, expr.Assign("=", expr.Index(expr.Ident("arr"), intLit("0")), intLit("7")))
	mustValue(t, w, expr.Assign("<<=", expr.Ident("i"), intLit("2")))

	p, _ := machine.Named("p")
	f, _, _ := machine.FieldByName(p.Type(), "x")
	if v, _ := machine.ReadField(p, f); v.Int64() != 13 {
		t.Errorf("p.x = %v, want 13", v)
	}
	nums, _ := machine.Named("nums")
	if v, _ := machine.ReadArrayElement(nums, 0); v.Int64() != 7 {
		t.Errorf("nums[0] = %v, want 7", v)
	}
	if v := mustValue(t, w, expr.Ident("i")); v.Int64() != 20 {
		t.Errorf("i = %v, want 20", v)
	}
}

func TestWalker_CompoundAssignmentReadsLeftFirst(t *testing.T) {
	_, w := newWalker(t, "main")
	mustValue(t, w, expr.Assign("=", expr.Ident("i"), intLit("1")))

	v := mustValue(t, w, expr.Assign("+=", expr.Ident("i"), expr.Assign("=", expr.Ident("i"), intLit("5"))))
	if v.Int64() != 6 {
		t.Errorf("i += (i = 5) = %v, want 6", v)
	}
	if v := mustValue(t, w, expr.Ident("i")); v.Int64() != 6 {
		t.Errorf("i = %v, want 6", v)
	}
}

func TestWalker_AssignmentResultIsSlot(t *testing.T) {
	_, w := newWalker(t, "main")
	s, err := w.Eval(expr.Assign("=", expr.Ident("i"), intLit("9")))
	if err != nil {
		t.Fatalf("assignment returned error: %v", err)
	}
	if s.Kind() != eval.SlotLocal {
		t.Errorf("assignment result kind = %v, want local variable", s.Kind())
	}
}

func TestWalker_NameResolution(t *testing.T) {
	_, w := newWalker(t, "main")

	// Locals shadow fields of this.
	s, err := w.Eval(expr.Ident("i"))
	if err != nil || s.Kind() != eval.SlotLocal {
		t.Errorf("i resolved to %v, %v; want a local", s, err)
	}
	s, err = w.Eval(expr.Ident("x"))
	if err != nil || s.Kind() != eval.SlotInstanceField {
		t.Errorf("x resolved to %v, %v; want a field of this", s, err)
	}
	s, err = w.Eval(expr.Ident("count"))
	if err != nil || s.Kind() != eval.SlotStaticField {
		t.Errorf("count resolved to %v, %v; want a static field", s, err)
	}
	if _, err := w.Eval(expr.Ident("nope")); !eval.IsNotFound(err) {
		t.Errorf("nope: got %v, want SlotNotFound", err)
	}
}

func TestWalker_StaticContext(t *testing.T) {
	machine, _ := newWalker(t, "main")
	th := machine.NewThread("static")
	point := machine.Classes.Lookup("demo.Point")
	method := point.LookupMethods("getX")[0]
	th.Push(&vm.StackEntry{Method: method, This: target.Null()})
	w := expr.NewWalker(eval.New(machine, th), nil)

	if v := mustValue(t, w, expr.Ident("count")); v.Int64() != 2 {
		t.Errorf("count = %v, want 2", v)
	}
	if _, err := w.Eval(expr.Ident("x")); !eval.IsNotFound(err) {
		t.Errorf("instance field in static context: got %v, want SlotNotFound", err)
	}
	if v := mustValue(t, w, expr.This()); !v.IsNull() {
		t.Errorf("this = %v, want null", v)
	}
}

func TestWalker_Errors(t *testing.T) {
	_, w := newWalker(t, "main")

	tests := []struct {
		name string
		node *expr.Node
		kind eval.ErrorKind
	}{
		{"bad literal", intLit("0x"), eval.KindParse},
		{"unknown literal kind", expr.Lit("complex", "1i"), eval.KindParse},
		{"unknown operator", expr.Binary("**", intLit("1"), intLit("2")), eval.KindParse},
		{"assignment as binary", expr.Binary("+=", expr.Ident("i"), intLit("2")), eval.KindParse},
		{"binary as assignment", expr.Assign("+", expr.Ident("i"), intLit("2")), eval.KindParse},
		{"missing child", &expr.Node{Kind: expr.KindUnary, Op: "-"}, eval.KindParse},
		{"unknown kind", &expr.Node{Kind: "lambda"}, eval.KindParse},
		{"unknown type", expr.Static("no.Such", "x"), eval.KindSlotNotFound},
		{"unknown handle", expr.Handle("h-9"), eval.KindSlotNotFound},
		{"field of int", expr.Field(expr.Ident("i"), "x"), eval.KindSlotNotFound},
		{"index with long", expr.Index(expr.Ident("arr"), expr.Ident("n")), eval.KindTypeMismatch},
		{"ambiguous", expr.Call(expr.Ident("ov"), "g", expr.Ident("w")), eval.KindAmbiguousOverload},
		{"no overload", expr.Call(expr.Ident("ov"), "f", expr.Ident("n")), eval.KindNoMatchingOverload},
		{"division by zero", expr.Binary("%", expr.Ident("i"), intLit("0")), eval.KindArithmetic},
		{"assign to literal", expr.Assign("=", intLit("1"), intLit("2")), eval.KindTypeMismatch},
		{"non-boolean condition", expr.Ternary(expr.Ident("i"), intLit("1"), intLit("2")), eval.KindTypeMismatch},
		{"call on null", expr.Call(expr.Ident("obj"), "toString"), eval.KindTypeMismatch},
		{"thrown", expr.Call(expr.Ident("ov"), "boom"), eval.KindRemoteFailure},
	}
	for _, tt := range tests {
		_, err := w.Value(tt.node)
		if got := eval.KindOf(err); got != tt.kind {
			t.Errorf("%s: got %v (%v), want %v", tt.name, got, err, tt.kind)
		}
	}
}

func TestWalker_NativeFrame(t *testing.T) {
	_, w := newWalker(t, "waiter")
	_, err := w.Value(expr.Ident("x"))
	if !errors.Is(err, target.ErrAbsentInformation) {
		t.Errorf("name in native frame: got %v, want ErrAbsentInformation", err)
	}
}
