package eval_test

import (
	"errors"
	"testing"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Overload resolution tests
// ---------------------------------------------------------------------------

func TestResolve_ExactBeatsAssignable(t *testing.T) {
	f := newFixture(t)
	ov := f.named(t, "overloads")

	methods, err := f.vm.MethodsByName(ov.Type(), "f")
	if err != nil {
		t.Fatal(err)
	}
	// Both declaration orders pick the same method.
	reversed := []target.Method{methods[1], methods[0]}
	for _, candidates := range [][]target.Method{methods, reversed} {
		m, err := f.ev.Resolve("f", candidates, []target.Value{target.Int(1)})
		if err != nil {
			t.Fatalf("Resolve returned error: %v", err)
		}
		if m.Signature() != "demo.Overloads.f(int)" {
			t.Errorf("Resolve picked %s, want demo.Overloads.f(int)", m.Signature())
		}
	}
}

func TestResolve_AssignableByHierarchy(t *testing.T) {
	f := newFixture(t)
	ov := f.named(t, "overloads")
	methods, _ := f.vm.MethodsByName(ov.Type(), "f")

	tests := []struct {
		arg  target.Value
		want string
	}{
		{f.named(t, "p"), "demo.Overloads.f(java.lang.Object)"},
		{f.str(t, "s"), "demo.Overloads.f(java.lang.Object)"},
		{f.named(t, "nums"), "demo.Overloads.f(java.lang.Object)"},
		{target.Null(), "demo.Overloads.f(java.lang.Object)"},
	}
	for _, tt := range tests {
		m, err := f.ev.Resolve("f", methods, []target.Value{tt.arg})
		if err != nil {
			t.Errorf("Resolve(f, %v) returned error: %v", tt.arg, err)
			continue
		}
		if m.Signature() != tt.want {
			t.Errorf("Resolve(f, %v) = %s, want %s", tt.arg, m.Signature(), tt.want)
		}
	}
}

func TestResolve_Ambiguous(t *testing.T) {
	f := newFixture(t)
	ov := f.named(t, "overloads")
	methods, _ := f.vm.MethodsByName(ov.Type(), "g")

	_, err := f.ev.Resolve("g", methods, []target.Value{f.named(t, "widget")})
	wantKind(t, err, eval.KindAmbiguousOverload)
	if !errors.Is(err, eval.ErrAmbiguousOverload) {
		t.Errorf("error %v should match ErrAmbiguousOverload", err)
	}

	// Point implements Shape through Drawable but not Named.
	m, err := f.ev.Resolve("g", methods, []target.Value{f.named(t, "p")})
	if err != nil {
		t.Fatalf("Resolve(g, p) returned error: %v", err)
	}
	if m.Signature() != "demo.Overloads.g(demo.Shape)" {
		t.Errorf("Resolve(g, p) = %s, want g(demo.Shape)", m.Signature())
	}
}

func TestResolve_NoMatch(t *testing.T) {
	f := newFixture(t)
	ov := f.named(t, "overloads")
	methods, _ := f.vm.MethodsByName(ov.Type(), "f")

	tests := []struct {
		name string
		args []target.Value
	}{
		{"long does not widen", []target.Value{target.Long(1)}},
		{"wrong arity", []target.Value{target.Int(1), target.Int(2)}},
		{"no arguments", nil},
	}
	for _, tt := range tests {
		_, err := f.ev.Resolve("f", methods, tt.args)
		if eval.KindOf(err) != eval.KindNoMatchingOverload {
			t.Errorf("%s: got %v, want NoMatchingOverload", tt.name, err)
		}
	}
}

func TestAssignable(t *testing.T) {
	f := newFixture(t)
	point := f.class(t, "demo.Point")
	shape := f.class(t, "demo.Shape")
	named := f.class(t, "demo.Named")
	object := f.class(t, target.RootTypeName)
	pointArray := f.named(t, "points").Type()
	intArray := f.named(t, "nums").Type()

	tests := []struct {
		name     string
		from, to target.Type
		want     bool
	}{
		{"same primitive", target.IntType, target.IntType, true},
		{"no widening", target.IntType, target.LongType, false},
		{"primitive to object", target.IntType, object, false},
		{"class to root", point, object, true},
		{"class to interface", point, shape, true},
		{"unrelated interface", point, named, false},
		{"array to root", intArray, object, true},
		{"array to interface", intArray, shape, false},
		{"primitive arrays differ", intArray, pointArray, false},
		{"array to itself", pointArray, pointArray, true},
	}
	for _, tt := range tests {
		got, err := f.ev.Assignable(tt.from, tt.to)
		if err != nil {
			t.Errorf("%s: Assignable returned error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: Assignable(%s, %s) = %v, want %v", tt.name, tt.from.Name(), tt.to.Name(), got, tt.want)
		}
	}
}

func TestAssignable_UnpreparedIsRemoteFailure(t *testing.T) {
	f := newFixture(t)
	lazy := f.class(t, "demo.Lazy")
	shape := f.class(t, "demo.Shape")

	_, err := f.ev.Assignable(lazy, shape)
	wantKind(t, err, eval.KindRemoteFailure)
}

// ---------------------------------------------------------------------------
// Invocation tests
// ---------------------------------------------------------------------------

func TestInvoke(t *testing.T) {
	f := newFixture(t)
	ov := f.named(t, "overloads")

	v, err := f.ev.Invoke(ov, "f", []target.Value{target.Int(3)})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if v.Str() != "f(int)" {
		t.Errorf("f(3) = %v, want f(int)", v)
	}

	p := f.named(t, "p")
	v, err = f.ev.Invoke(ov, "echo", []target.Value{p})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if v.Ref().ID() != p.Ref().ID() {
		t.Errorf("echo(p) = %v, want p", v)
	}
}

func TestInvoke_Inherited(t *testing.T) {
	f := newFixture(t)
	v, err := f.ev.Invoke(f.named(t, "widget"), "hashCode", nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if v.Tag() != target.TagInt {
		t.Errorf("hashCode() = %v, want an int", v)
	}
}

func TestInvoke_ReceiverMustBeReference(t *testing.T) {
	f := newFixture(t)
	before := f.bridge.calls.Load()

	_, err := f.ev.Invoke(target.Int(1), "toString", nil)
	wantKind(t, err, eval.KindTypeMismatch)
	_, err = f.ev.Invoke(target.Null(), "toString", nil)
	wantKind(t, err, eval.KindTypeMismatch)

	if f.bridge.calls.Load() != before {
		t.Error("rejected receivers should make no bridge calls")
	}
}

func TestInvoke_Throws(t *testing.T) {
	f := newFixture(t)
	_, err := f.ev.Invoke(f.named(t, "overloads"), "boom", nil)
	wantKind(t, err, eval.KindRemoteFailure)

	var invErr *target.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("error %v should wrap *target.InvocationError", err)
	}
	if invErr.Message != "boom" {
		t.Errorf("message = %q, want boom", invErr.Message)
	}
}

func TestInvokeStatic(t *testing.T) {
	f := newFixture(t)

	v, err := f.ev.InvokeStatic(f.class(t, "java.lang.Math"), "max", []target.Value{target.Long(3), target.Long(9)})
	if err != nil {
		t.Fatalf("InvokeStatic returned error: %v", err)
	}
	if v.Tag() != target.TagLong || v.Int64() != 9 {
		t.Errorf("Math.max(3L, 9L) = %v, want long 9", v)
	}

	v, err = f.ev.InvokeStatic(f.class(t, "demo.Overloads"), "scale", []target.Value{target.Int(4)})
	if err != nil {
		t.Fatalf("InvokeStatic returned error: %v", err)
	}
	if v.Int64() != 4 {
		t.Errorf("scale(4) = %v, want 4", v)
	}

	// Instance methods are not candidates for a static call.
	_, err = f.ev.InvokeStatic(f.class(t, "demo.Overloads"), "f", []target.Value{target.Int(1)})
	wantKind(t, err, eval.KindNoMatchingOverload)
}

func TestInvokeStatic_ParseIntThrows(t *testing.T) {
	f := newFixture(t)
	_, err := f.ev.InvokeStatic(f.class(t, "java.lang.Integer"), "parseInt", []target.Value{f.str(t, "x")})
	var invErr *target.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("error %v should wrap *target.InvocationError", err)
	}
	if invErr.Exception.TypeName() != "java.lang.NumberFormatException" {
		t.Errorf("exception = %s, want NumberFormatException", invErr.Exception.TypeName())
	}
}
