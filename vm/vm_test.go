package vm

import (
	"errors"
	"testing"

	"github.com/chazu/rexpr/target"
)

func mustNamed(t *testing.T, vm *VM, name string) target.Value {
	t.Helper()
	v, ok := vm.Named(name)
	if !ok {
		t.Fatalf("fixture has no object %q", name)
	}
	return v
}

func mustThread(t *testing.T, vm *VM, name string) *Thread {
	t.Helper()
	th, ok := vm.ThreadByName(name)
	if !ok {
		t.Fatalf("fixture has no thread %q", name)
	}
	return th
}

func mustClass(t *testing.T, vm *VM, name string) *Class {
	t.Helper()
	c := vm.Classes.Lookup(name)
	if c == nil {
		t.Fatalf("class %s not loaded", name)
	}
	return c
}

// ---------------------------------------------------------------------------
// Bootstrap tests
// ---------------------------------------------------------------------------

func TestNewVM_BootstrapsCoreClasses(t *testing.T) {
	vm := NewVM()

	for _, name := range []string{
		target.RootTypeName,
		target.StringTypeName,
		"java.io.Serializable",
		"java.lang.Comparable",
		"java.lang.CharSequence",
		"java.lang.Throwable",
		"java.lang.RuntimeException",
		"java.lang.ArithmeticException",
		"java.lang.NullPointerException",
		"java.lang.Math",
		"java.lang.Integer",
	} {
		if !vm.Classes.Has(name) {
			t.Errorf("%s not bootstrapped", name)
		}
	}

	if vm.ObjectClass.Superclass != nil {
		t.Error("root class should have no superclass")
	}
	if !vm.StringClass.Implements(vm.Classes.Lookup("java.lang.CharSequence")) {
		t.Error("String should implement CharSequence")
	}
	if !vm.ArithmeticClass.IsSubclassOf(vm.ThrowableClass) {
		t.Error("ArithmeticException should be a Throwable")
	}
}

func TestArrayClass_Interned(t *testing.T) {
	vm := NewVM()
	a := vm.ArrayClass(target.IntType)
	b := vm.ArrayClass(target.IntType)
	if a != b {
		t.Error("ArrayClass should return the same class for the same component")
	}
	if a.Name() != "int[]" {
		t.Errorf("Name = %q, want %q", a.Name(), "int[]")
	}
	if a.Kind() != target.KindArray {
		t.Errorf("Kind = %v, want array", a.Kind())
	}
}

func TestTypeByName(t *testing.T) {
	vm := NewVM()

	tests := []struct {
		name string
		kind target.Kind
	}{
		{"int", target.KindInt},
		{"java.lang.String", target.KindClass},
		{"java.lang.Comparable", target.KindInterface},
		{"java.lang.String[][]", target.KindArray},
	}
	for _, tt := range tests {
		typ, err := vm.TypeByName(tt.name)
		if err != nil {
			t.Errorf("TypeByName(%q) returned error: %v", tt.name, err)
			continue
		}
		if typ.Kind() != tt.kind {
			t.Errorf("TypeByName(%q).Kind() = %v, want %v", tt.name, typ.Kind(), tt.kind)
		}
	}

	if _, err := vm.TypeByName("no.such.Type"); err == nil {
		t.Error("TypeByName should fail for unknown types")
	}
}

// ---------------------------------------------------------------------------
// Assignability tests
// ---------------------------------------------------------------------------

func TestIsAssignable(t *testing.T) {
	vm := NewDemo()
	point := mustClass(t, vm, "demo.Point")
	shape := mustClass(t, vm, "demo.Shape")
	named := mustClass(t, vm, "demo.Named")
	drawable := mustClass(t, vm, "demo.Drawable")

	tests := []struct {
		from *Class
		to   target.Type
		want bool
	}{
		{point, vm.ObjectClass, true},
		{point, drawable, true},
		{point, shape, true},
		{point, named, false},
		{drawable, shape, true},
		{shape, drawable, false},
		{vm.ArrayClass(point), vm.ArrayClass(shape), true},
		{vm.ArrayClass(target.IntType), vm.ArrayClass(target.LongType), false},
		{vm.ArrayClass(target.IntType), vm.ObjectClass, true},
		{vm.StringClass, target.IntType, false},
	}
	for _, tt := range tests {
		if got := vm.IsAssignable(tt.from, tt.to); got != tt.want {
			t.Errorf("IsAssignable(%s, %s) = %v, want %v", tt.from.Name(), tt.to.Name(), got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Bridge: fields
// ---------------------------------------------------------------------------

func TestBridge_ReadWriteField(t *testing.T) {
	vm := NewDemo()
	p := mustNamed(t, vm, "p")

	f, ok, err := vm.FieldByName(p.Type(), "x")
	if err != nil || !ok {
		t.Fatalf("FieldByName(x) = %v, %v", ok, err)
	}
	v, err := vm.ReadField(p, f)
	if err != nil {
		t.Fatalf("ReadField returned error: %v", err)
	}
	if v.Tag() != target.TagInt || v.Int64() != 3 {
		t.Errorf("p.x = %v, want int 3", v)
	}

	if err := vm.WriteField(p, f, target.Int(10)); err != nil {
		t.Fatalf("WriteField returned error: %v", err)
	}
	v, _ = vm.ReadField(p, f)
	if v.Int64() != 10 {
		t.Errorf("p.x after write = %v, want 10", v)
	}
}

func TestBridge_WriteFieldRejectsWrongType(t *testing.T) {
	vm := NewDemo()
	p := mustNamed(t, vm, "p")
	x, _, _ := vm.FieldByName(p.Type(), "x")
	label, _, _ := vm.FieldByName(p.Type(), "label")
	next, _, _ := vm.FieldByName(p.Type(), "next")

	if err := vm.WriteField(p, x, target.Long(1)); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("writing long into int field: got %v, want ErrInvalidType", err)
	}
	if err := vm.WriteField(p, label, target.Int(1)); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("writing int into String field: got %v, want ErrInvalidType", err)
	}
	if err := vm.WriteField(p, next, mustNamed(t, vm, "widget")); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("writing Widget into Point field: got %v, want ErrInvalidType", err)
	}
	if err := vm.WriteField(p, next, target.Null()); err != nil {
		t.Errorf("writing null into reference field returned error: %v", err)
	}
}

func TestBridge_StaticField(t *testing.T) {
	vm := NewDemo()
	point := mustClass(t, vm, "demo.Point")

	f, ok, err := vm.FieldByName(point, "ORIGIN")
	if err != nil || !ok {
		t.Fatalf("FieldByName(ORIGIN) = %v, %v", ok, err)
	}
	if !f.Static() {
		t.Fatal("ORIGIN should be static")
	}
	v, err := vm.ReadField(target.Null(), f)
	if err != nil {
		t.Fatalf("ReadField returned error: %v", err)
	}
	if v.Ref().ID() != mustNamed(t, vm, "origin").Ref().ID() {
		t.Errorf("ORIGIN = %v, want the origin object", v)
	}
}

func TestBridge_UnpreparedClass(t *testing.T) {
	vm := NewDemo()
	lazy := mustClass(t, vm, "demo.Lazy")

	if _, _, err := vm.FieldByName(lazy, "value"); !errors.Is(err, target.ErrTypeNotPrepared) {
		t.Errorf("FieldByName on unprepared class: got %v, want ErrTypeNotPrepared", err)
	}
	if _, _, err := vm.Superclass(lazy); !errors.Is(err, target.ErrTypeNotPrepared) {
		t.Errorf("Superclass on unprepared class: got %v, want ErrTypeNotPrepared", err)
	}
	if _, err := vm.MethodsByName(lazy, "toString"); !errors.Is(err, target.ErrTypeNotPrepared) {
		t.Errorf("MethodsByName on unprepared class: got %v, want ErrTypeNotPrepared", err)
	}
}

// ---------------------------------------------------------------------------
// Bridge: methods and invocation
// ---------------------------------------------------------------------------

func TestBridge_MethodsByNameHidesOverridden(t *testing.T) {
	vm := NewDemo()
	point := mustClass(t, vm, "demo.Point")

	methods, err := vm.MethodsByName(point, "toString")
	if err != nil {
		t.Fatalf("MethodsByName returned error: %v", err)
	}
	if len(methods) != 1 {
		t.Fatalf("got %d toString methods, want 1", len(methods))
	}
	if methods[0].DeclaringType().Name() != "demo.Point" {
		t.Errorf("toString declared by %s, want demo.Point", methods[0].DeclaringType().Name())
	}
}

func TestBridge_InvokeDispatchesVirtually(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")
	p := mustNamed(t, vm, "p")

	methods, _ := vm.MethodsByName(vm.ObjectClass, "toString")
	result, err := vm.Invoke(th, p, methods[0], nil)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if result.Str() != "Point" {
		t.Errorf("toString() = %q, want %q", result.Str(), "Point")
	}
}

func TestBridge_InvokeThrows(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")
	ov := mustNamed(t, vm, "overloads")

	methods, _ := vm.MethodsByName(ov.Type(), "boom")
	_, err := vm.Invoke(th, ov, methods[0], nil)

	var invErr *target.InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("Invoke error = %v, want *target.InvocationError", err)
	}
	if invErr.Exception.TypeName() != "java.lang.ArithmeticException" {
		t.Errorf("exception type = %s, want java.lang.ArithmeticException", invErr.Exception.TypeName())
	}
	if invErr.Message != "boom" {
		t.Errorf("message = %q, want %q", invErr.Message, "boom")
	}
	if !th.Suspended() {
		t.Error("thread should be suspended again after the invocation")
	}
}

func TestBridge_InvokeRequiresSuspendedThread(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "worker")
	p := mustNamed(t, vm, "p")

	methods, _ := vm.MethodsByName(p.Type(), "getX")
	if _, err := vm.Invoke(th, p, methods[0], nil); !errors.Is(err, target.ErrThreadNotSuspended) {
		t.Errorf("Invoke on running thread: got %v, want ErrThreadNotSuspended", err)
	}
}

func TestBridge_InvokeStringMethods(t *testing.T) {
	vm := NewVM()
	th := vm.NewThread("t")
	s := vm.NewString("héllo")

	call := func(name string, args ...target.Value) (target.Value, error) {
		t.Helper()
		for _, m := range vm.StringClass.LookupMethods(name) {
			if len(m.params) == len(args) && !m.static {
				return vm.Invoke(th, s, m, args)
			}
		}
		t.Fatalf("no String.%s/%d", name, len(args))
		return target.Null(), nil
	}

	if v, err := call("length"); err != nil || v.Int64() != 5 {
		t.Errorf("length() = %v, %v; want 5", v, err)
	}
	if v, err := call("charAt", target.Int(1)); err != nil || v.Char() != 'é' {
		t.Errorf("charAt(1) = %v, %v; want 'é'", v, err)
	}
	if v, err := call("concat", vm.NewString("!")); err != nil || v.Str() != "héllo!" {
		t.Errorf("concat = %v, %v; want héllo!", v, err)
	}
	if v, err := call("equals", vm.NewString("héllo")); err != nil || !v.Bool() {
		t.Errorf("equals = %v, %v; want true", v, err)
	}

	_, err := call("charAt", target.Int(9))
	var invErr *target.InvocationError
	if !errors.As(err, &invErr) || invErr.Exception.TypeName() != "java.lang.IndexOutOfBoundsException" {
		t.Errorf("charAt(9) error = %v, want IndexOutOfBoundsException", err)
	}
}

func TestBridge_InvokeValidatesArguments(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")
	ov := mustNamed(t, vm, "overloads")

	var fInt target.Method
	methods, _ := vm.MethodsByName(ov.Type(), "f")
	for _, m := range methods {
		if m.Signature() == "demo.Overloads.f(int)" {
			fInt = m
		}
	}
	if fInt == nil {
		t.Fatal("demo.Overloads.f(int) not found")
	}
	if _, err := vm.Invoke(th, ov, fInt, []target.Value{target.Long(1)}); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("Invoke f(int) with long: got %v, want ErrInvalidType", err)
	}
}

// ---------------------------------------------------------------------------
// Bridge: frames
// ---------------------------------------------------------------------------

func TestBridge_FrameLocals(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")

	frame, err := vm.Frame(th, 0)
	if err != nil {
		t.Fatalf("Frame returned error: %v", err)
	}
	this, err := frame.ThisObject()
	if err != nil {
		t.Fatalf("ThisObject returned error: %v", err)
	}
	if this.Ref().ID() != mustNamed(t, vm, "p").Ref().ID() {
		t.Errorf("this = %v, want p", this)
	}

	v, ok, err := frame.VariableByName("i")
	if err != nil || !ok {
		t.Fatalf("VariableByName(i) = %v, %v", ok, err)
	}
	if err := frame.WriteVariable(v, target.Int(42)); err != nil {
		t.Fatalf("WriteVariable returned error: %v", err)
	}
	got, _ := frame.ReadVariable(v)
	if got.Int64() != 42 {
		t.Errorf("i = %v, want 42", got)
	}
	if err := frame.WriteVariable(v, target.Double(1)); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("writing double into int local: got %v, want ErrInvalidType", err)
	}

	if _, ok, _ := frame.VariableByName("nope"); ok {
		t.Error("VariableByName should not find undeclared locals")
	}
}

func TestBridge_FrameGoesStaleAfterInvoke(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")
	p := mustNamed(t, vm, "p")

	frame, err := vm.Frame(th, 0)
	if err != nil {
		t.Fatalf("Frame returned error: %v", err)
	}
	methods, _ := vm.MethodsByName(p.Type(), "getX")
	if _, err := vm.Invoke(th, p, methods[0], nil); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if _, err := frame.ThisObject(); !errors.Is(err, target.ErrStaleFrame) {
		t.Errorf("ThisObject on old frame: got %v, want ErrStaleFrame", err)
	}

	fresh, err := vm.Frame(th, 0)
	if err != nil {
		t.Fatalf("Frame returned error: %v", err)
	}
	if _, err := fresh.ThisObject(); err != nil {
		t.Errorf("ThisObject on fresh frame returned error: %v", err)
	}
}

func TestBridge_NativeFrameHasNoVariables(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "waiter")

	frame, err := vm.Frame(th, 0)
	if err != nil {
		t.Fatalf("Frame returned error: %v", err)
	}
	if _, _, err := frame.VariableByName("x"); !errors.Is(err, target.ErrAbsentInformation) {
		t.Errorf("VariableByName on native frame: got %v, want ErrAbsentInformation", err)
	}
}

func TestBridge_FrameIndexOutOfRange(t *testing.T) {
	vm := NewDemo()
	th := mustThread(t, vm, "main")
	if _, err := vm.Frame(th, 5); !errors.Is(err, target.ErrIndexOutOfBounds) {
		t.Errorf("Frame(5): got %v, want ErrIndexOutOfBounds", err)
	}
}

// ---------------------------------------------------------------------------
// Bridge: arrays and type relations
// ---------------------------------------------------------------------------

func TestBridge_Arrays(t *testing.T) {
	vm := NewDemo()
	nums := mustNamed(t, vm, "nums")

	n, err := vm.ArrayLength(nums)
	if err != nil || n != 3 {
		t.Fatalf("ArrayLength = %d, %v; want 3", n, err)
	}
	if err := vm.WriteArrayElement(nums, 1, target.Int(20)); err != nil {
		t.Fatalf("WriteArrayElement returned error: %v", err)
	}
	v, err := vm.ReadArrayElement(nums, 1)
	if err != nil || v.Int64() != 20 {
		t.Errorf("nums[1] = %v, %v; want 20", v, err)
	}
	if _, err := vm.ReadArrayElement(nums, 3); !errors.Is(err, target.ErrIndexOutOfBounds) {
		t.Errorf("nums[3]: got %v, want ErrIndexOutOfBounds", err)
	}
	if err := vm.WriteArrayElement(nums, 0, target.Long(1)); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("storing long into int[]: got %v, want ErrInvalidType", err)
	}
}

func TestBridge_TypeRelations(t *testing.T) {
	vm := NewDemo()
	shape := mustClass(t, vm, "demo.Shape")
	point := mustClass(t, vm, "demo.Point")

	subs, err := vm.Subinterfaces(shape)
	if err != nil {
		t.Fatalf("Subinterfaces returned error: %v", err)
	}
	if len(subs) != 1 || subs[0].Name() != "demo.Drawable" {
		t.Errorf("Subinterfaces(Shape) = %v, want [demo.Drawable]", subs)
	}

	super, ok, err := vm.Superclass(point)
	if err != nil || !ok || super.Name() != target.RootTypeName {
		t.Errorf("Superclass(Point) = %v, %v, %v", super, ok, err)
	}
	if _, ok, _ := vm.Superclass(vm.ObjectClass); ok {
		t.Error("root class should have no superclass")
	}

	component, err := vm.ComponentType(vm.ArrayClass(point))
	if err != nil || component != point {
		t.Errorf("ComponentType(Point[]) = %v, %v", component, err)
	}
	if _, err := vm.ComponentType(point); !errors.Is(err, target.ErrInvalidType) {
		t.Errorf("ComponentType(Point): got %v, want ErrInvalidType", err)
	}
}
