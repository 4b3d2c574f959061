package eval_test

import (
	"sync/atomic"
	"testing"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/target"
	"github.com/chazu/rexpr/vm"
)

// countingBridge forwards to a VM and counts every round trip.
type countingBridge struct {
	target.Bridge
	calls atomic.Int64
}

func (b *countingBridge) hit() { b.calls.Add(1) }

func (b *countingBridge) MirrorString(s string) (target.Value, error) {
	b.hit()
	return b.Bridge.MirrorString(s)
}

func (b *countingBridge) ClassesByName(name string) ([]target.Type, error) {
	b.hit()
	return b.Bridge.ClassesByName(name)
}

func (b *countingBridge) FieldByName(t target.Type, name string) (target.Field, bool, error) {
	b.hit()
	return b.Bridge.FieldByName(t, name)
}

func (b *countingBridge) ReadField(obj target.Value, f target.Field) (target.Value, error) {
	b.hit()
	return b.Bridge.ReadField(obj, f)
}

func (b *countingBridge) WriteField(obj target.Value, f target.Field, v target.Value) error {
	b.hit()
	return b.Bridge.WriteField(obj, f, v)
}

func (b *countingBridge) MethodsByName(t target.Type, name string) ([]target.Method, error) {
	b.hit()
	return b.Bridge.MethodsByName(t, name)
}

func (b *countingBridge) ArgumentTypes(m target.Method) ([]target.Type, error) {
	b.hit()
	return b.Bridge.ArgumentTypes(m)
}

func (b *countingBridge) Invoke(th target.Thread, obj target.Value, m target.Method, args []target.Value) (target.Value, error) {
	b.hit()
	return b.Bridge.Invoke(th, obj, m, args)
}

func (b *countingBridge) Frame(th target.Thread, index int) (target.Frame, error) {
	b.hit()
	return b.Bridge.Frame(th, index)
}

func (b *countingBridge) ArrayLength(a target.Value) (int32, error) {
	b.hit()
	return b.Bridge.ArrayLength(a)
}

func (b *countingBridge) ReadArrayElement(a target.Value, i int32) (target.Value, error) {
	b.hit()
	return b.Bridge.ReadArrayElement(a, i)
}

func (b *countingBridge) WriteArrayElement(a target.Value, i int32, v target.Value) error {
	b.hit()
	return b.Bridge.WriteArrayElement(a, i, v)
}

func (b *countingBridge) Superclass(t target.Type) (target.Type, bool, error) {
	b.hit()
	return b.Bridge.Superclass(t)
}

func (b *countingBridge) Interfaces(t target.Type) ([]target.Type, error) {
	b.hit()
	return b.Bridge.Interfaces(t)
}

func (b *countingBridge) Subinterfaces(t target.Type) ([]target.Type, error) {
	b.hit()
	return b.Bridge.Subinterfaces(t)
}

func (b *countingBridge) ComponentType(t target.Type) (target.Type, error) {
	b.hit()
	return b.Bridge.ComponentType(t)
}

// fixture is an evaluator over the demo debuggee, suspended on "main".
type fixture struct {
	vm     *vm.VM
	bridge *countingBridge
	ev     *eval.Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	machine := vm.NewDemo()
	th, ok := machine.ThreadByName("main")
	if !ok {
		t.Fatal("demo has no main thread")
	}
	b := &countingBridge{Bridge: machine}
	return &fixture{vm: machine, bridge: b, ev: eval.New(b, th)}
}

func (f *fixture) named(t *testing.T, name string) target.Value {
	t.Helper()
	v, ok := f.vm.Named(name)
	if !ok {
		t.Fatalf("demo has no object %q", name)
	}
	return v
}

func (f *fixture) local(t *testing.T, name string) eval.Slot {
	t.Helper()
	s, err := f.ev.Local(name)
	if err != nil {
		t.Fatalf("Local(%q) returned error: %v", name, err)
	}
	return s
}

func (f *fixture) class(t *testing.T, name string) target.Type {
	t.Helper()
	types, err := f.vm.ClassesByName(name)
	if err != nil || len(types) != 1 {
		t.Fatalf("ClassesByName(%q) = %v, %v", name, types, err)
	}
	return types[0]
}

func (f *fixture) str(t *testing.T, s string) target.Value {
	t.Helper()
	v, err := f.vm.MirrorString(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func read(t *testing.T, s eval.Slot) target.Value {
	t.Helper()
	v, err := eval.ReadSlot(s)
	if err != nil {
		t.Fatalf("reading %s: %v", s, err)
	}
	return v
}

func wantKind(t *testing.T, err error, kind eval.ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("got no error, want %v", kind)
	}
	if got := eval.KindOf(err); got != kind {
		t.Fatalf("error kind = %v (%v), want %v", got, err, kind)
	}
}
