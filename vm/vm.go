package vm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/rexpr/target"
)

var log = commonlog.GetLogger("rexpr.vm")

// VM is an in-process debuggee: a heap of objects, arrays and strings, a
// loaded class table and a set of threads with call stacks. It implements
// target.Bridge, so an evaluator can run against it exactly as it would
// against a remote debug connection.
type VM struct {
	Classes *ClassTable

	// Bootstrapped classes
	ObjectClass       *Class
	StringClass       *Class
	ThrowableClass    *Class
	ArithmeticClass   *Class
	NullPointerClass  *Class
	IndexBoundsClass  *Class
	IllegalArgClass   *Class
	RuntimeErrorClass *Class

	nextID atomic.Uint64

	mu      sync.RWMutex
	heap    map[uint64]target.Ref
	arrays  map[string]*Class // array classes by component name
	threads map[uint64]*Thread
	names   map[string]target.Value // fixture names
}

// NewVM creates a VM with the core classes loaded and no threads.
func NewVM() *VM {
	vm := &VM{
		Classes: NewClassTable(),
		heap:    make(map[uint64]target.Ref),
		arrays:  make(map[string]*Class),
		threads: make(map[uint64]*Thread),
	}
	vm.bootstrap()
	return vm
}

// ---------------------------------------------------------------------------
// Class definition
// ---------------------------------------------------------------------------

// DefineClass registers a class extending superclass (the root class when
// nil) and implementing interfaces.
func (vm *VM) DefineClass(name string, superclass *Class, interfaces ...*Class) *Class {
	if superclass == nil {
		superclass = vm.ObjectClass
	}
	c := NewClass(name, superclass, interfaces...)
	vm.Classes.Register(c)
	return c
}

// DefineInterface registers an interface extending the given interfaces.
func (vm *VM) DefineInterface(name string, extends ...*Class) *Class {
	c := NewInterface(name, extends...)
	vm.Classes.Register(c)
	return c
}

// ArrayClass returns the array type with the given component type,
// creating it on first use.
func (vm *VM) ArrayClass(component target.Type) *Class {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if c, ok := vm.arrays[component.Name()]; ok {
		return c
	}
	c := NewArrayClass(component, vm.ObjectClass)
	vm.arrays[component.Name()] = c
	vm.Classes.Register(c)
	return c
}

// TypeByName resolves a primitive type name, an array type name (T[]) or a
// loaded class.
func (vm *VM) TypeByName(name string) (target.Type, error) {
	if p, ok := target.PrimitiveByName(name); ok {
		return p, nil
	}
	if len(name) > 2 && name[len(name)-2:] == "[]" {
		component, err := vm.TypeByName(name[:len(name)-2])
		if err != nil {
			return nil, err
		}
		return vm.ArrayClass(component), nil
	}
	if c := vm.Classes.Lookup(name); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

// ---------------------------------------------------------------------------
// Heap allocation
// ---------------------------------------------------------------------------

func (vm *VM) register(ref target.Ref) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.heap[ref.ID()] = ref
}

// NewObject allocates an instance of class with every field at its zero
// value.
func (vm *VM) NewObject(class *Class) *Object {
	o := &Object{id: vm.nextID.Add(1), class: class, fields: make(map[*Field]target.Value)}
	vm.register(o)
	return o
}

// NewArray allocates an array of the given component type holding elems.
func (vm *VM) NewArray(component target.Type, elems ...target.Value) *ArrayObject {
	a := &ArrayObject{id: vm.nextID.Add(1), class: vm.ArrayClass(component), elems: elems}
	vm.register(a)
	return a
}

// NewString allocates a string.
func (vm *VM) NewString(s string) target.Value {
	so := &StringObject{id: vm.nextID.Add(1), class: vm.StringClass, value: s}
	vm.register(so)
	return target.Text(so, s)
}

// Lookup returns the heap object with the given id.
func (vm *VM) Lookup(id uint64) (target.Ref, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	ref, ok := vm.heap[id]
	return ref, ok
}

// ValueOf wraps a heap reference in a Value of the matching tag.
func ValueOf(ref target.Ref) target.Value {
	switch r := ref.(type) {
	case nil:
		return target.Null()
	case *StringObject:
		return target.Text(r, r.value)
	case *ArrayObject:
		return target.Array(r)
	}
	return target.Object(ref)
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// NewThread creates a suspended thread with an empty stack.
func (vm *VM) NewThread(name string) *Thread {
	th := &Thread{id: vm.nextID.Add(1), name: name, vm: vm, suspended: true}
	vm.mu.Lock()
	vm.threads[th.id] = th
	vm.mu.Unlock()
	log.Debugf("created thread %s (%d)", name, th.id)
	return th
}

// Thread returns the thread with the given id.
func (vm *VM) Thread(id uint64) (*Thread, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	th, ok := vm.threads[id]
	return th, ok
}

// ThreadByName returns the first thread with the given name.
func (vm *VM) ThreadByName(name string) (*Thread, bool) {
	for _, th := range vm.Threads() {
		if th.name == name {
			return th, true
		}
	}
	return nil, false
}

// Threads returns all threads ordered by id.
func (vm *VM) Threads() []*Thread {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	result := make([]*Thread, 0, len(vm.threads))
	for _, th := range vm.threads {
		result = append(result, th)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].id < result[j].id })
	return result
}

// ---------------------------------------------------------------------------
// Type checks
// ---------------------------------------------------------------------------

// IsAssignable reports whether a reference of runtime class from may be
// stored where to is declared.
func (vm *VM) IsAssignable(from *Class, to target.Type) bool {
	if to == nil {
		return false
	}
	if to.Kind().Primitive() {
		return false
	}
	if target.SameType(from, to) || to.Name() == target.RootTypeName {
		return true
	}
	switch from.kind {
	case target.KindArray:
		if to.Kind() != target.KindArray {
			return false
		}
		tc, ok := to.(*Class)
		if !ok {
			return false
		}
		if from.Component.Kind().Primitive() || tc.Component.Kind().Primitive() {
			return target.SameType(from.Component, tc.Component)
		}
		fc, ok := from.Component.(*Class)
		return ok && vm.IsAssignable(fc, tc.Component)
	case target.KindInterface:
		iface, ok := to.(*Class)
		return ok && from.Implements(iface)
	}
	toClass, ok := to.(*Class)
	if !ok {
		return false
	}
	if toClass.kind == target.KindInterface {
		return from.Implements(toClass)
	}
	return from.IsSubclassOf(toClass)
}

// checkAssignable validates a store of v into a location declared as t.
func (vm *VM) checkAssignable(v target.Value, t target.Type) error {
	if t == nil {
		return fmt.Errorf("no declared type: %w", target.ErrInvalidType)
	}
	if t.Kind().Primitive() {
		want, _ := target.PrimitiveTag(t.Kind())
		if v.Tag() != want {
			return fmt.Errorf("cannot store %s into %s: %w", v.Describe(), t.Name(), target.ErrInvalidType)
		}
		return nil
	}
	if v.IsNull() {
		return nil
	}
	if v.Tag().Primitive() {
		return fmt.Errorf("cannot store %s into %s: %w", v.Describe(), t.Name(), target.ErrInvalidType)
	}
	from, ok := v.Type().(*Class)
	if !ok || !vm.IsAssignable(from, t) {
		return fmt.Errorf("cannot store %s into %s: %w", v.Describe(), t.Name(), target.ErrInvalidType)
	}
	return nil
}
