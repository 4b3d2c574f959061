package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// target.Bridge implementation
// ---------------------------------------------------------------------------

var _ target.Bridge = (*VM)(nil)

func (vm *VM) classOf(t target.Type) (*Class, error) {
	c, ok := t.(*Class)
	if !ok || c == nil {
		return nil, fmt.Errorf("%v is not a reference type: %w", t, target.ErrInvalidType)
	}
	if !c.prepared {
		return nil, fmt.Errorf("%s: %w", c.name, target.ErrTypeNotPrepared)
	}
	return c, nil
}

func (vm *VM) objectOf(v target.Value) (*Object, error) {
	o, ok := v.Ref().(*Object)
	if !ok {
		return nil, fmt.Errorf("%s is not an object: %w", v.Describe(), target.ErrInvalidReference)
	}
	return o, nil
}

func (vm *VM) arrayOf(v target.Value) (*ArrayObject, error) {
	a, ok := v.Ref().(*ArrayObject)
	if !ok {
		return nil, fmt.Errorf("%s is not an array: %w", v.Describe(), target.ErrInvalidReference)
	}
	return a, nil
}

func (vm *VM) MirrorString(s string) (target.Value, error) {
	return vm.NewString(s), nil
}

func (vm *VM) ClassesByName(name string) ([]target.Type, error) {
	if c := vm.Classes.Lookup(name); c != nil {
		return []target.Type{c}, nil
	}
	return nil, nil
}

// --- Fields ---

func (vm *VM) FieldByName(t target.Type, name string) (target.Field, bool, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, false, err
	}
	f := c.LookupField(name)
	if f == nil {
		return nil, false, nil
	}
	return f, true, nil
}

func (vm *VM) field(f target.Field) (*Field, error) {
	fld, ok := f.(*Field)
	if !ok {
		return nil, fmt.Errorf("field %s: %w", f.Name(), target.ErrInvalidReference)
	}
	return fld, nil
}

func (vm *VM) instance(obj target.Value, f *Field) (*Object, error) {
	o, err := vm.objectOf(obj)
	if err != nil {
		return nil, err
	}
	if !o.class.IsSubclassOf(f.declaring) {
		return nil, fmt.Errorf("%s has no field %s.%s: %w", o.class.name, f.declaring.name, f.name, target.ErrInvalidReference)
	}
	return o, nil
}

func (vm *VM) ReadField(obj target.Value, f target.Field) (target.Value, error) {
	fld, err := vm.field(f)
	if err != nil {
		return target.Null(), err
	}
	if fld.static {
		return fld.staticValue(), nil
	}
	o, err := vm.instance(obj, fld)
	if err != nil {
		return target.Null(), err
	}
	return o.Get(fld), nil
}

func (vm *VM) WriteField(obj target.Value, f target.Field, value target.Value) error {
	fld, err := vm.field(f)
	if err != nil {
		return err
	}
	if err := vm.checkAssignable(value, fld.typ); err != nil {
		return fmt.Errorf("field %s: %w", fld.name, err)
	}
	if fld.static {
		fld.SetStatic(value)
		return nil
	}
	o, err := vm.instance(obj, fld)
	if err != nil {
		return err
	}
	o.Set(fld, value)
	return nil
}

// --- Methods ---

func (vm *VM) MethodsByName(t target.Type, name string) ([]target.Method, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, err
	}
	found := c.LookupMethods(name)
	result := make([]target.Method, len(found))
	for i, m := range found {
		result[i] = m
	}
	return result, nil
}

func (vm *VM) ArgumentTypes(m target.Method) ([]target.Type, error) {
	mm, ok := m.(*Method)
	if !ok {
		return nil, fmt.Errorf("method %s: %w", m.Name(), target.ErrInvalidReference)
	}
	return append([]target.Type(nil), mm.params...), nil
}

// Invoke runs m in thread th. Instance methods dispatch on the receiver's
// runtime class. The thread runs for the duration of the call, which
// invalidates every frame obtained before it.
func (vm *VM) Invoke(th target.Thread, obj target.Value, m target.Method, args []target.Value) (target.Value, error) {
	thread, ok := th.(*Thread)
	if !ok || thread.vm != vm {
		return target.Null(), fmt.Errorf("thread %v: %w", th, target.ErrInvalidReference)
	}
	method, ok := m.(*Method)
	if !ok {
		return target.Null(), fmt.Errorf("method %s: %w", m.Name(), target.ErrInvalidReference)
	}
	if len(args) != len(method.params) {
		return target.Null(), fmt.Errorf("%s takes %d arguments, got %d: %w",
			method.Signature(), len(method.params), len(args), target.ErrInvalidType)
	}
	for i, arg := range args {
		if err := vm.checkAssignable(arg, method.params[i]); err != nil {
			return target.Null(), fmt.Errorf("argument %d of %s: %w", i, method.Signature(), err)
		}
	}

	if !method.static {
		if obj.IsNull() || obj.Tag().Primitive() {
			return target.Null(), fmt.Errorf("%s needs a receiver: %w", method.Signature(), target.ErrInvalidReference)
		}
		method = vm.dispatch(obj, method)
	}

	log.Debugf("invoking %s on thread %s", method.Signature(), thread.name)
	result, err := thread.run(func() (target.Value, error) {
		return vm.call(thread, method, obj, args)
	})
	if err != nil {
		var thrown *Thrown
		if errors.As(err, &thrown) {
			return target.Null(), &target.InvocationError{
				Method:    method.Signature(),
				Exception: thrown.Exception,
				Message:   thrown.Message,
			}
		}
		return target.Null(), err
	}
	return result, nil
}

// dispatch finds the override of m on the receiver's runtime class.
func (vm *VM) dispatch(receiver target.Value, m *Method) *Method {
	c, ok := receiver.Type().(*Class)
	if !ok {
		return m
	}
	key := m.paramKey()
	for current := c; current != nil; current = current.Superclass {
		for _, candidate := range current.Methods {
			if candidate.name == m.name && !candidate.static && candidate.paramKey() == key {
				return candidate
			}
		}
	}
	return m
}

func (vm *VM) call(th *Thread, m *Method, receiver target.Value, args []target.Value) (target.Value, error) {
	if m.body == nil {
		return zeroValue(m.returns), nil
	}
	return m.body(vm, th, receiver, args)
}

// callVirtual calls a method from inside a running method, without
// suspending or resuming the thread.
func (vm *VM) callVirtual(th *Thread, receiver target.Value, name string, args ...target.Value) (target.Value, error) {
	if c, ok := receiver.Type().(*Class); ok {
		for _, m := range c.LookupMethods(name) {
			if !m.static && len(m.params) == len(args) {
				return vm.call(th, m, receiver, args)
			}
		}
	}
	return target.Null(), fmt.Errorf("no method %s on %s: %w", name, receiver.TypeName(), target.ErrInvalidReference)
}

// --- Frames ---

func (vm *VM) Frame(th target.Thread, index int) (target.Frame, error) {
	thread, ok := th.(*Thread)
	if !ok || thread.vm != vm {
		return nil, fmt.Errorf("thread %v: %w", th, target.ErrInvalidReference)
	}
	return thread.frameAt(index)
}

// --- Arrays ---

func (vm *VM) ArrayLength(array target.Value) (int32, error) {
	a, err := vm.arrayOf(array)
	if err != nil {
		return 0, err
	}
	return int32(a.Len()), nil
}

func (vm *VM) ReadArrayElement(array target.Value, index int32) (target.Value, error) {
	a, err := vm.arrayOf(array)
	if err != nil {
		return target.Null(), err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || int(index) >= len(a.elems) {
		return target.Null(), fmt.Errorf("index %d, length %d: %w", index, len(a.elems), target.ErrIndexOutOfBounds)
	}
	return a.elems[index], nil
}

func (vm *VM) WriteArrayElement(array target.Value, index int32, value target.Value) error {
	a, err := vm.arrayOf(array)
	if err != nil {
		return err
	}
	if err := vm.checkAssignable(value, a.class.Component); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || int(index) >= len(a.elems) {
		return fmt.Errorf("index %d, length %d: %w", index, len(a.elems), target.ErrIndexOutOfBounds)
	}
	a.elems[index] = value
	return nil
}

// --- Type relations ---

func (vm *VM) Superclass(t target.Type) (target.Type, bool, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, false, err
	}
	if c.Superclass == nil {
		return nil, false, nil
	}
	return c.Superclass, true, nil
}

func (vm *VM) Interfaces(t target.Type) ([]target.Type, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, err
	}
	result := make([]target.Type, len(c.Interfaces))
	for i, iface := range c.Interfaces {
		result[i] = iface
	}
	return result, nil
}

func (vm *VM) Subinterfaces(t target.Type) ([]target.Type, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, err
	}
	if c.kind != target.KindInterface {
		return nil, fmt.Errorf("%s is not an interface: %w", c.name, target.ErrInvalidType)
	}
	var result []target.Type
	for _, other := range vm.Classes.All() {
		if other.kind != target.KindInterface {
			continue
		}
		for _, parent := range other.Interfaces {
			if parent == c {
				result = append(result, other)
				break
			}
		}
	}
	return result, nil
}

func (vm *VM) ComponentType(t target.Type) (target.Type, error) {
	c, err := vm.classOf(t)
	if err != nil {
		return nil, err
	}
	if c.kind != target.KindArray {
		return nil, fmt.Errorf("%s is not an array type: %w", c.name, target.ErrInvalidType)
	}
	return c.Component, nil
}
