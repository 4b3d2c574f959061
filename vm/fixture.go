package vm

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Fixtures: debuggee snapshots described in TOML
// ---------------------------------------------------------------------------

// Fixture describes the classes, heap and threads of a debuggee.
type Fixture struct {
	Classes []ClassSpec  `toml:"class"`
	Objects []ObjectSpec `toml:"object"`
	Arrays  []ArraySpec  `toml:"array"`
	Threads []ThreadSpec `toml:"thread"`
}

// ClassSpec declares a class or interface.
type ClassSpec struct {
	Name       string       `toml:"name"`
	Kind       string       `toml:"kind"` // "class" (default) or "interface"
	Super      string       `toml:"super"`
	Interfaces []string     `toml:"interfaces"`
	Unprepared bool         `toml:"unprepared"`
	Fields     []FieldSpec  `toml:"field"`
	Methods    []MethodSpec `toml:"method"`
}

// FieldSpec declares a field. Value initializes static fields.
type FieldSpec struct {
	Name   string     `toml:"name"`
	Type   string     `toml:"type"`
	Static bool       `toml:"static"`
	Value  *ValueSpec `toml:"value"`
}

// MethodSpec declares a method. The body is at most one of: return a
// field of the receiver, return an argument, return a constant, or throw.
// Without a body the method returns the zero value of its return type.
type MethodSpec struct {
	Name    string     `toml:"name"`
	Params  []string   `toml:"params"`
	Returns string     `toml:"returns"`
	Static  bool       `toml:"static"`
	Field   string     `toml:"field"`
	Arg     *int       `toml:"arg"`
	Value   *ValueSpec `toml:"value"`
	Throws  string     `toml:"throws"`
	Message string     `toml:"message"`
}

// ValueSpec is a value: a typed literal, or a reference to a named object
// or array.
type ValueSpec struct {
	Type  string `toml:"type"`
	Value any    `toml:"value"`
	Ref   string `toml:"ref"`
}

// ObjectSpec allocates a named instance.
type ObjectSpec struct {
	Name   string               `toml:"name"`
	Class  string               `toml:"class"`
	Fields map[string]ValueSpec `toml:"fields"`
}

// ArraySpec allocates a named array.
type ArraySpec struct {
	Name      string      `toml:"name"`
	Component string      `toml:"component"`
	Elements  []ValueSpec `toml:"elements"`
}

// ThreadSpec creates a thread. Frames are listed innermost first.
type ThreadSpec struct {
	Name    string      `toml:"name"`
	Running bool        `toml:"running"`
	Frames  []FrameSpec `toml:"frame"`
}

// FrameSpec is one activation of a thread.
type FrameSpec struct {
	Class  string      `toml:"class"`
	Method string      `toml:"method"`
	This   string      `toml:"this"`
	Native bool        `toml:"native"`
	Locals []LocalSpec `toml:"local"`
}

// LocalSpec is a local variable of a frame.
type LocalSpec struct {
	Name  string     `toml:"name"`
	Type  string     `toml:"type"`
	Value *ValueSpec `toml:"value"`
}

// LoadFixture reads a fixture file and builds a VM from it.
func LoadFixture(path string) (*VM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	vm, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return vm, nil
}

// ParseFixture builds a VM from fixture TOML.
func ParseFixture(data []byte) (*VM, error) {
	var f Fixture
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	vm := NewVM()
	if err := vm.Apply(&f); err != nil {
		return nil, err
	}
	return vm, nil
}

// Named returns an object or array the fixture declared by name.
func (vm *VM) Named(name string) (target.Value, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	v, ok := vm.names[name]
	return v, ok
}

func (vm *VM) name(name string, v target.Value) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.names == nil {
		vm.names = make(map[string]target.Value)
	}
	if _, dup := vm.names[name]; dup {
		return fmt.Errorf("duplicate name %q", name)
	}
	vm.names[name] = v
	return nil
}

// Apply loads the fixture into vm.
func (vm *VM) Apply(f *Fixture) error {
	if err := vm.applyClasses(f.Classes); err != nil {
		return err
	}

	// Allocate first so that objects and arrays can refer to each other.
	objects := make([]*Object, len(f.Objects))
	for i, spec := range f.Objects {
		c := vm.Classes.Lookup(spec.Class)
		if c == nil || c.kind != target.KindClass {
			return fmt.Errorf("object %s: unknown class %q", spec.Name, spec.Class)
		}
		objects[i] = vm.NewObject(c)
		if err := vm.name(spec.Name, target.Object(objects[i])); err != nil {
			return err
		}
	}
	arrays := make([]*ArrayObject, len(f.Arrays))
	for i, spec := range f.Arrays {
		component, err := vm.TypeByName(spec.Component)
		if err != nil {
			return fmt.Errorf("array %s: %w", spec.Name, err)
		}
		arrays[i] = vm.NewArray(component)
		if err := vm.name(spec.Name, target.Array(arrays[i])); err != nil {
			return err
		}
	}

	for i, spec := range f.Arrays {
		a := arrays[i]
		for j, e := range spec.Elements {
			v, err := vm.specValue(e, a.class.Component)
			if err != nil {
				return fmt.Errorf("array %s[%d]: %w", spec.Name, j, err)
			}
			if err := vm.checkAssignable(v, a.class.Component); err != nil {
				return fmt.Errorf("array %s[%d]: %w", spec.Name, j, err)
			}
			a.elems = append(a.elems, v)
		}
	}
	for i, spec := range f.Objects {
		o := objects[i]
		for name, fs := range spec.Fields {
			fld := o.class.LookupField(name)
			if fld == nil || fld.static {
				return fmt.Errorf("object %s: no instance field %q in %s", spec.Name, name, o.class.name)
			}
			v, err := vm.specValue(fs, fld.typ)
			if err != nil {
				return fmt.Errorf("object %s.%s: %w", spec.Name, name, err)
			}
			if err := vm.checkAssignable(v, fld.typ); err != nil {
				return fmt.Errorf("object %s.%s: %w", spec.Name, name, err)
			}
			o.Set(fld, v)
		}
	}

	if err := vm.applyStatics(f.Classes); err != nil {
		return err
	}
	for _, spec := range f.Threads {
		if err := vm.applyThread(spec); err != nil {
			return fmt.Errorf("thread %s: %w", spec.Name, err)
		}
	}
	log.Infof("loaded fixture: %d classes, %d objects, %d arrays, %d threads",
		len(f.Classes), len(f.Objects), len(f.Arrays), len(f.Threads))
	return nil
}

func (vm *VM) applyClasses(specs []ClassSpec) error {
	classes := make([]*Class, len(specs))
	for i, spec := range specs {
		if vm.Classes.Has(spec.Name) {
			return fmt.Errorf("class %s already loaded", spec.Name)
		}
		switch spec.Kind {
		case "", "class":
			classes[i] = NewClass(spec.Name, nil)
		case "interface":
			classes[i] = NewInterface(spec.Name)
		default:
			return fmt.Errorf("class %s: unknown kind %q", spec.Name, spec.Kind)
		}
		vm.Classes.Register(classes[i])
	}

	for i, spec := range specs {
		c := classes[i]
		if c.kind == target.KindClass {
			c.Superclass = vm.ObjectClass
			if spec.Super != "" {
				super := vm.Classes.Lookup(spec.Super)
				if super == nil || super.kind != target.KindClass {
					return fmt.Errorf("class %s: unknown superclass %q", spec.Name, spec.Super)
				}
				c.Superclass = super
			}
		}
		for _, name := range spec.Interfaces {
			iface := vm.Classes.Lookup(name)
			if iface == nil || iface.kind != target.KindInterface {
				return fmt.Errorf("class %s: unknown interface %q", spec.Name, name)
			}
			c.Interfaces = append(c.Interfaces, iface)
		}
	}

	for i, spec := range specs {
		c := classes[i]
		for _, fs := range spec.Fields {
			t, err := vm.TypeByName(fs.Type)
			if err != nil {
				return fmt.Errorf("field %s.%s: %w", spec.Name, fs.Name, err)
			}
			c.AddField(fs.Name, t, fs.Static)
		}
		for _, ms := range spec.Methods {
			m, err := vm.methodFromSpec(c, ms)
			if err != nil {
				return fmt.Errorf("method %s.%s: %w", spec.Name, ms.Name, err)
			}
			c.AddMethod(m)
		}
	}

	// Prepared last: preparing refuses structural queries, not loading.
	for i, spec := range specs {
		if spec.Unprepared {
			classes[i].Unprepare()
		}
	}
	return nil
}

func (vm *VM) applyStatics(specs []ClassSpec) error {
	for _, spec := range specs {
		c := vm.Classes.Lookup(spec.Name)
		for _, fs := range spec.Fields {
			if fs.Value == nil {
				continue
			}
			if !fs.Static {
				return fmt.Errorf("field %s.%s: only static fields take a value", spec.Name, fs.Name)
			}
			var fld *Field
			for _, candidate := range c.Fields {
				if candidate.name == fs.Name {
					fld = candidate
				}
			}
			v, err := vm.specValue(*fs.Value, fld.typ)
			if err != nil {
				return fmt.Errorf("field %s.%s: %w", spec.Name, fs.Name, err)
			}
			if err := vm.checkAssignable(v, fld.typ); err != nil {
				return fmt.Errorf("field %s.%s: %w", spec.Name, fs.Name, err)
			}
			fld.SetStatic(v)
		}
	}
	return nil
}

func (vm *VM) methodFromSpec(c *Class, ms MethodSpec) (*Method, error) {
	params := make([]target.Type, len(ms.Params))
	for i, name := range ms.Params {
		t, err := vm.TypeByName(name)
		if err != nil {
			return nil, err
		}
		params[i] = t
	}
	var returns target.Type
	if ms.Returns != "" && ms.Returns != "void" {
		t, err := vm.TypeByName(ms.Returns)
		if err != nil {
			return nil, err
		}
		returns = t
	}

	var body NativeFunc
	switch {
	case ms.Field != "":
		if ms.Static {
			return nil, fmt.Errorf("static method cannot return an instance field")
		}
		name := ms.Field
		body = func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			o, err := vm.objectOf(receiver)
			if err != nil {
				return target.Null(), err
			}
			f := o.class.LookupField(name)
			if f == nil {
				return target.Null(), fmt.Errorf("no field %q: %w", name, target.ErrInvalidReference)
			}
			return o.Get(f), nil
		}
	case ms.Arg != nil:
		n := *ms.Arg
		if n < 0 || n >= len(params) {
			return nil, fmt.Errorf("argument %d out of range", n)
		}
		body = func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return args[n], nil
		}
	case ms.Value != nil:
		spec := *ms.Value
		body = func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			return vm.specValue(spec, returns)
		}
	case ms.Throws != "":
		name, message := ms.Throws, ms.Message
		body = func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error) {
			ex := vm.Classes.Lookup(name)
			if ex == nil || !ex.IsSubclassOf(vm.ThrowableClass) {
				return target.Null(), fmt.Errorf("%s is not throwable: %w", name, target.ErrInvalidType)
			}
			return target.Null(), vm.Throw(ex, message)
		}
	}
	return NewMethod(ms.Name, ms.Static, params, returns, body), nil
}

func (vm *VM) applyThread(spec ThreadSpec) error {
	th := vm.NewThread(spec.Name)
	// Pushed outermost first so that frame 0 ends up innermost.
	for i := len(spec.Frames) - 1; i >= 0; i-- {
		fs := spec.Frames[i]
		entry, err := vm.entryFromSpec(fs)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		th.Push(entry)
	}
	if spec.Running {
		th.setSuspended(false)
	}
	return nil
}

func (vm *VM) entryFromSpec(fs FrameSpec) (*StackEntry, error) {
	c := vm.Classes.Lookup(fs.Class)
	if c == nil {
		return nil, fmt.Errorf("unknown class %q", fs.Class)
	}
	var method *Method
	for _, m := range c.Methods {
		if m.name == fs.Method {
			method = m
			break
		}
	}
	if method == nil {
		method = c.AddMethod(NewMethod(fs.Method, fs.This == "", nil, nil, nil))
	}

	entry := &StackEntry{Method: method, This: target.Null(), Native: fs.Native}
	if fs.This != "" {
		this, ok := vm.Named(fs.This)
		if !ok {
			return nil, fmt.Errorf("unknown object %q", fs.This)
		}
		entry.This = this
	}
	for _, ls := range fs.Locals {
		t, err := vm.TypeByName(ls.Type)
		if err != nil {
			return nil, fmt.Errorf("local %s: %w", ls.Name, err)
		}
		v := zeroValue(t)
		if ls.Value != nil {
			if v, err = vm.specValue(*ls.Value, t); err != nil {
				return nil, fmt.Errorf("local %s: %w", ls.Name, err)
			}
			if err := vm.checkAssignable(v, t); err != nil {
				return nil, fmt.Errorf("local %s: %w", ls.Name, err)
			}
		}
		entry.Locals = append(entry.Locals, NewLocal(ls.Name, t, v))
	}
	return entry, nil
}

// specValue materializes a ValueSpec. The declared type supplies the type
// of untyped literals.
func (vm *VM) specValue(spec ValueSpec, declared target.Type) (target.Value, error) {
	if spec.Ref != "" {
		v, ok := vm.Named(spec.Ref)
		if !ok {
			return target.Null(), fmt.Errorf("unknown reference %q", spec.Ref)
		}
		return v, nil
	}
	typ := spec.Type
	if typ == "" && declared != nil {
		typ = declared.Name()
	}
	if typ == "null" || (spec.Value == nil && declared != nil && !declared.Kind().Primitive()) {
		return target.Null(), nil
	}

	switch typ {
	case "boolean":
		b, ok := spec.Value.(bool)
		if !ok {
			return target.Null(), fmt.Errorf("boolean literal is %T", spec.Value)
		}
		return target.Bool(b), nil
	case "char":
		s, ok := spec.Value.(string)
		if !ok || s == "" {
			return target.Null(), fmt.Errorf("char literal must be a non-empty string")
		}
		return target.Char(uint16([]rune(s)[0])), nil
	case "byte", "short", "int", "long":
		n, ok := spec.Value.(int64)
		if !ok {
			return target.Null(), fmt.Errorf("%s literal is %T", typ, spec.Value)
		}
		switch typ {
		case "byte":
			return target.Byte(int8(n)), nil
		case "short":
			return target.Short(int16(n)), nil
		case "int":
			return target.Int(int32(n)), nil
		}
		return target.Long(n), nil
	case "float", "double":
		var f float64
		switch n := spec.Value.(type) {
		case float64:
			f = n
		case int64:
			f = float64(n)
		default:
			return target.Null(), fmt.Errorf("%s literal is %T", typ, spec.Value)
		}
		if typ == "float" {
			return target.Float(float32(f)), nil
		}
		return target.Double(f), nil
	case target.StringTypeName, "string":
		s, ok := spec.Value.(string)
		if !ok {
			return target.Null(), fmt.Errorf("string literal is %T", spec.Value)
		}
		return vm.NewString(s), nil
	}
	return target.Null(), fmt.Errorf("cannot build a literal of type %q", typ)
}

//go:embed fixtures/demo.toml
var demoFixture []byte

// NewDemo returns a VM loaded with the built-in demo fixture: a program
// suspended inside demo.Point.move on thread "main".
func NewDemo() *VM {
	vm, err := ParseFixture(demoFixture)
	if err != nil {
		panic(fmt.Sprintf("demo fixture: %v", err))
	}
	return vm
}
