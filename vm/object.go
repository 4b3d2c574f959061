package vm

import (
	"strings"
	"sync"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Fields and methods
// ---------------------------------------------------------------------------

// Field is a field declared by a class. Static fields hold their value
// directly; instance field values live in each Object.
type Field struct {
	name      string
	typ       target.Type
	declaring *Class
	static    bool

	mu    sync.Mutex
	value target.Value // static fields only
}

func (f *Field) Name() string               { return f.name }
func (f *Field) Type() target.Type          { return f.typ }
func (f *Field) DeclaringType() target.Type { return f.declaring }
func (f *Field) Static() bool               { return f.static }

// SetStatic stores the value of a static field without type checking.
func (f *Field) SetStatic(v target.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
}

func (f *Field) staticValue() target.Value {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// NativeFunc implements a method inside the debuggee. A method that throws
// returns a *Thrown error.
type NativeFunc func(vm *VM, th *Thread, receiver target.Value, args []target.Value) (target.Value, error)

// Method is a method declared by a class.
type Method struct {
	name      string
	declaring *Class
	static    bool
	params    []target.Type
	returns   target.Type // nil for void
	body      NativeFunc
}

// NewMethod creates a method. A nil body returns the zero value of the
// return type.
func NewMethod(name string, static bool, params []target.Type, returns target.Type, body NativeFunc) *Method {
	return &Method{name: name, static: static, params: params, returns: returns, body: body}
}

func (m *Method) Name() string               { return m.name }
func (m *Method) DeclaringType() target.Type { return m.declaring }
func (m *Method) Static() bool               { return m.static }

// Params returns the formal parameter types.
func (m *Method) Params() []target.Type { return m.params }

// Signature renders the method as Class.name(T1, T2).
func (m *Method) Signature() string {
	var b strings.Builder
	if m.declaring != nil {
		b.WriteString(m.declaring.name)
		b.WriteByte('.')
	}
	b.WriteString(m.name)
	b.WriteByte('(')
	b.WriteString(m.paramKey())
	b.WriteByte(')')
	return b.String()
}

func (m *Method) paramKey() string {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Object is an instance of a class. It implements target.Ref.
type Object struct {
	id    uint64
	class *Class

	mu     sync.Mutex
	fields map[*Field]target.Value
}

func (o *Object) ID() uint64        { return o.id }
func (o *Object) Type() target.Type { return o.class }

// Class returns the object's runtime class.
func (o *Object) Class() *Class { return o.class }

// Get returns the value of an instance field, or its zero value if unset.
func (o *Object) Get(f *Field) target.Value {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok := o.fields[f]; ok {
		return v
	}
	return zeroValue(f.typ)
}

// Set stores an instance field without type checking.
func (o *Object) Set(f *Field, v target.Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[f] = v
}

// ArrayObject is an array instance.
type ArrayObject struct {
	id    uint64
	class *Class

	mu    sync.Mutex
	elems []target.Value
}

func (a *ArrayObject) ID() uint64        { return a.id }
func (a *ArrayObject) Type() target.Type { return a.class }

// Len returns the number of elements.
func (a *ArrayObject) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.elems)
}

// StringObject is an immutable string instance.
type StringObject struct {
	id    uint64
	class *Class
	value string
}

func (s *StringObject) ID() uint64        { return s.id }
func (s *StringObject) Type() target.Type { return s.class }

// String returns the string content.
func (s *StringObject) String() string { return s.value }

// zeroValue returns the default value of a field or element of type t.
func zeroValue(t target.Type) target.Value {
	if t == nil {
		return target.Null()
	}
	switch t.Kind() {
	case target.KindBoolean:
		return target.Bool(false)
	case target.KindByte:
		return target.Byte(0)
	case target.KindShort:
		return target.Short(0)
	case target.KindChar:
		return target.Char(0)
	case target.KindInt:
		return target.Int(0)
	case target.KindLong:
		return target.Long(0)
	case target.KindFloat:
		return target.Float(0)
	case target.KindDouble:
		return target.Double(0)
	}
	return target.Null()
}
