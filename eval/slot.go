package eval

import (
	"errors"
	"fmt"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Slots: readable (and sometimes writable) operand locations
// ---------------------------------------------------------------------------

// SlotKind identifies the variant of a Slot.
type SlotKind int

const (
	SlotConstant SlotKind = iota
	SlotInstanceField
	SlotStaticField
	SlotLocal
	SlotElement
)

func (k SlotKind) String() string {
	switch k {
	case SlotConstant:
		return "constant"
	case SlotInstanceField:
		return "field"
	case SlotStaticField:
		return "static field"
	case SlotLocal:
		return "local variable"
	case SlotElement:
		return "array element"
	}
	return "slot"
}

// Slot is an lvalue. A Slot is created for one operand reference during one
// evaluation and borrows, never owns, the remote objects it refers to.
type Slot interface {
	Kind() SlotKind
	Read() (target.Value, error)
	// Write stores v. Constants always fail with a read-only error.
	Write(v target.Value) error
	String() string
}

// Constant wraps an already materialized value.
func Constant(v target.Value) Slot {
	return constantSlot{value: v}
}

type constantSlot struct {
	value target.Value
}

func (s constantSlot) Kind() SlotKind              { return SlotConstant }
func (s constantSlot) Read() (target.Value, error) { return s.value, nil }
func (s constantSlot) Write(target.Value) error    { return errReadOnly }
func (s constantSlot) String() string              { return s.value.Describe() }

// --- Fields ---

type fieldSlot struct {
	ev    *Evaluator
	obj   target.Value
	field target.Field
}

func (s *fieldSlot) Kind() SlotKind {
	if s.field.Static() {
		return SlotStaticField
	}
	return SlotInstanceField
}

func (s *fieldSlot) receiver() target.Value {
	if s.field.Static() {
		return target.Null()
	}
	return s.obj
}

func (s *fieldSlot) Read() (target.Value, error) {
	v, err := s.ev.bridge.ReadField(s.receiver(), s.field)
	if err != nil {
		return target.Null(), remote(err, "reading field %s", s)
	}
	return v, nil
}

func (s *fieldSlot) Write(v target.Value) error {
	if err := s.ev.bridge.WriteField(s.receiver(), s.field, v); err != nil {
		return writeFailed(err, "writing field %s", s)
	}
	return nil
}

func (s *fieldSlot) String() string {
	return s.field.DeclaringType().Name() + "." + s.field.Name()
}

// Field resolves name on the object parent. A missing field, or a parent
// that is not an object, yields a SlotNotFound error. On arrays the only
// field is the read-only length.
func (e *Evaluator) Field(parent target.Value, name string) (Slot, error) {
	switch parent.Tag() {
	case target.TagObject:
	case target.TagArray:
		if name != "length" {
			return nil, notFound("array has no field %q", name)
		}
		n, err := e.bridge.ArrayLength(parent)
		if err != nil {
			return nil, remote(err, "reading length of %s", parent.Describe())
		}
		return Constant(target.Int(n)), nil
	default:
		return nil, notFound("cannot access field %q of %s", name, parent.Describe())
	}

	f, ok, err := e.bridge.FieldByName(parent.Type(), name)
	if err != nil {
		return nil, remote(err, "looking up field %q on %s", name, parent.TypeName())
	}
	if !ok {
		return nil, notFound("no field %q in %s", name, parent.TypeName())
	}
	return &fieldSlot{ev: e, obj: parent, field: f}, nil
}

// StaticField resolves a static field declared on (or inherited by) t.
func (e *Evaluator) StaticField(t target.Type, name string) (Slot, error) {
	f, ok, err := e.bridge.FieldByName(t, name)
	if err != nil {
		return nil, remote(err, "looking up field %q on %s", name, t.Name())
	}
	if !ok || !f.Static() {
		return nil, notFound("no static field %q in %s", name, t.Name())
	}
	return &fieldSlot{ev: e, field: f}, nil
}

// --- Local variables ---

type localSlot struct {
	ev   *Evaluator
	name string
}

func (s *localSlot) Kind() SlotKind { return SlotLocal }

func (s *localSlot) lookup() (target.Frame, target.Variable, error) {
	f, err := s.ev.frame()
	if err != nil {
		return nil, nil, err
	}
	v, ok, err := f.VariableByName(s.name)
	if err != nil {
		return nil, nil, remote(err, "looking up variable %q", s.name)
	}
	if !ok {
		return nil, nil, notFound("no variable %q in frame 0", s.name)
	}
	return f, v, nil
}

func (s *localSlot) Read() (target.Value, error) {
	f, v, err := s.lookup()
	if err != nil {
		return target.Null(), err
	}
	val, err := f.ReadVariable(v)
	if err != nil {
		return target.Null(), remote(err, "reading variable %q", s.name)
	}
	return val, nil
}

func (s *localSlot) Write(val target.Value) error {
	f, v, err := s.lookup()
	if err != nil {
		return err
	}
	if err := f.WriteVariable(v, val); err != nil {
		return writeFailed(err, "writing variable %q", s.name)
	}
	return nil
}

func (s *localSlot) String() string { return s.name }

// Local resolves a variable visible in the innermost frame. Frames without
// debug information (native methods) fail with a RemoteFailure rather than
// reporting the variable as absent.
func (e *Evaluator) Local(name string) (Slot, error) {
	s := &localSlot{ev: e, name: name}
	if _, _, err := s.lookup(); err != nil {
		return nil, err
	}
	return s, nil
}

// --- Array elements ---

type elementSlot struct {
	ev    *Evaluator
	array target.Value
	index int32
}

func (s *elementSlot) Kind() SlotKind { return SlotElement }

func (s *elementSlot) Read() (target.Value, error) {
	v, err := s.ev.bridge.ReadArrayElement(s.array, s.index)
	if err != nil {
		return target.Null(), remote(err, "reading %s", s)
	}
	return v, nil
}

func (s *elementSlot) Write(v target.Value) error {
	if err := s.ev.bridge.WriteArrayElement(s.array, s.index, v); err != nil {
		return writeFailed(err, "writing %s", s)
	}
	return nil
}

func (s *elementSlot) String() string {
	return fmt.Sprintf("%s[%d]", s.array.Describe(), s.index)
}

// Element returns the slot array[index]. The array must be Array-tagged and
// the index int-tagged; anything else fails before any bridge call.
func (e *Evaluator) Element(array, index target.Value) (Slot, error) {
	if array.Tag() != target.TagArray {
		return nil, mismatch(OpInvalid, "indexed value is not an array", array, index)
	}
	if index.Tag() != target.TagInt {
		return nil, mismatch(OpInvalid, "array index is not an int", array, index)
	}
	return &elementSlot{ev: e, array: array, index: int32(index.Int64())}, nil
}

// ReadSlot reads s, wrapping non-evaluation failures as RemoteFailure.
func ReadSlot(s Slot) (target.Value, error) {
	v, err := s.Read()
	if err != nil {
		var evalErr *Error
		if !errors.As(err, &evalErr) {
			err = remote(err, "reading %s", s)
		}
		return target.Null(), err
	}
	return v, nil
}
