package vm

import (
	"fmt"
	"sync"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Threads and frames
// ---------------------------------------------------------------------------

// Thread is a debuggee thread with a fixed call stack. It implements
// target.Thread.
type Thread struct {
	id   uint64
	name string
	vm   *VM

	mu         sync.Mutex
	suspended  bool
	frames     []*StackEntry // index 0 is the innermost activation
	generation uint64        // bumped whenever the thread runs
}

func (t *Thread) ID() uint64   { return t.id }
func (t *Thread) Name() string { return t.name }

// Suspended reports whether the thread is currently suspended.
func (t *Thread) Suspended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspended
}

// Depth returns the number of frames on the thread's stack.
func (t *Thread) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.frames)
}

// Push adds a new innermost frame.
func (t *Thread) Push(e *StackEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append([]*StackEntry{e}, t.frames...)
	t.generation++
}

func (t *Thread) setSuspended(s bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspended != s {
		t.generation++
	}
	t.suspended = s
}

// run marks the thread as running for the duration of fn. Frames handed
// out before the call are stale afterwards.
func (t *Thread) run(fn func() (target.Value, error)) (target.Value, error) {
	t.mu.Lock()
	if !t.suspended {
		t.mu.Unlock()
		return target.Null(), fmt.Errorf("thread %s: %w", t.name, target.ErrThreadNotSuspended)
	}
	t.suspended = false
	t.generation++
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.suspended = true
		t.generation++
		t.mu.Unlock()
	}()
	return fn()
}

func (t *Thread) frameAt(index int) (*Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.suspended {
		return nil, fmt.Errorf("thread %s: %w", t.name, target.ErrThreadNotSuspended)
	}
	if index < 0 || index >= len(t.frames) {
		return nil, fmt.Errorf("frame %d of %d: %w", index, len(t.frames), target.ErrIndexOutOfBounds)
	}
	return &Frame{vm: t.vm, thread: t, entry: t.frames[index], generation: t.generation}, nil
}

// StackEntry is one activation on a thread's stack.
type StackEntry struct {
	Method *Method
	This   target.Value
	Native bool
	Locals []*Local
}

// Local is a local variable slot. It implements target.Variable.
type Local struct {
	name  string
	typ   target.Type
	value target.Value
}

// NewLocal creates a local holding v.
func NewLocal(name string, typ target.Type, v target.Value) *Local {
	return &Local{name: name, typ: typ, value: v}
}

func (l *Local) Name() string      { return l.name }
func (l *Local) Type() target.Type { return l.typ }

// Frame is a view of a StackEntry that is valid until its thread runs
// again. It implements target.Frame.
type Frame struct {
	vm         *VM
	thread     *Thread
	entry      *StackEntry
	generation uint64
}

func (f *Frame) check() error {
	f.thread.mu.Lock()
	defer f.thread.mu.Unlock()
	if f.generation != f.thread.generation {
		return fmt.Errorf("frame of thread %s: %w", f.thread.name, target.ErrStaleFrame)
	}
	return nil
}

// ThisObject returns the receiver, or Null in a static context.
func (f *Frame) ThisObject() (target.Value, error) {
	if err := f.check(); err != nil {
		return target.Null(), err
	}
	return f.entry.This, nil
}

// DeclaringType is the class declaring the executing method.
func (f *Frame) DeclaringType() target.Type {
	if f.entry.Method == nil || f.entry.Method.declaring == nil {
		return nil
	}
	return f.entry.Method.declaring
}

// VariableByName finds a visible local. Native frames carry no variable
// information.
func (f *Frame) VariableByName(name string) (target.Variable, bool, error) {
	if err := f.check(); err != nil {
		return nil, false, err
	}
	if f.entry.Native {
		return nil, false, fmt.Errorf("native frame: %w", target.ErrAbsentInformation)
	}
	for _, l := range f.entry.Locals {
		if l.name == name {
			return l, true, nil
		}
	}
	return nil, false, nil
}

// Variables returns every visible local.
func (f *Frame) Variables() ([]*Local, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if f.entry.Native {
		return nil, fmt.Errorf("native frame: %w", target.ErrAbsentInformation)
	}
	return f.entry.Locals, nil
}

func (f *Frame) local(v target.Variable) (*Local, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	l, ok := v.(*Local)
	if !ok {
		return nil, fmt.Errorf("variable %s: %w", v.Name(), target.ErrInvalidReference)
	}
	for _, own := range f.entry.Locals {
		if own == l {
			return l, nil
		}
	}
	return nil, fmt.Errorf("variable %s not in frame: %w", v.Name(), target.ErrInvalidReference)
}

// ReadVariable returns the current value of v.
func (f *Frame) ReadVariable(v target.Variable) (target.Value, error) {
	l, err := f.local(v)
	if err != nil {
		return target.Null(), err
	}
	f.thread.mu.Lock()
	defer f.thread.mu.Unlock()
	return l.value, nil
}

// WriteVariable stores value into v after checking it against the
// variable's declared type.
func (f *Frame) WriteVariable(v target.Variable, value target.Value) error {
	l, err := f.local(v)
	if err != nil {
		return err
	}
	if err := f.vm.checkAssignable(value, l.typ); err != nil {
		return fmt.Errorf("variable %s: %w", l.name, err)
	}
	f.thread.mu.Lock()
	defer f.thread.mu.Unlock()
	l.value = value
	return nil
}
