package vm

import (
	"fmt"
	"sync"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Debugger: thread control and inspection for debug clients
// ---------------------------------------------------------------------------

// DebugServer is the debugger side of a VM: it suspends and resumes
// threads, walks call stacks and lists variables, and reports what happens
// as DebugEvents.
type DebugServer struct {
	vm        *VM
	active    bool
	eventChan chan DebugEvent
	mu        sync.Mutex
}

// ---------------------------------------------------------------------------
// Debug events for clients
// ---------------------------------------------------------------------------

// DebugEvent represents a debugging event sent to clients.
type DebugEvent struct {
	Type     string          // "stopped", "continued", "exception"
	Reason   string          // Additional context about the event
	ThreadID uint64          // Thread the event concerns, 0 for all
	Location *SourceLocation // Current location (if applicable)
}

// SourceLocation represents the method a thread is executing.
type SourceLocation struct {
	Class  string // Class name
	Method string // Method signature
}

// StackFrame represents a single frame in the call stack.
type StackFrame struct {
	ID     int    // Frame index, 0 is the innermost
	Method string // Method signature
	Class  string // Declaring class name
	Native bool   // True if the frame has no variable information
}

// Variable represents a variable for inspection.
type Variable struct {
	Name  string // Variable name
	Value string // String representation of value
	Type  string // Type name
}

// ---------------------------------------------------------------------------
// DebugServer creation and lifecycle
// ---------------------------------------------------------------------------

// NewDebugServer creates a new debug server attached to the given VM.
func NewDebugServer(vm *VM) *DebugServer {
	return &DebugServer{
		vm:        vm,
		active:    false,
		eventChan: make(chan DebugEvent, 10),
	}
}

// Activate enables the debug server.
func (d *DebugServer) Activate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = true
}

// Deactivate disables the debug server and resumes every thread.
func (d *DebugServer) Deactivate() {
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
	for _, th := range d.vm.Threads() {
		th.setSuspended(false)
	}
}

// IsActive returns whether the debug server is enabled.
func (d *DebugServer) IsActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Events returns the event channel for receiving debug events.
func (d *DebugServer) Events() <-chan DebugEvent {
	return d.eventChan
}

// ---------------------------------------------------------------------------
// Execution control
// ---------------------------------------------------------------------------

func (d *DebugServer) thread(id uint64) (*Thread, error) {
	th, ok := d.vm.Thread(id)
	if !ok {
		return nil, fmt.Errorf("no thread %d: %w", id, target.ErrInvalidReference)
	}
	return th, nil
}

// Suspend suspends the thread with the given id.
func (d *DebugServer) Suspend(threadID uint64, reason string) error {
	if !d.IsActive() {
		return fmt.Errorf("debug server is not active")
	}
	th, err := d.thread(threadID)
	if err != nil {
		return err
	}
	th.setSuspended(true)
	d.sendEvent(DebugEvent{
		Type:     "stopped",
		Reason:   reason,
		ThreadID: threadID,
		Location: d.location(th),
	})
	return nil
}

// Resume continues a suspended thread.
func (d *DebugServer) Resume(threadID uint64) error {
	th, err := d.thread(threadID)
	if err != nil {
		return err
	}
	th.setSuspended(false)
	d.sendEvent(DebugEvent{
		Type:     "continued",
		Reason:   "resume",
		ThreadID: threadID,
	})
	return nil
}

// IsPaused returns whether the thread is currently suspended.
func (d *DebugServer) IsPaused(threadID uint64) bool {
	th, err := d.thread(threadID)
	return err == nil && th.Suspended()
}

func (d *DebugServer) location(th *Thread) *SourceLocation {
	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.frames) == 0 || th.frames[0].Method == nil {
		return nil
	}
	m := th.frames[0].Method
	return &SourceLocation{Class: m.declaring.Name(), Method: m.Signature()}
}

// ---------------------------------------------------------------------------
// Call stack inspection
// ---------------------------------------------------------------------------

// GetCallStack returns the call stack of a suspended thread, innermost
// frame first.
func (d *DebugServer) GetCallStack(threadID uint64) ([]StackFrame, error) {
	th, err := d.thread(threadID)
	if err != nil {
		return nil, err
	}
	if !th.Suspended() {
		return nil, fmt.Errorf("thread %s: %w", th.name, target.ErrThreadNotSuspended)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	frames := make([]StackFrame, 0, len(th.frames))
	for i, entry := range th.frames {
		sf := StackFrame{ID: i, Native: entry.Native}
		if entry.Method != nil {
			sf.Method = entry.Method.Signature()
			if entry.Method.declaring != nil {
				sf.Class = entry.Method.declaring.Name()
			}
		}
		frames = append(frames, sf)
	}
	return frames, nil
}

// ---------------------------------------------------------------------------
// Variable inspection
// ---------------------------------------------------------------------------

// GetVariables returns the variables visible in the specified stack frame:
// the receiver as "this", the locals, then the receiver's fields as
// "this.name".
func (d *DebugServer) GetVariables(threadID uint64, frameID int) ([]Variable, error) {
	th, err := d.thread(threadID)
	if err != nil {
		return nil, err
	}
	frame, err := th.frameAt(frameID)
	if err != nil {
		return nil, err
	}
	locals, err := frame.Variables()
	if err != nil {
		return nil, err
	}

	var variables []Variable
	this := frame.entry.This
	if !this.IsNull() {
		variables = append(variables, Variable{
			Name:  "this",
			Value: d.formatValue(this),
			Type:  d.typeOf(this),
		})
	}

	th.mu.Lock()
	for _, l := range locals {
		variables = append(variables, Variable{
			Name:  l.name,
			Value: d.formatValue(l.value),
			Type:  l.typ.Name(),
		})
	}
	th.mu.Unlock()

	if o, ok := this.Ref().(*Object); ok {
		for _, f := range o.class.AllFields() {
			v := o.Get(f)
			variables = append(variables, Variable{
				Name:  "this." + f.name,
				Value: d.formatValue(v),
				Type:  f.typ.Name(),
			})
		}
	}
	return variables, nil
}

// GetVariableValue returns the value of a specific variable in a frame.
func (d *DebugServer) GetVariableValue(threadID uint64, frameID int, name string) (target.Value, bool) {
	th, err := d.thread(threadID)
	if err != nil {
		return target.Null(), false
	}
	frame, err := th.frameAt(frameID)
	if err != nil {
		return target.Null(), false
	}
	if name == "this" {
		return frame.entry.This, true
	}
	v, ok, err := frame.VariableByName(name)
	if err != nil || !ok {
		return target.Null(), false
	}
	val, err := frame.ReadVariable(v)
	return val, err == nil
}

// ---------------------------------------------------------------------------
// Helper methods
// ---------------------------------------------------------------------------

// formatValue returns a string representation of a value for display.
func (d *DebugServer) formatValue(v target.Value) string {
	switch v.Tag() {
	case target.TagNull:
		return "null"
	case target.TagText:
		return fmt.Sprintf("%q", v.Str())
	case target.TagObject:
		return fmt.Sprintf("a %s", v.TypeName())
	case target.TagArray:
		n, _ := d.vm.ArrayLength(v)
		return fmt.Sprintf("%s[%d]", v.TypeName()[:len(v.TypeName())-2], n)
	case target.TagBool:
		return fmt.Sprintf("%t", v.Bool())
	case target.TagChar:
		return fmt.Sprintf("%q", rune(v.Char()))
	case target.TagFloat, target.TagDouble:
		return fmt.Sprintf("%g", v.Float64())
	}
	return fmt.Sprintf("%d", v.Int64())
}

// typeOf returns the type name for a value.
func (d *DebugServer) typeOf(v target.Value) string {
	return v.TypeName()
}

// sendEvent sends a debug event to listeners.
func (d *DebugServer) sendEvent(event DebugEvent) {
	select {
	case d.eventChan <- event:
	default:
		// Channel full, drop event
	}
}

// NotifyException sends an exception event to clients.
func (d *DebugServer) NotifyException(threadID uint64, message string) {
	d.sendEvent(DebugEvent{
		Type:     "exception",
		Reason:   message,
		ThreadID: threadID,
	})
}
