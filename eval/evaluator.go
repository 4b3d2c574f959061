// Package eval evaluates expression operands and operators against values
// that live inside a suspended debuggee.
//
// An Evaluator is bound to one bridge and one suspended thread. It resolves
// operand references to Slots, parses literals, resolves and invokes remote
// methods, and applies unary, binary and ternary operators. It performs no
// short-circuiting, caching or synchronization of its own: every remote
// round trip goes straight to the bridge and blocks until it completes.
package eval

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/rexpr/target"
)

var log = commonlog.GetLogger("rexpr.eval")

// Evaluator evaluates against frame 0 of one suspended thread. It is not
// safe for concurrent use.
type Evaluator struct {
	bridge target.Bridge
	thread target.Thread
}

// New returns an Evaluator for thread th of the debuggee behind bridge.
func New(bridge target.Bridge, th target.Thread) *Evaluator {
	return &Evaluator{bridge: bridge, thread: th}
}

// Bridge returns the bridge the evaluator talks to.
func (e *Evaluator) Bridge() target.Bridge { return e.bridge }

// Thread returns the thread the evaluator operates on.
func (e *Evaluator) Thread() target.Thread { return e.thread }

// frame fetches the innermost frame. It is fetched again for every access
// since invocations resume the thread and invalidate earlier frames.
func (e *Evaluator) frame() (target.Frame, error) {
	f, err := e.bridge.Frame(e.thread, 0)
	if err != nil {
		return nil, remote(err, "frame 0 of thread %s", e.thread.Name())
	}
	return f, nil
}

// This returns the receiver of the innermost frame, or Null in a static
// context.
func (e *Evaluator) This() (target.Value, error) {
	f, err := e.frame()
	if err != nil {
		return target.Null(), err
	}
	this, err := f.ThisObject()
	if err != nil {
		return target.Null(), remote(err, "reading this")
	}
	return this, nil
}

// mirror creates a debuggee copy of a locally built string.
func (e *Evaluator) mirror(s string) (target.Value, error) {
	v, err := e.bridge.MirrorString(s)
	if err != nil {
		return target.Null(), remote(err, "mirroring string")
	}
	return v, nil
}

// DeclaringType returns the type whose method the innermost frame executes.
func (e *Evaluator) DeclaringType() (target.Type, error) {
	f, err := e.frame()
	if err != nil {
		return nil, err
	}
	return f.DeclaringType(), nil
}
