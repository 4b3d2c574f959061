package eval

import (
	"github.com/chazu/rexpr/target"
)

// Invoke calls the method name on receiver in the evaluator's thread. The
// overload is chosen by Resolve among the methods visible on the receiver's
// runtime type. Failures are never retried: the call may already have had
// side effects in the debuggee.
func (e *Evaluator) Invoke(receiver target.Value, name string, args []target.Value) (target.Value, error) {
	switch receiver.Tag() {
	case target.TagObject, target.TagText, target.TagArray:
	case target.TagNull:
		return target.Null(), mismatch(OpInvalid, "cannot invoke "+name+" on null", receiver)
	default:
		return target.Null(), mismatch(OpInvalid, "cannot invoke "+name+" on a primitive", receiver)
	}
	return e.invoke(receiver.Type(), receiver, name, args)
}

// InvokeStatic calls the static method name declared on (or inherited by) t.
func (e *Evaluator) InvokeStatic(t target.Type, name string, args []target.Value) (target.Value, error) {
	return e.invoke(t, target.Null(), name, args)
}

func (e *Evaluator) invoke(t target.Type, receiver target.Value, name string, args []target.Value) (target.Value, error) {
	candidates, err := e.bridge.MethodsByName(t, name)
	if err != nil {
		return target.Null(), remote(err, "looking up method %s on %s", name, t.Name())
	}
	if receiver.IsNull() {
		candidates = staticOnly(candidates)
	}
	m, err := e.Resolve(name, candidates, args)
	if err != nil {
		return target.Null(), err
	}

	log.Debugf("invoking %s on thread %s", m.Signature(), e.thread.Name())
	result, err := e.bridge.Invoke(e.thread, receiver, m, args)
	if err != nil {
		return target.Null(), remote(err, "invoking %s", m.Signature())
	}
	return result, nil
}

func staticOnly(methods []target.Method) []target.Method {
	var out []target.Method
	for _, m := range methods {
		if m.Static() {
			out = append(out, m)
		}
	}
	return out
}
