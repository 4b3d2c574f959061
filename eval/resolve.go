package eval

import (
	"fmt"
	"strings"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Overload resolution
// ---------------------------------------------------------------------------

type match int

const (
	notMatch match = iota
	assignableMatch
	exactMatch
)

// Resolve picks the unique method among candidates whose formal parameters
// accept args. A candidate whose every argument matches its parameter type
// exactly wins immediately. Otherwise exactly one candidate may accept the
// arguments by assignability; two is an AmbiguousOverload, none a
// NoMatchingOverload.
func (e *Evaluator) Resolve(name string, candidates []target.Method, args []target.Value) (target.Method, error) {
	var found []target.Method
	for _, m := range candidates {
		res, err := e.matchMethod(m, args)
		if err != nil {
			return nil, err
		}
		switch res {
		case exactMatch:
			log.Debugf("resolved %s to %s (exact)", name, m.Signature())
			return m, nil
		case assignableMatch:
			found = append(found, m)
		}
	}

	switch len(found) {
	case 0:
		return nil, &Error{
			Kind: KindNoMatchingOverload,
			Msg:  fmt.Sprintf("no method %s matches arguments (%s)", name, describeArgs(args)),
		}
	case 1:
		log.Debugf("resolved %s to %s (assignable)", name, found[0].Signature())
		return found[0], nil
	}
	sigs := make([]string, len(found))
	for i, m := range found {
		sigs[i] = m.Signature()
	}
	return nil, &Error{
		Kind:     KindAmbiguousOverload,
		Msg:      fmt.Sprintf("multiple methods matched %s(%s)", name, describeArgs(args)),
		Operands: sigs,
	}
}

func (e *Evaluator) matchMethod(m target.Method, args []target.Value) (match, error) {
	formals, err := e.bridge.ArgumentTypes(m)
	if err != nil {
		return notMatch, remote(err, "argument types of %s", m.Signature())
	}
	if len(formals) != len(args) {
		return notMatch, nil
	}

	result := exactMatch
	for i, arg := range args {
		formal := formals[i]
		if arg.IsNull() {
			if formal.Kind().Primitive() {
				return notMatch, nil
			}
			// Null fills any reference parameter without being exact.
			result = assignableMatch
			continue
		}
		if target.SameType(arg.Type(), formal) {
			continue
		}
		ok, err := e.Assignable(arg.Type(), formal)
		if err != nil {
			return notMatch, err
		}
		if !ok {
			return notMatch, nil
		}
		result = assignableMatch
	}
	return result, nil
}

// Assignable reports whether a value of type from may be passed where to is
// expected. Primitives are only assignable to the identical primitive; no
// numeric widening takes place.
func (e *Evaluator) Assignable(from, to target.Type) (bool, error) {
	return e.assignable(from, to, map[string]bool{})
}

func (e *Evaluator) assignable(from, to target.Type, seen map[string]bool) (bool, error) {
	if target.SameType(from, to) {
		return true, nil
	}
	fk, tk := from.Kind(), to.Kind()
	if fk.Primitive() || tk.Primitive() {
		return false, nil
	}
	if seen[from.Name()] {
		return false, nil
	}
	seen[from.Name()] = true

	switch fk {
	case target.KindArray:
		if tk != target.KindArray {
			return to.Name() == target.RootTypeName, nil
		}
		fc, err := e.componentType(from)
		if err != nil {
			return false, err
		}
		tc, err := e.componentType(to)
		if err != nil {
			return false, err
		}
		switch {
		case fc.Kind().Primitive() && tc.Kind().Primitive():
			return target.SameType(fc, tc), nil
		case !fc.Kind().Primitive() && !tc.Kind().Primitive():
			return e.assignable(fc, tc, seen)
		}
		return false, nil

	case target.KindClass:
		super, ok, err := e.bridge.Superclass(from)
		if err != nil {
			return false, remote(err, "superclass of %s", from.Name())
		}
		if ok {
			if yes, err := e.assignable(super, to, seen); err != nil || yes {
				return yes, err
			}
		}
		return e.anyAssignable(from, to, seen, e.bridge.Interfaces, "interfaces")

	case target.KindInterface:
		if yes, err := e.anyAssignable(from, to, seen, e.bridge.Subinterfaces, "subinterfaces"); err != nil || yes {
			return yes, err
		}
		// The interfaces an interface extends.
		return e.anyAssignable(from, to, seen, e.bridge.Interfaces, "superinterfaces")
	}
	return false, nil
}

func (e *Evaluator) anyAssignable(from, to target.Type, seen map[string]bool, related func(target.Type) ([]target.Type, error), what string) (bool, error) {
	types, err := related(from)
	if err != nil {
		return false, remote(err, "%s of %s", what, from.Name())
	}
	for _, t := range types {
		yes, err := e.assignable(t, to, seen)
		if err != nil || yes {
			return yes, err
		}
	}
	return false, nil
}

func (e *Evaluator) componentType(t target.Type) (target.Type, error) {
	c, err := e.bridge.ComponentType(t)
	if err != nil {
		return nil, remote(err, "component type of %s", t.Name())
	}
	return c, nil
}

func describeArgs(args []target.Value) string {
	names := make([]string, len(args))
	for i, a := range args {
		names[i] = a.TypeName()
	}
	return strings.Join(names, ", ")
}
