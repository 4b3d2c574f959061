package expr

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/target"
)

var log = commonlog.GetLogger("rexpr.expr")

// HandleResolver returns the value pinned under a handle id.
type HandleResolver func(id string) (target.Value, bool)

// Walker evaluates expression trees with an Evaluator. Operands are
// evaluated left to right. The right operand of && and || and the branches
// of ?: are only evaluated when their value is needed.
type Walker struct {
	ev      *eval.Evaluator
	handles HandleResolver
}

// NewWalker returns a walker driving ev. handles may be nil.
func NewWalker(ev *eval.Evaluator, handles HandleResolver) *Walker {
	return &Walker{ev: ev, handles: handles}
}

// Evaluator returns the evaluator the walker drives.
func (w *Walker) Evaluator() *eval.Evaluator { return w.ev }

// Value evaluates n and reads the resulting slot.
func (w *Walker) Value(n *Node) (target.Value, error) {
	s, err := w.Eval(n)
	if err != nil {
		return target.Null(), err
	}
	return eval.ReadSlot(s)
}

func malformed(n *Node, format string, args ...any) *eval.Error {
	return &eval.Error{Kind: eval.KindParse, Msg: fmt.Sprintf("%s node: ", n.Kind) + fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *eval.Error {
	return &eval.Error{Kind: eval.KindSlotNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Eval evaluates n to a slot.
func (w *Walker) Eval(n *Node) (eval.Slot, error) {
	if n == nil {
		return nil, &eval.Error{Kind: eval.KindParse, Msg: "missing node"}
	}
	switch n.Kind {
	case KindLiteral:
		return w.literal(n)
	case KindName:
		return w.name(n.Name)
	case KindThis:
		this, err := w.ev.This()
		if err != nil {
			return nil, err
		}
		return eval.Constant(this), nil
	case KindHandle:
		if w.handles == nil {
			return nil, notFound("no handle %s", n.Name)
		}
		v, ok := w.handles(n.Name)
		if !ok {
			return nil, notFound("no handle %s", n.Name)
		}
		return eval.Constant(v), nil
	case KindField:
		if err := arity(n, 1); err != nil {
			return nil, err
		}
		obj, err := w.Value(n.Children[0])
		if err != nil {
			return nil, err
		}
		return w.ev.Field(obj, n.Name)
	case KindStatic:
		t, err := w.typeNamed(n.Text)
		if err != nil {
			return nil, err
		}
		return w.ev.StaticField(t, n.Name)
	case KindIndex:
		if err := arity(n, 2); err != nil {
			return nil, err
		}
		array, err := w.Value(n.Children[0])
		if err != nil {
			return nil, err
		}
		index, err := w.Value(n.Children[1])
		if err != nil {
			return nil, err
		}
		return w.ev.Element(array, index)
	case KindCall:
		return w.call(n)
	case KindUnary:
		if err := arity(n, 1); err != nil {
			return nil, err
		}
		op, err := operator(n)
		if err != nil {
			return nil, err
		}
		operand, err := w.Eval(n.Children[0])
		if err != nil {
			return nil, err
		}
		return w.ev.Unary(op, operand)
	case KindBinary, KindAssign:
		return w.binary(n)
	case KindTernary:
		return w.ternary(n)
	}
	return nil, malformed(n, "unknown kind")
}

func arity(n *Node, want int) error {
	if len(n.Children) != want {
		return malformed(n, "want %d children, got %d", want, len(n.Children))
	}
	for i, c := range n.Children {
		if c == nil {
			return malformed(n, "child %d is missing", i)
		}
	}
	return nil
}

func operator(n *Node) (eval.Op, error) {
	op, ok := eval.ParseOp(n.Op)
	if !ok {
		return eval.OpInvalid, malformed(n, "unknown operator %q", n.Op)
	}
	if n.Kind == KindAssign && !op.IsAssign() {
		return eval.OpInvalid, malformed(n, "%s is not an assignment", n.Op)
	}
	if n.Kind == KindBinary && op.IsAssign() {
		return eval.OpInvalid, malformed(n, "%s is an assignment", n.Op)
	}
	return op, nil
}

var literalKinds = map[string]eval.LiteralKind{
	LitBool:   eval.LitBool,
	LitInt:    eval.LitInt,
	LitFloat:  eval.LitFloat,
	LitChar:   eval.LitChar,
	LitString: eval.LitString,
	LitNull:   eval.LitNull,
}

func (w *Walker) literal(n *Node) (eval.Slot, error) {
	k, ok := literalKinds[n.Literal]
	if !ok {
		return nil, malformed(n, "unknown literal kind %q", n.Literal)
	}
	return w.ev.Literal(k, n.Text)
}

// name resolves an identifier: a local variable of frame 0, then a field of
// this. In a static context the fields searched are the static fields of
// the executing method's type.
func (w *Walker) name(name string) (eval.Slot, error) {
	s, err := w.ev.Local(name)
	if err == nil || !eval.IsNotFound(err) {
		return s, err
	}

	this, err := w.ev.This()
	if err != nil {
		return nil, err
	}
	if !this.IsNull() {
		s, err = w.ev.Field(this, name)
	} else {
		var t target.Type
		if t, err = w.ev.DeclaringType(); err != nil {
			return nil, err
		}
		if t == nil {
			return nil, notFound("%s is not defined", name)
		}
		s, err = w.ev.StaticField(t, name)
	}
	if eval.IsNotFound(err) {
		log.Debugf("identifier %s not found", name)
		return nil, notFound("%s is not defined", name)
	}
	return s, err
}

func (w *Walker) typeNamed(name string) (target.Type, error) {
	types, err := w.ev.Bridge().ClassesByName(name)
	if err != nil {
		return nil, &eval.Error{Kind: eval.KindRemoteFailure, Msg: "looking up type " + name, Err: err}
	}
	if len(types) == 0 {
		return nil, notFound("no loaded type %s", name)
	}
	return types[0], nil
}

func (w *Walker) call(n *Node) (eval.Slot, error) {
	argNodes := n.Children
	var (
		receiver target.Value
		static   target.Type
		err      error
	)
	switch {
	case n.Text != "":
		if static, err = w.typeNamed(n.Text); err != nil {
			return nil, err
		}
	case len(argNodes) == 0:
		return nil, malformed(n, "missing receiver")
	default:
		recvNode := argNodes[0]
		argNodes = argNodes[1:]
		if recvNode != nil {
			if receiver, err = w.Value(recvNode); err != nil {
				return nil, err
			}
		} else {
			if receiver, err = w.ev.This(); err != nil {
				return nil, err
			}
			if receiver.IsNull() {
				if static, err = w.ev.DeclaringType(); err != nil {
					return nil, err
				}
				if static == nil {
					return nil, notFound("no method %s in a frame without a declaring type", n.Name)
				}
			}
		}
	}

	args := make([]target.Value, len(argNodes))
	for i, a := range argNodes {
		if args[i], err = w.Value(a); err != nil {
			return nil, err
		}
	}

	var result target.Value
	if static != nil {
		result, err = w.ev.InvokeStatic(static, n.Name, args)
	} else {
		result, err = w.ev.Invoke(receiver, n.Name, args)
	}
	if err != nil {
		return nil, err
	}
	return eval.Constant(result), nil
}

func (w *Walker) binary(n *Node) (eval.Slot, error) {
	if err := arity(n, 2); err != nil {
		return nil, err
	}
	op, err := operator(n)
	if err != nil {
		return nil, err
	}
	left, err := w.Eval(n.Children[0])
	if err != nil {
		return nil, err
	}

	// E1 op= E2 reads E1 before E2 runs.
	if op.IsCompound() {
		lv, err := eval.ReadSlot(left)
		if err != nil {
			return nil, err
		}
		right, err := w.Eval(n.Children[1])
		if err != nil {
			return nil, err
		}
		if _, err := w.ev.Binary(op, &readFirst{Slot: left, value: lv}, right); err != nil {
			return nil, err
		}
		return left, nil
	}

	if op == eval.OpLogicalAnd || op == eval.OpLogicalOr {
		lv, err := eval.ReadSlot(left)
		if err != nil {
			return nil, err
		}
		if lv.Tag() == target.TagBool && lv.Bool() == (op == eval.OpLogicalOr) {
			return eval.Constant(lv), nil
		}
		left = eval.Constant(lv)
	}

	right, err := w.Eval(n.Children[1])
	if err != nil {
		return nil, err
	}
	return w.ev.Binary(op, left, right)
}

// readFirst is the left operand of a compound assignment: reads see the
// value it held before the right operand ran, writes go to the slot.
type readFirst struct {
	eval.Slot
	value target.Value
}

func (r *readFirst) Read() (target.Value, error) { return r.value, nil }

// deferred is a branch of ?: that is evaluated on first use.
type deferred struct {
	w    *Walker
	node *Node
}

var errDeferred = errors.New("deferred branch used before resolution")

func (d *deferred) Kind() eval.SlotKind         { return eval.SlotConstant }
func (d *deferred) Read() (target.Value, error) { return target.Null(), errDeferred }
func (d *deferred) Write(target.Value) error    { return errDeferred }
func (d *deferred) String() string              { return d.node.String() }
func (d *deferred) resolve() (eval.Slot, error) { return d.w.Eval(d.node) }

func (w *Walker) ternary(n *Node) (eval.Slot, error) {
	if err := arity(n, 3); err != nil {
		return nil, err
	}
	test, err := w.Eval(n.Children[0])
	if err != nil {
		return nil, err
	}
	chosen, err := w.ev.Ternary(test, &deferred{w, n.Children[1]}, &deferred{w, n.Children[2]})
	if err != nil {
		return nil, err
	}
	return chosen.(*deferred).resolve()
}
