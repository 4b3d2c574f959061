package eval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/rexpr/target"
)

// ---------------------------------------------------------------------------
// Evaluation errors
// ---------------------------------------------------------------------------

// ErrorKind classifies an evaluation failure. Every kind is terminal for the
// expression being evaluated; none is retried.
type ErrorKind int

const (
	KindParse ErrorKind = iota + 1
	KindSlotNotFound
	KindTypeMismatch
	KindAmbiguousOverload
	KindNoMatchingOverload
	KindRemoteFailure
	KindArithmetic
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrParse              = errors.New("parse error")
	ErrSlotNotFound       = errors.New("not found")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrAmbiguousOverload  = errors.New("ambiguous overload")
	ErrNoMatchingOverload = errors.New("no matching overload")
	ErrRemoteFailure      = errors.New("remote failure")
	ErrArithmetic         = errors.New("arithmetic error")
)

var kindSentinels = map[ErrorKind]error{
	KindParse:              ErrParse,
	KindSlotNotFound:       ErrSlotNotFound,
	KindTypeMismatch:       ErrTypeMismatch,
	KindAmbiguousOverload:  ErrAmbiguousOverload,
	KindNoMatchingOverload: ErrNoMatchingOverload,
	KindRemoteFailure:      ErrRemoteFailure,
	KindArithmetic:         ErrArithmetic,
}

func (k ErrorKind) String() string {
	if s, ok := kindSentinels[k]; ok {
		return s.Error()
	}
	return "evaluation error"
}

// Error is the single error type produced by the evaluator. Op and Operands
// carry the operator and operand descriptions involved, for diagnostics.
type Error struct {
	Kind     ErrorKind
	Op       string
	Operands []string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		fmt.Fprintf(&b, ": operator %s", e.Op)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Operands) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.Operands, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of an evaluation error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err signals an absent field or variable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound)
}

func parseError(text string, err error) *Error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf("malformed literal %q", text), Err: err}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindSlotNotFound, Msg: fmt.Sprintf(format, args...)}
}

func mismatch(op Op, msg string, operands ...target.Value) *Error {
	e := &Error{Kind: KindTypeMismatch, Msg: msg}
	if op != OpInvalid {
		e.Op = op.String()
	}
	for _, v := range operands {
		e.Operands = append(e.Operands, v.Describe())
	}
	return e
}

func remote(err error, format string, args ...any) *Error {
	return &Error{Kind: KindRemoteFailure, Msg: fmt.Sprintf(format, args...), Err: err}
}

// writeFailed classifies a failed slot write. A value the debuggee rejects
// for its type is a TypeMismatch; anything else is a RemoteFailure.
func writeFailed(err error, format string, args ...any) *Error {
	e := remote(err, format, args...)
	if errors.Is(err, target.ErrInvalidType) {
		e.Kind = KindTypeMismatch
	}
	return e
}

func arithmetic(op Op, msg string, operands ...target.Value) *Error {
	e := mismatch(op, msg, operands...)
	e.Kind = KindArithmetic
	return e
}

// errReadOnly is returned by every write to a Constant slot.
var errReadOnly = &Error{Kind: KindTypeMismatch, Msg: "cannot assign to a read-only value"}
