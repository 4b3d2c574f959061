package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/journal"
	"github.com/chazu/rexpr/target"
	"github.com/chazu/rexpr/vm"
)

// EvalService implements the EvaluationService Connect handler.
type EvalService struct {
	worker   *Worker
	handles  *HandleStore
	sessions *SessionStore
	journal  *journal.Journal
}

// NewEvalService creates an EvalService. j may be nil.
func NewEvalService(worker *Worker, handles *HandleStore, sessions *SessionStore, j *journal.Journal) *EvalService {
	return &EvalService{
		worker:   worker,
		handles:  handles,
		sessions: sessions,
		journal:  j,
	}
}

func (s *EvalService) session(id string) (*Session, error) {
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

// Evaluate evaluates one expression tree in frame 0 of the session's thread.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	if req.Msg.Expression == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("expression is required"))
	}
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.worker.Do(ctx, func(*vm.VM) (any, error) {
		return s.evaluate(session, req.Msg.Expression, req.Msg.ToString), nil
	})
	if err != nil {
		return connect.NewResponse(&EvaluateResponse{
			Success:      false,
			ErrorMessage: err.Error(),
		}), nil
	}

	resp := result.(*EvaluateResponse)
	s.record(ctx, session, "evaluate", req.Msg.Expression, resp, time.Since(start))
	return connect.NewResponse(resp), nil
}

// Watch evaluates several expressions in one pass over the worker, so
// that every result reflects the same suspended state.
func (s *EvalService) Watch(
	ctx context.Context,
	req *connect.Request[WatchRequest],
) (*connect.Response[WatchResponse], error) {
	for i, n := range req.Msg.Expressions {
		if n == nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("expression %d is missing", i))
		}
	}
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.worker.Do(ctx, func(*vm.VM) (any, error) {
		results := make([]*EvaluateResponse, len(req.Msg.Expressions))
		for i, n := range req.Msg.Expressions {
			results[i] = s.evaluate(session, n, false)
		}
		return results, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	results := result.([]*EvaluateResponse)
	elapsed := time.Since(start)
	for i, n := range req.Msg.Expressions {
		s.record(ctx, session, "watch", n, results[i], elapsed)
	}
	return connect.NewResponse(&WatchResponse{Results: results}), nil
}

// EvaluateCondition evaluates a breakpoint condition. The condition must
// produce a boolean; anything else is a type mismatch.
func (s *EvalService) EvaluateCondition(
	ctx context.Context,
	req *connect.Request[EvaluateConditionRequest],
) (*connect.Response[EvaluateConditionResponse], error) {
	if req.Msg.Expression == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("expression is required"))
	}
	session, err := s.session(req.Msg.SessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.worker.Do(ctx, func(*vm.VM) (any, error) {
		return session.Walker().Value(req.Msg.Expression)
	})
	resp := &EvaluateConditionResponse{}
	if err == nil {
		v := result.(target.Value)
		if v.Tag() == target.TagBool {
			resp.Hit = v.Bool()
		} else {
			err = &eval.Error{Kind: eval.KindTypeMismatch, Msg: "condition is not a boolean", Operands: []string{v.Describe()}}
		}
	}
	if err != nil {
		resp.ErrorKind = errorKindName(err)
		resp.ErrorMessage = err.Error()
	}

	s.record(ctx, session, "condition", req.Msg.Expression, &EvaluateResponse{
		Success:      err == nil,
		Result:       strconv.FormatBool(resp.Hit),
		TypeName:     "boolean",
		ErrorKind:    resp.ErrorKind,
		ErrorMessage: resp.ErrorMessage,
	}, time.Since(start))
	return connect.NewResponse(resp), nil
}

// evaluate runs n and builds its response. Must be called on the worker
// goroutine. Objects and arrays are shown by identity unless toString is
// set, in which case their toString() is invoked in the debuggee.
func (s *EvalService) evaluate(session *Session, n *expr.Node, toString bool) *EvaluateResponse {
	w := session.Walker()
	v, err := w.Value(n)
	if err != nil {
		log.Debugf("evaluating %s: %v", n, err)
		return &EvaluateResponse{
			Success:      false,
			ErrorKind:    errorKindName(err),
			ErrorMessage: err.Error(),
		}
	}
	var ev *eval.Evaluator
	if toString {
		ev = w.Evaluator()
	}
	return &EvaluateResponse{
		Success:  true,
		Result:   display(ev, v),
		TypeName: v.TypeName(),
		Handle:   s.handles.Create(v, session.ID),
	}
}

func (s *EvalService) record(ctx context.Context, session *Session, op string, n *expr.Node, resp *EvaluateResponse, elapsed time.Duration) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.Record(ctx, journal.Entry{
		SessionID:    session.ID,
		Thread:       session.Thread.Name(),
		Op:           op,
		Expression:   n.String(),
		Success:      resp.Success,
		Result:       resp.Result,
		TypeName:     resp.TypeName,
		ErrorKind:    resp.ErrorKind,
		ErrorMessage: resp.ErrorMessage,
		Elapsed:      elapsed,
	})
	if err != nil {
		log.Errorf("journal: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Display
// ---------------------------------------------------------------------------

var errorKindNames = map[eval.ErrorKind]string{
	eval.KindParse:              "Parse",
	eval.KindSlotNotFound:       "SlotNotFound",
	eval.KindTypeMismatch:       "TypeMismatch",
	eval.KindAmbiguousOverload:  "AmbiguousOverload",
	eval.KindNoMatchingOverload: "NoMatchingOverload",
	eval.KindRemoteFailure:      "RemoteFailure",
	eval.KindArithmetic:         "Arithmetic",
}

// errorKindName names the kind of an evaluation error on the wire. Errors
// from outside the evaluator are reported as Internal.
func errorKindName(err error) string {
	if name, ok := errorKindNames[eval.KindOf(err)]; ok {
		return name
	}
	return "Internal"
}

// display renders a value for a client. Objects and arrays are shown by
// their toString() in the debuggee, falling back to the type and id; with
// a nil evaluator nothing is invoked. Must be called on the worker
// goroutine.
func display(ev *eval.Evaluator, v target.Value) string {
	switch v.Tag() {
	case target.TagNull:
		return "null"
	case target.TagText:
		return strconv.Quote(v.Str())
	case target.TagChar:
		return strconv.QuoteRune(rune(v.Char()))
	case target.TagObject, target.TagArray:
		if ev == nil {
			return v.Describe()
		}
		s, err := ev.StringOf(v)
		if err != nil {
			log.Debugf("toString on %s: %v", v.Describe(), err)
			return v.Describe()
		}
		return s
	}
	return eval.FormatPrimitive(v)
}

// EvaluateOnce evaluates n on the named thread of v outside of any server,
// in a throwaway session. Evaluation failures are reported in the
// response; the error is set only when the thread does not exist.
func EvaluateOnce(ctx context.Context, v *vm.VM, thread string, n *expr.Node, j *journal.Journal) (*EvaluateResponse, error) {
	th, ok := v.ThreadByName(thread)
	if !ok {
		return nil, fmt.Errorf("thread %q not found", thread)
	}
	worker := NewWorker(v)
	defer worker.Stop()
	handles := NewHandleStore()
	sessions := NewSessionStore(handles)
	svc := NewEvalService(worker, handles, sessions, j)
	session := sessions.Create(v, th, "once")
	defer sessions.Destroy(session.ID)

	resp, err := svc.Evaluate(ctx, connect.NewRequest(&EvaluateRequest{SessionID: session.ID, Expression: n}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
