package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/rexpr/expr"
	"github.com/chazu/rexpr/target"
	"github.com/chazu/rexpr/vm"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// Evaluations mutate the debuggee (assignments, invocations), so every test
// gets its own demo VM behind its own HTTP server.
// ---------------------------------------------------------------------------

// testEnv bundles a fresh demo VM with a running server.
type testEnv struct {
	VM     *vm.VM
	Server *RexprServer
	HTTP   *httptest.Server
}

// newTestEnv starts a server over a fresh demo VM. It is stopped when the
// test ends.
func newTestEnv(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()
	v := vm.NewDemo()
	s, err := New(v, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	h := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		h.Close()
		s.Stop()
	})
	return &testEnv{VM: v, Server: s, HTTP: h}
}

// call invokes procedure on env's server with the JSON codec.
func call[Req, Res any](t *testing.T, env *testEnv, procedure string, req *Req) (*Res, error) {
	t.Helper()
	return callWith[Req, Res](t, env, jsonCodec{}, procedure, req)
}

// callWith invokes procedure on env's server with the given codec.
func callWith[Req, Res any](t *testing.T, env *testEnv, codec connect.Codec, procedure string, req *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](env.HTTP.Client(), env.HTTP.URL+procedure, connect.WithCodec(codec))
	resp, err := client.CallUnary(bg(), connectReq(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// openSession creates a session on the named thread and returns its ID.
func openSession(t *testing.T, env *testEnv, thread string) string {
	t.Helper()
	resp, err := call[CreateSessionRequest, CreateSessionResponse](t, env, CreateSessionProcedure, &CreateSessionRequest{Thread: thread})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	return resp.SessionID
}

// evaluate evaluates n in a session and fails the test on a transport error.
func evaluate(t *testing.T, env *testEnv, sessionID string, n *expr.Node) *EvaluateResponse {
	t.Helper()
	resp, err := call[EvaluateRequest, EvaluateResponse](t, env, EvaluateProcedure, &EvaluateRequest{SessionID: sessionID, Expression: n})
	if err != nil {
		t.Fatalf("Evaluate(%s) returned error: %v", n, err)
	}
	return resp
}

// ---------------------------------------------------------------------------
// Isolated stores for tests that call services directly
// ---------------------------------------------------------------------------

// isolatedEnv bundles a fresh demo VM with its worker and stores.
type isolatedEnv struct {
	VM       *vm.VM
	Worker   *Worker
	Handles  *HandleStore
	Sessions *SessionStore
	Debug    *vm.DebugServer
}

// newIsolatedEnv creates a brand-new VM + worker + stores, stopped when the
// test ends.
func newIsolatedEnv(t *testing.T) *isolatedEnv {
	t.Helper()
	v := vm.NewDemo()
	w := NewWorker(v)
	h := NewHandleStore()
	d := vm.NewDebugServer(v)
	d.Activate()
	t.Cleanup(w.Stop)
	return &isolatedEnv{VM: v, Worker: w, Handles: h, Sessions: NewSessionStore(h), Debug: d}
}

func (e *isolatedEnv) sessionService() *SessionService {
	return NewSessionService(e.Worker, e.Sessions, e.Debug, "main")
}

func (e *isolatedEnv) inspectService() *InspectService {
	return NewInspectService(e.Worker, e.Handles, e.Sessions, e.Debug)
}

func (e *isolatedEnv) evalService() *EvalService {
	return NewEvalService(e.Worker, e.Handles, e.Sessions, nil)
}

// named returns a fixture value of the demo VM.
func (e *isolatedEnv) named(t *testing.T, name string) target.Value {
	t.Helper()
	v, ok := e.VM.Named(name)
	if !ok {
		t.Fatalf("demo has no value named %q", name)
	}
	return v
}

// ---------------------------------------------------------------------------
// Request builder helpers
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

func intLit(text string) *expr.Node { return expr.Lit(expr.LitInt, text) }
