package server

import "github.com/chazu/rexpr/expr"

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

const (
	SessionServiceName    = "rexpr.v1.SessionService"
	EvaluationServiceName = "rexpr.v1.EvaluationService"
	InspectionServiceName = "rexpr.v1.InspectionService"
)

const (
	CreateSessionProcedure     = "/" + SessionServiceName + "/CreateSession"
	DestroySessionProcedure    = "/" + SessionServiceName + "/DestroySession"
	ListThreadsProcedure       = "/" + SessionServiceName + "/ListThreads"
	SuspendThreadProcedure     = "/" + SessionServiceName + "/SuspendThread"
	ResumeThreadProcedure      = "/" + SessionServiceName + "/ResumeThread"
	EvaluateProcedure          = "/" + EvaluationServiceName + "/Evaluate"
	WatchProcedure             = "/" + EvaluationServiceName + "/Watch"
	EvaluateConditionProcedure = "/" + EvaluationServiceName + "/EvaluateCondition"
	InspectProcedure           = "/" + InspectionServiceName + "/Inspect"
	ListFramesProcedure        = "/" + InspectionServiceName + "/ListFrames"
	ReleaseHandleProcedure     = "/" + InspectionServiceName + "/ReleaseHandle"
)

// ---------------------------------------------------------------------------
// Sessions and threads
// ---------------------------------------------------------------------------

type CreateSessionRequest struct {
	Thread string `json:"thread" cbor:"thread"`
	Name   string `json:"name,omitempty" cbor:"name,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string     `json:"session_id" cbor:"session_id"`
	Thread    ThreadInfo `json:"thread" cbor:"thread"`
}

type DestroySessionRequest struct {
	SessionID string `json:"session_id" cbor:"session_id"`
}

type DestroySessionResponse struct{}

type ListThreadsRequest struct{}

type ListThreadsResponse struct {
	Threads []ThreadInfo `json:"threads" cbor:"threads"`
}

type ThreadRequest struct {
	Thread string `json:"thread" cbor:"thread"`
	Reason string `json:"reason,omitempty" cbor:"reason,omitempty"`
}

type ThreadResponse struct {
	Thread ThreadInfo `json:"thread" cbor:"thread"`
}

type ThreadInfo struct {
	ID        uint64 `json:"id" cbor:"id"`
	Name      string `json:"name" cbor:"name"`
	Suspended bool   `json:"suspended" cbor:"suspended"`
	Depth     int    `json:"depth" cbor:"depth"`
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

type EvaluateRequest struct {
	SessionID  string     `json:"session_id" cbor:"session_id"`
	Expression *expr.Node `json:"expression" cbor:"expression"`
	// ToString displays an object or array result through its toString()
	// method. Otherwise no method is invoked to display the result.
	ToString bool `json:"to_string,omitempty" cbor:"to_string,omitempty"`
}

// EvaluateResponse reports an evaluation. Evaluation failures are reported
// in-band with Success false; only malformed requests fail the call.
type EvaluateResponse struct {
	Success      bool   `json:"success" cbor:"success"`
	Result       string `json:"result,omitempty" cbor:"result,omitempty"`
	TypeName     string `json:"type_name,omitempty" cbor:"type_name,omitempty"`
	Handle       string `json:"handle,omitempty" cbor:"handle,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty" cbor:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" cbor:"error_message,omitempty"`
}

type WatchRequest struct {
	SessionID   string       `json:"session_id" cbor:"session_id"`
	Expressions []*expr.Node `json:"expressions" cbor:"expressions"`
}

type WatchResponse struct {
	Results []*EvaluateResponse `json:"results" cbor:"results"`
}

type EvaluateConditionRequest struct {
	SessionID  string     `json:"session_id" cbor:"session_id"`
	Expression *expr.Node `json:"expression" cbor:"expression"`
}

type EvaluateConditionResponse struct {
	Hit          bool   `json:"hit" cbor:"hit"`
	ErrorKind    string `json:"error_kind,omitempty" cbor:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty" cbor:"error_message,omitempty"`
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

type InspectRequest struct {
	HandleID  string `json:"handle_id" cbor:"handle_id"`
	SessionID string `json:"session_id,omitempty" cbor:"session_id,omitempty"`
}

type InspectResponse struct {
	Handle   string     `json:"handle" cbor:"handle"`
	TypeName string     `json:"type_name" cbor:"type_name"`
	Display  string     `json:"display" cbor:"display"`
	Length   int32      `json:"length,omitempty" cbor:"length,omitempty"`
	Slots    []SlotInfo `json:"slots,omitempty" cbor:"slots,omitempty"`
}

// SlotInfo is one field of an inspected object, or one element of an
// inspected array (named "[i]").
type SlotInfo struct {
	Name     string `json:"name" cbor:"name"`
	TypeName string `json:"type_name" cbor:"type_name"`
	Value    string `json:"value" cbor:"value"`
	Handle   string `json:"handle,omitempty" cbor:"handle,omitempty"`
}

type ListFramesRequest struct {
	SessionID string `json:"session_id" cbor:"session_id"`
}

type ListFramesResponse struct {
	Frames []FrameInfo `json:"frames" cbor:"frames"`
}

type FrameInfo struct {
	Index     int            `json:"index" cbor:"index"`
	Method    string         `json:"method" cbor:"method"`
	Class     string         `json:"class" cbor:"class"`
	Native    bool           `json:"native,omitempty" cbor:"native,omitempty"`
	Variables []VariableInfo `json:"variables,omitempty" cbor:"variables,omitempty"`
}

type VariableInfo struct {
	Name     string `json:"name" cbor:"name"`
	Value    string `json:"value" cbor:"value"`
	TypeName string `json:"type_name" cbor:"type_name"`
}

type ReleaseHandleRequest struct {
	HandleID string `json:"handle_id" cbor:"handle_id"`
}

type ReleaseHandleResponse struct {
	Released bool `json:"released" cbor:"released"`
}
