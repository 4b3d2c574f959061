package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/rexpr/eval"
	"github.com/chazu/rexpr/target"
	"github.com/chazu/rexpr/vm"
)

// maxElements bounds the array elements returned by one inspection.
const maxElements = 100

// InspectService implements the InspectionService Connect handler.
type InspectService struct {
	worker   *Worker
	handles  *HandleStore
	sessions *SessionStore
	debug    *vm.DebugServer
}

// NewInspectService creates an InspectService.
func NewInspectService(worker *Worker, handles *HandleStore, sessions *SessionStore, debug *vm.DebugServer) *InspectService {
	return &InspectService{
		worker:   worker,
		handles:  handles,
		sessions: sessions,
		debug:    debug,
	}
}

// Inspect returns the fields of an object, or the elements of an array,
// referenced by a handle. Reference-valued slots get handles of their own.
func (s *InspectService) Inspect(
	ctx context.Context,
	req *connect.Request[InspectRequest],
) (*connect.Response[InspectResponse], error) {
	if req.Msg.HandleID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle_id is required"))
	}
	val, ok := s.handles.Lookup(req.Msg.HandleID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", req.Msg.HandleID))
	}

	// With a session, objects are displayed through toString() on its thread.
	var ev *eval.Evaluator
	if req.Msg.SessionID != "" {
		session, ok := s.sessions.Get(req.Msg.SessionID)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
		}
		ev = session.Walker().Evaluator()
	}

	result, err := s.worker.Do(ctx, func(v *vm.VM) (any, error) {
		return s.inspectValue(v, ev, val, req.Msg.HandleID, req.Msg.SessionID)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*InspectResponse)), nil
}

// ListFrames lists the call stack of the session's thread with the
// variables of every frame that has them.
func (s *InspectService) ListFrames(
	ctx context.Context,
	req *connect.Request[ListFramesRequest],
) (*connect.Response[ListFramesResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	session, ok := s.sessions.Get(req.Msg.SessionID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}

	result, err := s.worker.Do(ctx, func(*vm.VM) (any, error) {
		id := session.Thread.ID()
		stack, err := s.debug.GetCallStack(id)
		if err != nil {
			return nil, err
		}
		frames := make([]FrameInfo, len(stack))
		for i, sf := range stack {
			frames[i] = FrameInfo{Index: sf.ID, Method: sf.Method, Class: sf.Class, Native: sf.Native}
			if sf.Native {
				continue
			}
			vars, err := s.debug.GetVariables(id, sf.ID)
			if err != nil {
				return nil, err
			}
			for _, v := range vars {
				frames[i].Variables = append(frames[i].Variables, VariableInfo{Name: v.Name, Value: v.Value, TypeName: v.Type})
			}
		}
		return frames, nil
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewResponse(&ListFramesResponse{Frames: result.([]FrameInfo)}), nil
}

// ReleaseHandle releases an object handle.
func (s *InspectService) ReleaseHandle(
	ctx context.Context,
	req *connect.Request[ReleaseHandleRequest],
) (*connect.Response[ReleaseHandleResponse], error) {
	if req.Msg.HandleID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("handle_id is required"))
	}
	return connect.NewResponse(&ReleaseHandleResponse{
		Released: s.handles.Release(req.Msg.HandleID),
	}), nil
}

// --- helpers ---

// inspectValue builds an InspectResponse for val.
// Must be called on the worker goroutine.
func (s *InspectService) inspectValue(v *vm.VM, ev *eval.Evaluator, val target.Value, handleID, sessionID string) (*InspectResponse, error) {
	resp := &InspectResponse{
		Handle:   handleID,
		TypeName: val.TypeName(),
		Display:  display(ev, val),
	}

	slot := func(name string, typ target.Type, sv target.Value) SlotInfo {
		typeName := sv.TypeName()
		if sv.IsNull() && typ != nil {
			typeName = typ.Name()
		}
		return SlotInfo{
			Name:     name,
			TypeName: typeName,
			Value:    display(ev, sv),
			Handle:   s.handles.Create(sv, sessionID),
		}
	}

	switch ref := val.Ref().(type) {
	case *vm.Object:
		for _, f := range ref.Class().AllFields() {
			fv, err := v.ReadField(val, f)
			if err != nil {
				return nil, err
			}
			resp.Slots = append(resp.Slots, slot(f.Name(), f.Type(), fv))
		}
	case *vm.ArrayObject:
		n, err := v.ArrayLength(val)
		if err != nil {
			return nil, err
		}
		resp.Length = n
		component, err := v.ComponentType(val.Type())
		if err != nil {
			return nil, err
		}
		for i := int32(0); i < n && i < maxElements; i++ {
			elem, err := v.ReadArrayElement(val, i)
			if err != nil {
				return nil, err
			}
			resp.Slots = append(resp.Slots, slot(fmt.Sprintf("[%d]", i), component, elem))
		}
	}
	return resp, nil
}
