package server

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/rexpr/vm"
)

// SessionService implements the SessionService Connect handler: session
// lifecycle and the thread control a debugger front-end needs before it
// can evaluate anything.
type SessionService struct {
	worker        *Worker
	sessions      *SessionStore
	debug         *vm.DebugServer
	defaultThread string
}

// NewSessionService creates a SessionService. Sessions that name no thread
// attach to defaultThread.
func NewSessionService(worker *Worker, sessions *SessionStore, debug *vm.DebugServer, defaultThread string) *SessionService {
	return &SessionService{
		worker:        worker,
		sessions:      sessions,
		debug:         debug,
		defaultThread: defaultThread,
	}
}

func threadInfo(th *vm.Thread) ThreadInfo {
	return ThreadInfo{
		ID:        th.ID(),
		Name:      th.Name(),
		Suspended: th.Suspended(),
		Depth:     th.Depth(),
	}
}

func (s *SessionService) thread(name string) (*vm.Thread, error) {
	if name == "" {
		name = s.defaultThread
	}
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("thread is required"))
	}
	th, ok := s.worker.VM().ThreadByName(name)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("thread %q not found", name))
	}
	return th, nil
}

// CreateSession opens an evaluation session on a thread.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[CreateSessionRequest],
) (*connect.Response[CreateSessionResponse], error) {
	th, err := s.thread(req.Msg.Thread)
	if err != nil {
		return nil, err
	}
	session := s.sessions.Create(s.worker.VM(), th, req.Msg.Name)
	return connect.NewResponse(&CreateSessionResponse{
		SessionID: session.ID,
		Thread:    threadInfo(th),
	}), nil
}

// DestroySession destroys a session and releases its handles.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[DestroySessionRequest],
) (*connect.Response[DestroySessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id is required"))
	}
	if !s.sessions.Destroy(req.Msg.SessionID) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", req.Msg.SessionID))
	}
	return connect.NewResponse(&DestroySessionResponse{}), nil
}

// ListThreads lists the debuggee's threads.
func (s *SessionService) ListThreads(
	ctx context.Context,
	req *connect.Request[ListThreadsRequest],
) (*connect.Response[ListThreadsResponse], error) {
	threads := s.worker.VM().Threads()
	resp := &ListThreadsResponse{Threads: make([]ThreadInfo, len(threads))}
	for i, th := range threads {
		resp.Threads[i] = threadInfo(th)
	}
	return connect.NewResponse(resp), nil
}

// SuspendThread suspends a thread so that it can be evaluated against.
func (s *SessionService) SuspendThread(
	ctx context.Context,
	req *connect.Request[ThreadRequest],
) (*connect.Response[ThreadResponse], error) {
	th, err := s.thread(req.Msg.Thread)
	if err != nil {
		return nil, err
	}
	reason := req.Msg.Reason
	if reason == "" {
		reason = "pause"
	}
	_, err = s.worker.Do(ctx, func(*vm.VM) (any, error) {
		return nil, s.debug.Suspend(th.ID(), reason)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewResponse(&ThreadResponse{Thread: threadInfo(th)}), nil
}

// ResumeThread resumes a thread. Its frames go stale.
func (s *SessionService) ResumeThread(
	ctx context.Context,
	req *connect.Request[ThreadRequest],
) (*connect.Response[ThreadResponse], error) {
	th, err := s.thread(req.Msg.Thread)
	if err != nil {
		return nil, err
	}
	_, err = s.worker.Do(ctx, func(*vm.VM) (any, error) {
		return nil, s.debug.Resume(th.ID())
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, err)
	}
	return connect.NewResponse(&ThreadResponse{Thread: threadInfo(th)}), nil
}
