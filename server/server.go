package server

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/rexpr/journal"
	"github.com/chazu/rexpr/vm"
)

var log = commonlog.GetLogger("rexpr.server")

// RexprServer serves expression evaluation against a debuggee over
// Connect. Every service accepts the Connect, gRPC and gRPC-Web
// protocols with JSON or CBOR messages.
type RexprServer struct {
	worker   *Worker
	handles  *HandleStore
	sessions *SessionStore
	debug    *vm.DebugServer
	mux      *http.ServeMux

	stopSweeper func()
	done        chan struct{}
}

// ServerOption configures a RexprServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	journal       *journal.Journal
	codecs        []string
	defaultThread string
	sweepInterval time.Duration
	handleTTL     time.Duration
}

// WithJournal records every evaluation in j.
func WithJournal(j *journal.Journal) ServerOption {
	return func(c *serverConfig) { c.journal = j }
}

// WithCodecs restricts the message codecs accepted, by name ("json",
// "cbor"). By default both are accepted.
func WithCodecs(names ...string) ServerOption {
	return func(c *serverConfig) { c.codecs = names }
}

// WithDefaultThread sets the thread sessions attach to when they name none.
func WithDefaultThread(name string) ServerOption {
	return func(c *serverConfig) { c.defaultThread = name }
}

// WithHandleTTL sets how long an unused handle lives and how often idle
// handles are swept.
func WithHandleTTL(ttl, sweepInterval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.handleTTL = ttl
		c.sweepInterval = sweepInterval
	}
}

// New creates a RexprServer over the given debuggee.
func New(v *vm.VM, opts ...ServerOption) (*RexprServer, error) {
	cfg := &serverConfig{
		defaultThread: "main",
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	handlerOpts, err := codecOptions(cfg.codecs)
	if err != nil {
		return nil, err
	}

	worker := NewWorker(v)
	handles := NewHandleStore()
	sessions := NewSessionStore(handles)
	debug := vm.NewDebugServer(v)
	debug.Activate()

	s := &RexprServer{
		worker:   worker,
		handles:  handles,
		sessions: sessions,
		debug:    debug,
		mux:      http.NewServeMux(),
		done:     make(chan struct{}),
	}

	evalSvc := NewEvalService(worker, handles, sessions, cfg.journal)
	sessionSvc := NewSessionService(worker, sessions, debug, cfg.defaultThread)
	inspectSvc := NewInspectService(worker, handles, sessions, debug)

	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, sessionSvc.CreateSession, handlerOpts...))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, sessionSvc.DestroySession, handlerOpts...))
	s.mux.Handle(ListThreadsProcedure, connect.NewUnaryHandler(ListThreadsProcedure, sessionSvc.ListThreads, handlerOpts...))
	s.mux.Handle(SuspendThreadProcedure, connect.NewUnaryHandler(SuspendThreadProcedure, sessionSvc.SuspendThread, handlerOpts...))
	s.mux.Handle(ResumeThreadProcedure, connect.NewUnaryHandler(ResumeThreadProcedure, sessionSvc.ResumeThread, handlerOpts...))

	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, evalSvc.Evaluate, handlerOpts...))
	s.mux.Handle(WatchProcedure, connect.NewUnaryHandler(WatchProcedure, evalSvc.Watch, handlerOpts...))
	s.mux.Handle(EvaluateConditionProcedure, connect.NewUnaryHandler(EvaluateConditionProcedure, evalSvc.EvaluateCondition, handlerOpts...))

	s.mux.Handle(InspectProcedure, connect.NewUnaryHandler(InspectProcedure, inspectSvc.Inspect, handlerOpts...))
	s.mux.Handle(ListFramesProcedure, connect.NewUnaryHandler(ListFramesProcedure, inspectSvc.ListFrames, handlerOpts...))
	s.mux.Handle(ReleaseHandleProcedure, connect.NewUnaryHandler(ReleaseHandleProcedure, inspectSvc.ReleaseHandle, handlerOpts...))

	s.stopSweeper = handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)
	go s.logEvents()

	return s, nil
}

// Handler returns the HTTP handler serving every procedure.
func (s *RexprServer) Handler() http.Handler { return s.mux }

// Debugger returns the debug server controlling the debuggee's threads.
func (s *RexprServer) Debugger() *vm.DebugServer { return s.debug }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *RexprServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("rexpr server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, EvaluateProcedure)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts down the server.
func (s *RexprServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.debug.Deactivate()
	close(s.done)
	s.worker.Stop()
}

// logEvents logs thread state changes until the server stops.
func (s *RexprServer) logEvents() {
	for {
		select {
		case ev := <-s.debug.Events():
			if ev.Location != nil {
				log.Infof("thread %d %s (%s) in %s", ev.ThreadID, ev.Type, ev.Reason, ev.Location.Method)
			} else {
				log.Infof("thread %d %s (%s)", ev.ThreadID, ev.Type, ev.Reason)
			}
		case <-s.done:
			return
		}
	}
}
