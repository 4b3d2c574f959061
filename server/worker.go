package server

import (
	"context"
	"fmt"

	"github.com/chazu/rexpr/vm"
)

// workRequest is a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*vm.VM) (any, error)
	done chan workResult
}

// workResult holds the return value of a unit of work.
type workResult struct {
	value any
	err   error
}

// Worker serializes all debuggee access through a single goroutine.
// Evaluators are synchronous and hold no locks; every RPC and LSP handler
// must go through the worker so that no two evaluations interleave their
// round trips on the bridge.
type Worker struct {
	vm       *vm.VM
	requests chan workRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(v *vm.VM) *Worker {
	w := &Worker{
		vm:       v,
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn against the debuggee, recovering from panics.
func (w *Worker) execute(fn func(*vm.VM) (any, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			result = workResult{err: fmt.Errorf("worker panic: %v", r)}
		}
	}()
	v, err := fn(w.vm)
	return workResult{value: v, err: err}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes or ctx is done. A cancelled context abandons the wait only;
// work already handed to the worker still runs to completion.
func (w *Worker) Do(ctx context.Context, fn func(*vm.VM) (any, error)) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, fmt.Errorf("worker stopped")
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.quit:
		return nil, fmt.Errorf("worker stopped")
	}
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}

// VM returns the underlying debuggee, for metadata that does not touch
// thread state.
func (w *Worker) VM() *vm.VM {
	return w.vm
}
