// Package vm implements an in-process debuggee for the evaluator.
//
// This package contains:
//   - Class, interface and array types with a loaded-class table
//   - A heap of objects, arrays and strings
//   - Threads with suspendable call stacks and stale-frame detection
//   - The core library (Object, String, Throwable, Math, Integer)
//   - A target.Bridge implementation over all of the above
//   - A DebugServer for suspending threads and inspecting frames
//   - TOML fixtures describing a debuggee snapshot
package vm
