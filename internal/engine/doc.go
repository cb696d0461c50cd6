// Package engine starts units of work as detached local processes.
//
// The controller hands the engine an opaque payload; this engine wants
// a Command (argv, working directory, extra environment). Each started
// unit gets a UUIDv7 handle, runs in its own session so it survives the
// submitting process, and is reaped by a background goroutine that
// reports the exit to an optional callback.
//
// Start is the admission boundary: a unit either starts and returns a
// handle, or fails and returns an error. The engine never retries; the
// controller's next batch does that by re-submitting whatever is still
// pending.
package engine
