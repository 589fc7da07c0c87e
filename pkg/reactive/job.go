package reactive

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Job is the pollable handle to one in-flight computation. The worker
// goroutine behind it owns a private copy of the dependency values and
// never touches the slot store, so it can neither deadlock with nor be
// blocked by the render goroutine.
type Job[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Done reports whether the worker has finished, without blocking.
func (j *Job[T]) Done() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the worker's outcome. Only valid once Done reports
// true; callers on the render goroutine must poll Done first.
func (j *Job[T]) Result() (T, error) {
	return j.result, j.err
}

// Wait blocks until the worker finishes. Never call this from the
// render goroutine; it exists for tests and shutdown paths.
func (j *Job[T]) Wait() (T, error) {
	<-j.done
	return j.result, j.err
}

// Observer receives lifecycle notifications for computed-cell workers.
// Implementations must be safe for concurrent use: JobFinished is
// called on the worker goroutine.
type Observer interface {
	JobStarted(cell string)
	JobFinished(cell string, elapsed time.Duration, err error)
	GenerationAdvanced(cell string, gen uint64)
	RepaintRequested()
}

// runCompute invokes the compute function, converting any error or
// panic into a *ComputeError so a misbehaving cell can never take down
// the render goroutine.
func runCompute[T any](cell string, fn func(Values) (T, error), vals Values) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ComputeError{
				Cell:     cell,
				Err:      fmt.Errorf("panic: %v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	result, err = fn(vals)
	if err != nil {
		err = &ComputeError{Cell: cell, Err: err}
	}
	return result, err
}
