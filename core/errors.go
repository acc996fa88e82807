package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSchedulerClosed is returned by operations that need a live scheduler.
	ErrSchedulerClosed = errors.New("taskqueue: scheduler is closed")

	// ErrShutdownFromWorker is the panic value when a scheduler is shut down
	// from its own worker goroutine, which would deadlock.
	ErrShutdownFromWorker = errors.New("taskqueue: shutdown called from the scheduler's own worker")
)

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Queue string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskqueue: task panicked on queue %q: %v", e.Queue, e.Value)
}

// Unwrap returns the panic value if it is an error, enabling errors.Is/As
// through the recovered value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
