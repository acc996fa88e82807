package core

import (
	"context"
	"time"
)

// TaskWithResult is a task producing a value for a reply.
type TaskWithResult[T any] func(ctx context.Context) (T, error)

// ReplyWithResult consumes the value produced by a TaskWithResult.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// =============================================================================
// PostTaskAndReply
// =============================================================================

// PostTaskAndReply runs task on this scheduler, then posts reply to replyTo.
// If task panics the reply is not posted. A nil replyTo just posts task.
func (s *Scheduler) PostTaskAndReply(task, reply func(ctx context.Context), replyTo TaskPoster) {
	postTaskAndReply(s, task, reply, replyTo, 0)
}

func postTaskAndReply(target TaskPoster, task, reply func(ctx context.Context), replyTo TaskPoster, delay time.Duration) {
	wrapped := Closure(func(ctx context.Context) {
		task(ctx)
		// not reached if task panicked
		if replyTo != nil {
			replyTo.PostTask(Closure(reply))
		}
	})

	if delay > 0 {
		target.PostDelayedTask(wrapped, delay)
		return
	}
	target.PostTask(wrapped)
}

// PostTaskAndReplyWithResult executes a task that returns a result of type T
// and an error on target, then passes both to reply on replyTo.
//
// The reply always observes the values written by the task: the reply is
// posted by the task's own goroutine after the task returns.
//
// Example:
//
//	PostTaskAndReplyWithResult(
//	    ioQueue,
//	    func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    },
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    },
//	    uiQueue,
//	)
func PostTaskAndReplyWithResult[T any](
	target TaskPoster,
	task TaskWithResult[T],
	reply ReplyWithResult[T],
	replyTo TaskPoster,
) {
	PostDelayedTaskAndReplyWithResult(target, task, 0, reply, replyTo)
}

// PostDelayedTaskAndReplyWithResult delays only the task; the reply is posted
// as soon as the task completes.
func PostDelayedTaskAndReplyWithResult[T any](
	target TaskPoster,
	task TaskWithResult[T],
	delay time.Duration,
	reply ReplyWithResult[T],
	replyTo TaskPoster,
) {
	var result T
	var err error

	postTaskAndReply(
		target,
		func(ctx context.Context) {
			result, err = task(ctx)
		},
		func(ctx context.Context) {
			reply(ctx, result, err)
		},
		replyTo,
		delay,
	)
}
