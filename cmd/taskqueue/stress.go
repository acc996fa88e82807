package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	taskqueue "github.com/Swind/go-taskqueue"
	"github.com/Swind/go-taskqueue/core"
)

type stressOptions struct {
	producers int
	posts     int
	delay     time.Duration
	queues    []string
	timeout   time.Duration
	verbose   bool
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Hammer a set of queues from many goroutines and wait for the delayed tail",
		Long: `stress starts one producer goroutine per --producers. Each producer posts
--posts immediate tasks to the first queue and to the second queue, plus one
delayed task per iteration to the second queue. The command returns once the
last delayed task has run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := buildLogger(v)
			if err != nil {
				return err
			}
			opts := stressOptions{
				producers: v.GetInt("producers"),
				posts:     v.GetInt("posts"),
				delay:     v.GetDuration("delay"),
				queues:    v.GetStringSlice("queues"),
				timeout:   v.GetDuration("timeout"),
				verbose:   v.GetBool("verbose"),
			}
			return runStress(cmd.Context(), logger, opts)
		},
	}
	cmd.Flags().Int("producers", 12, "number of posting goroutines")
	cmd.Flags().Int("posts", 10000, "iterations per producer")
	cmd.Flags().Duration("delay", time.Second, "delay of the delayed posts")
	cmd.Flags().StringSlice("queues", []string{"worker1", "worker2", "worker3"}, "queue names; the first two receive work")
	cmd.Flags().Duration("timeout", time.Minute, "give up waiting after this long")
	cmd.Flags().Bool("verbose", false, "log every executed task")
	return cmd
}

func runStress(ctx context.Context, logger core.Logger, opts stressOptions) error {
	if len(opts.queues) < 2 {
		return fmt.Errorf("stress needs at least two queues, got %d", len(opts.queues))
	}
	if opts.producers <= 0 || opts.posts <= 0 {
		return fmt.Errorf("producers and posts must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	registry := taskqueue.NewRegistry(taskqueue.WithLogger(logger))
	defer registry.Close()
	registry.CreateMany(opts.queues...)

	first, _ := registry.Lookup(opts.queues[0])
	second, _ := registry.Lookup(opts.queues[1])

	done := core.NewSignalEvent(false, false)
	total := int64(opts.producers) * int64(opts.posts)
	var executed, delayedRun atomic.Int64

	trace := func(queue string, delayed bool, i int) {
		if opts.verbose {
			logger.Debug("exec task", core.F("queue", queue), core.F("delayed", delayed), core.F("i", i))
		}
	}

	start := time.Now()
	var wg sync.WaitGroup
	for n := 0; n < opts.producers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < opts.posts; i++ {
				first.PostFunc(func(ctx context.Context) {
					executed.Add(1)
					trace(first.Name(), false, i)
				})
				second.PostFunc(func(ctx context.Context) {
					executed.Add(1)
					trace(second.Name(), false, i)
				})
				second.PostDelayedFunc(func(ctx context.Context) {
					executed.Add(1)
					trace(second.Name(), true, i)
					if delayedRun.Add(1) == total {
						done.Signal()
					}
				}, opts.delay)
			}
		}()
	}
	wg.Wait()
	logger.Info("all tasks posted", core.F("tasks", total*3), core.F("elapsed", time.Since(start)))

	waitCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	if err := done.WaitContext(waitCtx); err != nil {
		return fmt.Errorf("waiting for delayed tasks: %w", err)
	}

	for _, q := range []*taskqueue.TaskQueue{first, second} {
		if err := q.WaitIdle(waitCtx); err != nil {
			return fmt.Errorf("drain %s: %w", q.Name(), err)
		}
	}

	logger.Info("stress finished",
		core.F("executed", executed.Load()),
		core.F("elapsed", time.Since(start)),
	)
	for _, s := range registry.Stats() {
		logger.Info("queue stats",
			core.F("queue", s.Name),
			core.F("executed", s.Executed),
			core.F("pending", s.Pending),
			core.F("delayed", s.Delayed),
		)
	}
	return nil
}
