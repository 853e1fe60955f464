package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/najoast/worldex/world"
)

// WorkerMode selects how a worker waits for messages.
type WorkerMode string

const (
	// ModeBlocking blocks on the channel and executes messages as they arrive
	ModeBlocking WorkerMode = "blocking"

	// ModePolling drains the channel once per tick, then runs the tick hook
	ModePolling WorkerMode = "polling"
)

// ErrorPolicy decides what a worker does when a payload fails.
type ErrorPolicy string

const (
	// PolicyContinue logs and counts the failure, then carries on
	PolicyContinue ErrorPolicy = "continue"

	// PolicyAbort stops the worker and returns the failure
	PolicyAbort ErrorPolicy = "abort"
)

// TickFunc runs once per tick of a polling worker, after the channel has been
// drained. It has exclusive access to the world.
type TickFunc func(ctx context.Context, w *world.World, ch *Channel) error

// WorkerOptions contains configuration options for creating a Worker.
type WorkerOptions struct {
	Mode         WorkerMode
	TickInterval time.Duration
	ErrorPolicy  ErrorPolicy

	// Tick is optional and only used in polling mode
	Tick TickFunc

	Logger  *zap.Logger
	Metrics *Metrics
}

// DefaultWorkerOptions returns sensible default options.
func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		Mode:         ModeBlocking,
		TickInterval: 16 * time.Millisecond,
		ErrorPolicy:  PolicyContinue,
		Logger:       zap.NewNop(),
	}
}

// ReceiveMessage blocks until a message is delivered to ch and executes it
// against w. Payload failures are returned as *ExecutionError.
func ReceiveMessage(ctx context.Context, w *world.World, ch *Channel) error {
	msg, err := ch.Recv(ctx)
	if err != nil {
		return err
	}
	return execute(w, ch, msg)
}

// TryReceiveMessages executes every message already delivered to ch without
// blocking and returns how many were executed. It stops at the first payload
// failure. Running out of messages is not an error.
func TryReceiveMessages(w *world.World, ch *Channel) (int, error) {
	var n int
	for {
		msg, err := ch.TryRecv()
		if errors.Is(err, ErrEmpty) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if err := execute(w, ch, msg); err != nil {
			return n, err
		}
	}
}

func execute(w *world.World, ch *Channel, msg *Message) error {
	if err := msg.Execute(w, ch); err != nil {
		return &ExecutionError{
			World:     ch.ID(),
			MessageID: msg.ID(),
			Kind:      msg.Kind(),
			Err:       err,
		}
	}
	return nil
}

// Worker owns one world and executes the messages delivered to its channel.
type Worker struct {
	world  *world.World
	ch     *Channel
	opts   WorkerOptions
	logger *zap.Logger

	executed atomic.Uint64
	failed   atomic.Uint64
}

// WorkerStats contains runtime statistics for a Worker.
type WorkerStats struct {
	World    WorldID
	Executed uint64
	Failed   uint64
	Pending  int
}

// NewWorker creates a worker for w bound to ch. The worker must be the only
// goroutine touching w once Run is called.
func NewWorker(w *world.World, ch *Channel, opts WorkerOptions) (*Worker, error) {
	defaults := DefaultWorkerOptions()
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.ErrorPolicy == "" {
		opts.ErrorPolicy = defaults.ErrorPolicy
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}

	switch opts.Mode {
	case ModeBlocking, ModePolling:
	default:
		return nil, fmt.Errorf("unknown worker mode %q", opts.Mode)
	}
	switch opts.ErrorPolicy {
	case PolicyContinue, PolicyAbort:
	default:
		return nil, fmt.Errorf("unknown error policy %q", opts.ErrorPolicy)
	}

	return &Worker{
		world:  w,
		ch:     ch,
		opts:   opts,
		logger: opts.Logger.Named("worker").With(zap.String("world", string(ch.ID()))),
	}, nil
}

// World returns the world owned by the worker.
func (wk *Worker) World() *world.World {
	return wk.world
}

// Channel returns the channel the worker reads from.
func (wk *Worker) Channel() *Channel {
	return wk.ch
}

// Stats returns current runtime statistics for this Worker.
func (wk *Worker) Stats() WorkerStats {
	return WorkerStats{
		World:    wk.ch.ID(),
		Executed: wk.executed.Load(),
		Failed:   wk.failed.Load(),
		Pending:  wk.ch.Pending(),
	}
}

// Run executes messages until ctx is done, the channel disconnects, or a
// payload fails under PolicyAbort. It returns nil when ctx ends the loop.
func (wk *Worker) Run(ctx context.Context) error {
	wk.logger.Info("worker started",
		zap.String("mode", string(wk.opts.Mode)),
		zap.String("error_policy", string(wk.opts.ErrorPolicy)),
	)

	var err error
	if wk.opts.Mode == ModePolling {
		err = wk.poll(ctx)
	} else {
		err = wk.block(ctx)
	}

	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}

	wk.logger.Info("worker stopped",
		zap.Uint64("executed", wk.executed.Load()),
		zap.Uint64("failed", wk.failed.Load()),
		zap.Error(err),
	)
	return err
}

func (wk *Worker) block(ctx context.Context) error {
	for {
		msg, err := wk.ch.Recv(ctx)
		if err != nil {
			return err
		}
		if err := wk.handle(msg); err != nil {
			return err
		}
	}
}

func (wk *Worker) poll(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(wk.opts.TickInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := wk.drain(); err != nil {
			return err
		}

		if wk.opts.Tick != nil {
			if err := wk.opts.Tick(ctx, wk.world, wk.ch); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("world %s tick: %w", wk.ch.ID(), err)
			}
		}
	}
}

// drain executes everything delivered so far.
func (wk *Worker) drain() error {
	for {
		msg, err := wk.ch.TryRecv()
		if errors.Is(err, ErrEmpty) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := wk.handle(msg); err != nil {
			return err
		}
	}
}

// handle executes one message and applies the error policy.
func (wk *Worker) handle(msg *Message) error {
	err := execute(wk.world, wk.ch, msg)
	wk.opts.Metrics.executed(wk.ch.ID(), msg.Kind(), err)

	if err == nil {
		wk.executed.Add(1)
		return nil
	}

	wk.failed.Add(1)
	if wk.opts.ErrorPolicy == PolicyAbort {
		return err
	}

	wk.logger.Warn("message execution failed",
		zap.Stringer("message_id", msg.ID()),
		zap.Stringer("kind", msg.Kind()),
		zap.Error(err),
	)
	return nil
}
