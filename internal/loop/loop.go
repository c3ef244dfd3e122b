// Package loop runs work on a single goroutine. Everything that touches the
// shared execution context is funnelled through one Loop so fragments and
// connection events never interleave.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("loop stopped")

type job struct {
	fn   func()
	done chan error
}

// Loop serializes jobs onto the goroutine running Run.
type Loop struct {
	jobs    chan job
	stopped chan struct{}
	log     *zap.Logger
}

// New creates a Loop. Nothing runs until Run is called.
func New(log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{
		jobs:    make(chan job),
		stopped: make(chan struct{}),
		log:     log,
	}
}

// Run processes jobs until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	l.log.Debug("loop started")
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("loop stopped")
			return nil
		case j := <-l.jobs:
			j.done <- l.run(j.fn)
		}
	}
}

func (l *Loop) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("job panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// Do runs fn on the loop goroutine and waits for it to finish. It must not be
// called from inside a job.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case l.jobs <- j:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// Once accepted the job always completes, so wait for it even if ctx
	// ends in the meantime.
	return <-j.done
}

// Stopped is closed when Run returns.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}
