package reactive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Effect is a scope whose body is re-run whenever a signal it read via Get
// changes. Between runs, and on Stop, its cleanups run in reverse
// registration order and its spawned tasks are cancelled.
type Effect struct {
	outerCtx    context.Context
	outerCancel context.CancelFunc

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	cleanups []func()
	lastErr  error

	rerun chan struct{}
	wg    sync.WaitGroup
}

// NewEffect starts a scope running fn, immediately and again after every
// signal fn reads changes. The scope is bound to ctx: cancelling ctx stops
// it same as calling Stop.
func NewEffect(ctx context.Context, fn func(*Effect) error) *Effect {
	outerCtx, outerCancel := context.WithCancel(ctx)
	e := &Effect{
		outerCtx:    outerCtx,
		outerCancel: outerCancel,
		rerun:       make(chan struct{}, 1),
	}
	e.wg.Add(1)
	go e.loop(fn)
	return e
}

func (e *Effect) loop(fn func(*Effect) error) {
	defer e.wg.Done()
	for {
		e.runOnce(fn)
		select {
		case <-e.outerCtx.Done():
			e.teardown()
			return
		case <-e.rerun:
			e.teardown()
		}
	}
}

func (e *Effect) runOnce(fn func(*Effect) error) {
	genCtx, cancel := context.WithCancel(e.outerCtx)
	group, groupCtx := errgroup.WithContext(genCtx)

	e.mu.Lock()
	e.ctx = groupCtx
	e.cancel = cancel
	e.group = group
	e.cleanups = nil
	e.mu.Unlock()

	err := fn(e)

	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

// teardown cancels the current generation's spawned tasks, waits for them,
// then runs its cleanups LIFO. Called before every re-run and on Stop.
func (e *Effect) teardown() {
	e.mu.Lock()
	cancel := e.cancel
	group := e.group
	cleanups := e.cleanups
	e.cleanups = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// Stop cancels the scope and blocks until its current generation has torn
// down.
func (e *Effect) Stop() {
	e.outerCancel()
	e.wg.Wait()
}

// Err returns the error the most recent run of the effect body returned,
// if any.
func (e *Effect) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Cleanup registers fn to run when this generation tears down, in reverse
// registration order alongside every other cleanup registered in the same
// run.
func (e *Effect) Cleanup(fn func()) {
	e.mu.Lock()
	e.cleanups = append(e.cleanups, fn)
	e.mu.Unlock()
}

// Spawn runs fn as a background task for the lifetime of this generation.
// fn must return once its context is cancelled; Spawn does not force it.
func (e *Effect) Spawn(fn func(context.Context) error) {
	e.mu.Lock()
	group := e.group
	ctx := e.ctx
	e.mu.Unlock()
	group.Go(func() error { return fn(ctx) })
}

// Interval runs fn every period until this generation tears down.
func (e *Effect) Interval(fn func(), period time.Duration) {
	e.Spawn(func(ctx context.Context) error {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				fn()
			}
		}
	})
}

// Effect starts fn as a child scope, torn down when this generation tears
// down (either on this effect's re-run or on Stop).
func (e *Effect) Effect(fn func(*Effect) error) {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	child := NewEffect(ctx, fn)
	e.Cleanup(child.Stop)
}

// watch arranges for a rerun to be scheduled when ch closes, as long as
// the current generation is still live.
func (e *Effect) watch(ch <-chan struct{}) {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()

	go func() {
		select {
		case <-ch:
			select {
			case e.rerun <- struct{}{}:
			default:
			}
		case <-ctx.Done():
		}
	}()
}
