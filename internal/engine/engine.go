// Package engine defines the contract of the authoritative simulation
// engine the routing core drives, and a timeout guard around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngine is the root of every engine failure.
	ErrEngine = errors.New("engine: failure")
	// ErrRejected means the engine refused a command.
	ErrRejected = fmt.Errorf("%w: command rejected", ErrEngine)
	// ErrTimeout means the engine did not answer in time. Sessions treat it
	// as fatal.
	ErrTimeout = fmt.Errorf("%w: timed out", ErrEngine)
	// ErrClosed is returned after the connection to a remote engine is gone.
	ErrClosed = fmt.Errorf("%w: closed", ErrEngine)
)

// Engine is the simulation engine. Snapshot and GraphDefinition return
// structured text: snapshot JSON and graph JSON respectively.
type Engine interface {
	Snapshot(ctx context.Context) ([]byte, error)
	GraphDefinition(ctx context.Context) ([]byte, error)
	Start(ctx context.Context) error
	Advance(ctx context.Context) error
	Active(ctx context.Context) (bool, error)
	MoveAgent(ctx context.Context, agentID, node int) error
	SpawnAgent(ctx context.Context, node int) (int, error)
}

// DefaultTimeout bounds each engine call.
const DefaultTimeout = 2 * time.Second

// Timed wraps an Engine so every call is bounded by Timeout. A call that
// hangs past the deadline returns ErrTimeout; the goroutine running it is
// abandoned and its result discarded.
type Timed struct {
	Engine  Engine
	Timeout time.Duration
}

// WithTimeout guards e. A non-positive d selects DefaultTimeout.
func WithTimeout(e Engine, d time.Duration) *Timed {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &Timed{Engine: e, Timeout: d}
}

func (t *Timed) Snapshot(ctx context.Context) ([]byte, error) {
	return bounded(ctx, t.Timeout, t.Engine.Snapshot)
}

func (t *Timed) GraphDefinition(ctx context.Context) ([]byte, error) {
	return bounded(ctx, t.Timeout, t.Engine.GraphDefinition)
}

func (t *Timed) Start(ctx context.Context) error {
	_, err := bounded(ctx, t.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.Engine.Start(ctx)
	})
	return err
}

func (t *Timed) Advance(ctx context.Context) error {
	_, err := bounded(ctx, t.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.Engine.Advance(ctx)
	})
	return err
}

func (t *Timed) Active(ctx context.Context) (bool, error) {
	return bounded(ctx, t.Timeout, t.Engine.Active)
}

func (t *Timed) MoveAgent(ctx context.Context, agentID, node int) error {
	_, err := bounded(ctx, t.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, t.Engine.MoveAgent(ctx, agentID, node)
	})
	return err
}

func (t *Timed) SpawnAgent(ctx context.Context, node int) (int, error) {
	return bounded(ctx, t.Timeout, func(ctx context.Context) (int, error) {
		return t.Engine.SpawnAgent(ctx, node)
	})
}

type result[T any] struct {
	v   T
	err error
}

func bounded[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- result[T]{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %v", ErrTimeout, d)
		}
		return zero, ctx.Err()
	}
}

// Fatal reports whether err must end the session without a retry.
func Fatal(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled)
}
