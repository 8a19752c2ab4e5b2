package actorutil

import (
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var ErrNilResult = errors.New("background task returned no result")

// BackgroundTask runs a blocking call (typically bridge I/O) and turns its
// outcome into a message. Errors are either mapped to a value with Recover or
// handed to OnError.
type BackgroundTask[T any] struct {
	ctx     actor.Context
	fn      func() (*T, error)
	timeout *time.Duration
	onError func(error)
	recover func(error) T
}

func NewBackgroundTask[T any](ctx actor.Context, fn func() (*T, error)) *BackgroundTask[T] {
	return &BackgroundTask[T]{
		ctx: ctx,
		fn:  fn,
	}
}

func (t *BackgroundTask[T]) WithTimeout(timeout time.Duration) *BackgroundTask[T] {
	t.timeout = &timeout
	return t
}

func (t *BackgroundTask[T]) OnError(fn func(error)) *BackgroundTask[T] {
	t.onError = fn
	return t
}

func (t *BackgroundTask[T]) Recover(fn func(error) T) *BackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeTo sends the result, or the recovered value, to pid.
func (t *BackgroundTask[T]) PipeTo(pid *actor.PID) {
	if value, ok := t.run(); ok {
		t.ctx.Send(pid, value)
	}
}

func (t *BackgroundTask[T]) run() (T, bool) {
	bg := io.Map(io.Eval(t.fn), func(a *T) T {
		if a != nil {
			return *a
		}
		panic(ErrNilResult)
	})
	if t.timeout != nil {
		bg = io.WithTimeout[T](*t.timeout)(bg)
	}
	result := io.RunSync(bg)
	if result.Error == nil {
		return result.Value, true
	}
	if t.recover != nil {
		return t.recover(result.Error), true
	}
	if t.onError != nil {
		t.onError(result.Error)
	}
	var zero T
	return zero, false
}
