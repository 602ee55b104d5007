package signals

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrInterrupted matches every *InterruptedError under errors.Is.
var ErrInterrupted = errors.New("interrupted")

// InterruptedError reports that a wait was abandoned because the
// operator sent a signal.
type InterruptedError struct {
	Kind Kind
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by %s signal", e.Kind)
}

// Is makes errors.Is(err, ErrInterrupted) hold for any kind.
func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}

// Outcome is the completed result of an operation.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Await blocks until done yields an outcome, a signal not listed in
// ignore arrives on sub, or ctx is cancelled.  An outcome that is
// already available when a signal or cancellation is observed wins.
// Ignored signals are consumed and the wait continues.
//
// Await never stops the operation behind done; callers release the
// underlying resource themselves when it returns an error.
func Await[T any](ctx context.Context, sub *Subscription, done <-chan Outcome[T], ignore ...Kind) (T, error) {
	var zero T
	var sigs <-chan Kind
	if sub != nil {
		sigs = sub.C
	}
	for {
		select {
		case o := <-done:
			return o.Value, o.Err
		case kind, ok := <-sigs:
			if !ok {
				sigs = nil
				continue
			}
			select {
			case o := <-done:
				return o.Value, o.Err
			default:
			}
			if slices.Contains(ignore, kind) {
				continue
			}
			return zero, &InterruptedError{Kind: kind}
		case <-ctx.Done():
			select {
			case o := <-done:
				return o.Value, o.Err
			default:
			}
			return zero, context.Cause(ctx)
		}
	}
}

// Race runs op on its own goroutine and awaits it as Await does.  When
// Race returns early, op keeps running until it finishes on its own; its
// result is discarded.
func Race[T any](ctx context.Context, sub *Subscription, op func() (T, error), ignore ...Kind) (T, error) {
	done := make(chan Outcome[T], 1)
	go func() {
		v, err := op()
		done <- Outcome[T]{Value: v, Err: err}
	}()
	return Await(ctx, sub, done, ignore...)
}

// Do is Race for operations that produce no value.
func Do(ctx context.Context, sub *Subscription, op func() error, ignore ...Kind) error {
	_, err := Race(ctx, sub, func() (struct{}, error) {
		return struct{}{}, op()
	}, ignore...)
	return err
}
