package mcpmgr

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// errRaceTimeout is returned by race when the timer settles first.
var errRaceTimeout = errors.New("mcpmgr: timer fired first")

type raceResult[T any] struct {
	val T
	err error
}

// race runs op against a timer and the caller's context. Exactly one side
// settles the race. When the timer or ctx wins, abort is invoked so op can
// unwind, and a value op produces later is handed to discard instead of being
// returned. op must observe the context abort cancels.
func race[T any](ctx context.Context, timeout time.Duration, abort func(), op func() (T, error), discard func(T)) (T, error) {
	var settled atomic.Bool
	done := make(chan raceResult[T], 1)

	go func() {
		val, err := op()
		if settled.CompareAndSwap(false, true) {
			done <- raceResult[T]{val: val, err: err}
			return
		}
		if err == nil && discard != nil {
			discard(val)
		}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var lost error
	select {
	case res := <-done:
		return res.val, res.err
	case <-timer.C:
		lost = errRaceTimeout
	case <-ctx.Done():
		lost = ctx.Err()
	}

	if !settled.CompareAndSwap(false, true) {
		// op settled between the timer firing and the CAS; its result stands.
		res := <-done
		return res.val, res.err
	}
	if abort != nil {
		abort()
	}
	var zero T
	return zero, lost
}
