/*
 * // Copyright 2020 Insolar Network Ltd.
 * // All rights reserved.
 * // This material is licensed under the Insolar License version 1.0,
 * // available at https://github.com/insolar/assured-ledger/blob/master/LICENSE.md.
 */

package insertbot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Clock is the timing facility used for run deadlines and elapsed time
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled one-shot call
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall clock
var RealClock Clock = realClock{}

// Signal is a one-shot stop flag, one writer (the timer) and many readers (workers)
type Signal struct {
	fired   atomic.Bool
	once    sync.Once
	done    chan struct{}
	timer   Timer
	release chan struct{}
	relOnce sync.Once
}

// StartTimer schedules exactly one firing after d, cancellation of ctx fires it early
func StartTimer(ctx context.Context, c Clock, d time.Duration) *Signal {
	s := &Signal{
		done:    make(chan struct{}),
		release: make(chan struct{}),
	}
	s.timer = c.AfterFunc(d, s.fire)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.fire()
			case <-s.done:
			case <-s.release:
			}
		}()
	}
	return s
}

func (s *Signal) fire() {
	s.once.Do(func() {
		s.fired.Store(true)
		close(s.done)
	})
}

// IsSet reports whether the signal fired, safe for concurrent polling
func (s *Signal) IsSet() bool {
	return s.fired.Load()
}

// Done is closed when the signal fires
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Release stops the pending timer without firing, a fired signal stays fired
func (s *Signal) Release() {
	s.relOnce.Do(func() {
		s.timer.Stop()
		close(s.release)
	})
}
