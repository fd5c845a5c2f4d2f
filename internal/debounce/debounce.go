// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package debounce coalesces bursts of calls into a single action that runs
// once a quiet period has elapsed.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period used when New receives a non-positive window.
const DefaultWindow = 1500 * time.Millisecond

// Timer is the handle returned by an AfterFunc. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Timer

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithAfterFunc replaces the timer source. Tests pass a fake clock here.
func WithAfterFunc(fn AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = fn
	}
}

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler runs at most one action per quiet window. Each Schedule call
// replaces the pending action and restarts the window; the action runs only
// when the window elapses without another Schedule or a Cancel.
type Scheduler struct {
	window    time.Duration
	afterFunc AfterFunc

	mu      sync.Mutex
	timer   Timer
	pending func()
	gen     uint64 // bumped on every Schedule and Cancel
}

// New creates a Scheduler with the given window.
func New(window time.Duration, options ...Option) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}

	s := &Scheduler{
		window:    window,
		afterFunc: realAfterFunc,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Window returns the quiet period.
func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule records action as the pending action and restarts the window.
// A previously pending action is discarded and never runs.
func (s *Scheduler) Schedule(action func()) {
	if action == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.pending = action
	s.timer = s.afterFunc(s.window, func() { s.fire(gen) })
}

// Cancel drops the pending action, if any. It is safe to call repeatedly.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	s.pending = nil
}

// Pending reports whether an action is waiting for its window to elapse.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending != nil
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// fire runs the pending action if no Schedule or Cancel happened since the
// timer for gen was started. A timer whose callback was already running
// when it got superseded finds a newer generation and returns.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	action := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	action()
}
