// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

// Package sync2 provides a small set of concurrency helpers used by the
// core's periodic chores (partition expiration).
package sync2

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Cycle runs a function repeatedly on an interval, and allows callers to
// pause, restart or manually trigger runs. This makes periodic chores
// testable without needing to sleep past their interval.
type Cycle struct {
	init     sync.Once
	interval time.Duration

	control chan cycleControl
	done    chan struct{}

	stopOnce sync.Once
}

type cycleControl struct {
	name     string
	interval time.Duration
	wait     chan struct{}
}

// NewCycle creates a new cycle with a given interval.
func NewCycle(interval time.Duration) *Cycle {
	cycle := &Cycle{}
	cycle.SetInterval(interval)
	return cycle
}

func (cycle *Cycle) initialize() {
	cycle.init.Do(func() {
		cycle.control = make(chan cycleControl)
		cycle.done = make(chan struct{})
	})
}

// SetInterval allows to change the interval before starting.
func (cycle *Cycle) SetInterval(interval time.Duration) {
	cycle.initialize()
	cycle.interval = interval
}

// Start starts a loop that runs fn on the cycle's interval until the group
// completes or the context is cancelled.
func (cycle *Cycle) Start(ctx context.Context, group *errgroup.Group, fn func(ctx context.Context) error) {
	cycle.initialize()
	group.Go(func() error {
		return cycle.Run(ctx, fn)
	})
}

// Run runs the cycle until the context is cancelled or Close/Stop is called.
func (cycle *Cycle) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	cycle.initialize()

	timer := time.NewTimer(cycle.safeInterval())
	defer timer.Stop()

	paused := cycle.interval <= 0
	if !paused {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	for {
		if paused {
			timer.Stop()
		} else {
			resetTimer(timer, cycle.safeInterval())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-cycle.done:
			return nil
		case control := <-cycle.control:
			switch control.name {
			case "pause":
				paused = true
			case "restart":
				paused = false
				if control.wait != nil {
					close(control.wait)
				}
				continue
			case "interval":
				cycle.interval = control.interval
				if control.wait != nil {
					close(control.wait)
				}
				continue
			case "trigger":
				if err := fn(ctx); err != nil {
					return err
				}
				if control.wait != nil {
					close(control.wait)
				}
				continue
			}
			if control.wait != nil {
				close(control.wait)
			}
			continue
		case <-timer.C:
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}

func (cycle *Cycle) safeInterval() time.Duration {
	if cycle.interval <= 0 {
		return time.Hour
	}
	return cycle.interval
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

func (cycle *Cycle) send(control cycleControl) {
	cycle.initialize()
	select {
	case cycle.control <- control:
	case <-cycle.done:
	}
}

// Pause pauses the cycle; it stops triggering fn on the interval.
func (cycle *Cycle) Pause() {
	cycle.send(cycleControl{name: "pause"})
}

// Restart resets the interval and resumes a paused cycle.
func (cycle *Cycle) Restart() {
	cycle.send(cycleControl{name: "restart"})
}

// ChangeInterval sets the interval and resets the timer.
func (cycle *Cycle) ChangeInterval(interval time.Duration) {
	wait := make(chan struct{})
	cycle.send(cycleControl{name: "interval", interval: interval, wait: wait})
	<-wait
}

// Trigger requests the cycle to run fn as soon as possible, without
// waiting for it to complete.
func (cycle *Cycle) Trigger() {
	cycle.send(cycleControl{name: "trigger"})
}

// TriggerWait requests the cycle to run fn and waits for it to complete.
func (cycle *Cycle) TriggerWait() {
	wait := make(chan struct{})
	cycle.send(cycleControl{name: "trigger", wait: wait})
	select {
	case <-wait:
	case <-cycle.done:
	}
}

// Stop stops the cycle permanently, signaling the running loop to exit.
func (cycle *Cycle) Stop() {
	cycle.initialize()
	cycle.stopOnce.Do(func() {
		close(cycle.done)
	})
}

// Close releases resources associated with the cycle.
func (cycle *Cycle) Close() {
	cycle.Stop()
}
