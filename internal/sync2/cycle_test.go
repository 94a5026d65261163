// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information

package sync2_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/storj-thirdparty/corelake/internal/sync2"
)

// TestCycleDrivesExpirePassesOnDemand exercises the Cycle the way
// pkg/expire.Chore uses it: after the initial pass that Start runs, Pause
// stops the interval so the passes counted next are exactly those forced
// via Trigger/TriggerWait, then Restart resumes the interval-driven
// schedule, which must produce further passes during a 3s sleep.
func TestCycleDrivesExpirePassesOnDemand(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	var inplace sync2.Cycle
	inplace.SetInterval(time.Second)

	var pointer = sync2.NewCycle(time.Second)

	for _, cycle := range []*sync2.Cycle{pointer, &inplace} {
		cycle := cycle
		t.Run("", func(t *testing.T) {
			defer cycle.Close()

			t.Parallel()

			passes := int64(0)

			var group errgroup.Group

			start := time.Now()

			cycle.Start(ctx, &group, func(ctx context.Context) error {
				atomic.AddInt64(&passes, 1)
				return nil
			})

			group.Go(func() error {
				defer cycle.Stop()

				const expiredPartitionBatches = 10
				cycle.Pause()

				passesBeforeTriggers := atomic.LoadInt64(&passes)
				for i := 0; i < expiredPartitionBatches-1; i++ {
					cycle.Trigger()
				}
				cycle.TriggerWait()
				passesAfterTriggers := atomic.LoadInt64(&passes)

				change := passesAfterTriggers - passesBeforeTriggers
				if expiredPartitionBatches != change {
					return fmt.Errorf("invalid triggered passes: expected %d got %d", expiredPartitionBatches, change)
				}

				cycle.Restart()
				time.Sleep(3 * time.Second)

				passesAfterRestart := atomic.LoadInt64(&passes)
				if passesAfterRestart == passesAfterTriggers {
					return fmt.Errorf("cycle did not resume its interval after Restart")
				}

				return nil
			})

			err := group.Wait()
			if err != nil {
				t.Error(err)
			}

			testDuration := time.Since(start)
			if testDuration > 7*time.Second {
				t.Errorf("test took too long %v, expected approximately 3s", testDuration)
			}

			// A Trigger after Stop must not block the caller (the chore's
			// own shutdown path relies on this).
			cycle.Trigger()
		})
	}
}

// TestCycleWithZeroIntervalNeverFiresWithoutTrigger models a chore
// configured with no check interval: Expire must never run on its own,
// only Stop (triggered by context shutdown) should unblock Run.
func TestCycleWithZeroIntervalNeverFiresWithoutTrigger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	cycle := sync2.NewCycle(0)

	var group errgroup.Group
	cycle.Start(ctx, &group, func(ctx context.Context) error {
		panic("expire pass must not run without a trigger or a positive interval")
	})

	go func() {
		time.Sleep(time.Second)
		cycle.Stop()
	}()

	require.NoError(t, group.Wait())
}

// TestCycleTriggerWaitRunsExactlyOnePass confirms TriggerWait runs the
// wrapped function exactly once and blocks until it completes, the
// property pkg/expire's deterministic tests rely on instead of sleeping
// past check_interval.
func TestCycleTriggerWaitRunsExactlyOnePass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cycle := sync2.NewCycle(0)

	var group errgroup.Group
	var passes int64
	cycle.Start(ctx, &group, func(ctx context.Context) error {
		atomic.AddInt64(&passes, 1)
		return nil
	})

	time.Sleep(time.Second)
	require.Equal(t, atomic.LoadInt64(&passes), int64(0))

	cycle.TriggerWait()
	require.Equal(t, atomic.LoadInt64(&passes), int64(1))

	cycle.Stop()
	require.NoError(t, group.Wait())
}
