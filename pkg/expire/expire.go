// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package expire implements the Partition Expire Controller: enumerating
// live partitions, computing which are past their retention window, and
// retiring them in batches via OVERWRITE commits and catalog notification.
// It also exposes the currently-expired set as the commit coordinator's
// write guard.
package expire

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/internal/sync2"
	"github.com/storj-thirdparty/corelake/pkg/catalog"
	"github.com/storj-thirdparty/corelake/pkg/commit"
	"github.com/storj-thirdparty/corelake/pkg/partition"
	"github.com/storj-thirdparty/corelake/pkg/snapshot"
)

// Error is the class for expire-controller failures.
var Error = errs.Class("expire")

// PartitionLister enumerates the partitions live under a snapshot, the
// manifest-listing collaborator the controller consults in step 3 of
// expire. A production implementation walks the snapshot's manifest
// lists; tests and the reference CLI use an in-memory list.
type PartitionLister interface {
	ListLivePartitions(ctx context.Context, snap *snapshot.Snapshot) ([]partition.Partition, error)
}

// Options configures one table's expiration policy.
type Options struct {
	CheckInterval      time.Duration
	ExpirationTime     time.Duration
	TimestampFormatter string
	TimestampPattern   string
	BatchSize          int
	MaxExpires         int
}

// Controller implements the expire(now, commit_identifier) operation and
// tracks the currently-expired partition set for the commit coordinator's
// write guard.
type Controller struct {
	log       *zap.Logger
	lister    PartitionLister
	snapshots *snapshot.Manager
	commits   *commit.Coordinator
	handler   catalog.PartitionHandler
	opts      Options

	mu            sync.Mutex
	lastCheckTime time.Time
	expired       map[string]bool

	now func() time.Time
}

// New constructs a Controller. handler may be catalog.NopHandler{} when
// metastore.partitioned-table is false.
func New(log *zap.Logger, lister PartitionLister, snapshots *snapshot.Manager, commits *commit.Coordinator, handler catalog.PartitionHandler, opts Options) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		log:       log,
		lister:    lister,
		snapshots: snapshots,
		commits:   commits,
		handler:   handler,
		opts:      opts,
		expired:   make(map[string]bool),
		now:       time.Now,
	}
}

// TestingSetNow overrides the controller's clock; tests use this instead
// of sleeping past check_interval.
func (c *Controller) TestingSetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// IsExpired implements commit.ExpiryChecker against the set computed by
// the most recent successful Expire call.
func (c *Controller) IsExpired(p partition.Partition) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired[p.Key()]
}

type derivedPartition struct {
	partition partition.Partition
	timestamp time.Time
}

// Expire runs one expiration pass at the controller's current clock
// reading, committing drops under commitIdentifier/commitUser. It returns
// false without doing any work if check_interval has not elapsed since the
// last check, or if ExpirationTime is not positive (expiration disabled).
func (c *Controller) Expire(ctx context.Context, commitIdentifier int64, commitUser string) (bool, error) {
	if c.opts.ExpirationTime <= 0 {
		return false, nil
	}
	c.mu.Lock()
	now := c.now()
	bootstrapping := c.lastCheckTime.IsZero()
	if bootstrapping {
		// The first call of a session has no baseline to measure
		// check_interval against; it primes last_check_time and defers
		// the actual expire work to the next call, so a rapid restart
		// cannot run two expire passes back to back.
		c.lastCheckTime = now
		c.mu.Unlock()
		return false, nil
	}
	if now.Sub(c.lastCheckTime) < c.opts.CheckInterval {
		c.mu.Unlock()
		return false, nil
	}
	// last_check_time advances even if this pass finds nothing to expire,
	// so another call before the next interval boundary does not re-run
	// the (possibly expensive) partition enumeration.
	c.lastCheckTime = now
	c.mu.Unlock()

	snap, err := c.snapshots.Latest(ctx)
	if err != nil {
		return false, Error.Wrap(err)
	}

	live, err := c.lister.ListLivePartitions(ctx, snap)
	if err != nil {
		return false, Error.Wrap(err)
	}

	var expired []derivedPartition
	preserved := make(map[string]bool, len(live))
	for _, p := range live {
		ts, err := partition.Timestamp(p, c.opts.TimestampPattern, c.opts.TimestampFormatter)
		if err != nil {
			// Unparseable partitions are opaque and must never be
			// silently dropped.
			preserved[p.Key()] = true
			continue
		}
		if ts.Add(c.opts.ExpirationTime).Before(now) || ts.Add(c.opts.ExpirationTime).Equal(now) {
			expired = append(expired, derivedPartition{partition: p, timestamp: ts})
		} else {
			preserved[p.Key()] = true
		}
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].timestamp.Before(expired[j].timestamp) })
	if c.opts.MaxExpires > 0 && len(expired) > c.opts.MaxExpires {
		expired = expired[:c.opts.MaxExpires]
	}

	batchSize := c.opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(expired)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	newlyExpired := make(map[string]bool, len(expired))
	for start := 0; start < len(expired); start += batchSize {
		end := start + batchSize
		if end > len(expired) {
			end = len(expired)
		}
		chunk := expired[start:end]

		partitions := make([]partition.Partition, len(chunk))
		for i, d := range chunk {
			partitions[i] = d.partition
			newlyExpired[d.partition.Key()] = true
		}

		if _, err := c.commits.Commit(ctx, commitIdentifier, commitUser, snapshot.Overwrite, dropMessages(partitions)); err != nil {
			return false, Error.Wrap(err)
		}
		if err := c.handler.DropPartitions(ctx, partitions); err != nil {
			return false, Error.Wrap(err)
		}
		c.log.Info("dropped expired partitions", zap.Int("count", len(partitions)))
	}

	c.mu.Lock()
	c.expired = newlyExpired
	c.mu.Unlock()

	return true, nil
}

func dropMessages(partitions []partition.Partition) []commit.Message {
	messages := make([]commit.Message, len(partitions))
	for i, p := range partitions {
		messages[i] = commit.Message{Partition: p}
	}
	return messages
}

// Chore wraps Controller in a periodic sync2.Cycle so it can run
// unattended alongside writer activity.
type Chore struct {
	log        *zap.Logger
	controller *Controller
	identifier func() int64
	user       string

	// Loop drives periodic execution; tests call Loop.Pause/Restart/
	// TriggerWait instead of sleeping past the real interval.
	Loop *sync2.Cycle
}

// NewChore constructs a Chore that calls controller.Expire once per
// interval, deriving the commit identifier for each pass from identifier.
func NewChore(log *zap.Logger, interval time.Duration, controller *Controller, user string, identifier func() int64) *Chore {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chore{
		log:        log,
		controller: controller,
		identifier: identifier,
		user:       user,
		Loop:       sync2.NewCycle(interval),
	}
}

// Run starts the chore; it blocks until ctx is cancelled or the loop is
// stopped.
func (chore *Chore) Run(ctx context.Context) error {
	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		_, err := chore.controller.Expire(ctx, chore.identifier(), chore.user)
		if err != nil {
			chore.log.Error("expire pass failed", zap.Error(err))
		}
		return nil
	})
}

// Close stops the chore's loop.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}
