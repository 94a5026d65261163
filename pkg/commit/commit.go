// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package commit implements the narrow commit-coordinator surface: atomic
// snapshot publication with optimistic-concurrency retry, idempotent
// filter-and-commit for writers racing an expire pass, and the write
// guard that rejects commits targeting an expired partition.
package commit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/partition"
	"github.com/storj-thirdparty/corelake/pkg/snapshot"
)

// Error is the class for commit-coordinator failures.
var Error = errs.Class("commit")

// ErrWritingToExpiredPartition is returned by Commit when any target
// partition is currently expired; the error carries the offending
// partitions for the caller to report.
var ErrWritingToExpiredPartition = Error.New("writing to expired partition")

// State is a single commit attempt's position in its state machine.
type State int

const (
	// Preparing is the initial state: messages assembled, nothing sent.
	Preparing State = iota
	// Submitted means a snapshot publish attempt is in flight.
	Submitted
	// Succeeded is terminal: the snapshot is now the latest.
	Succeeded
	// Conflicted means another writer advanced latest first; the
	// coordinator rebuilds from a fresh base snapshot and retries,
	// transitioning back to Preparing.
	Conflicted
	// Rejected is terminal: the write guard or another fatal check failed.
	Rejected
)

// DataIncrement describes the files a commit adds, alongside any files it
// is compacting away.
type DataIncrement struct {
	NewFiles      []keyvalue.DataFileMeta
	CompactBefore []keyvalue.DataFileMeta
	CompactAfter  []keyvalue.DataFileMeta
}

// CompactIncrement describes a commit whose sole change is replacing
// CompactBefore with CompactAfter.
type CompactIncrement struct {
	CompactedFiles []keyvalue.DataFileMeta
	CompactBefore  []keyvalue.DataFileMeta
	CompactAfter   []keyvalue.DataFileMeta
}

// Message is one partition/bucket's contribution to a commit.
type Message struct {
	Partition    partition.Partition
	Bucket       int
	TotalBuckets int
	Data         *DataIncrement
	Compact      *CompactIncrement
}

// ExpiryChecker reports whether a partition is currently expired; the
// Partition Expire Controller implements this for the write guard.
type ExpiryChecker interface {
	IsExpired(p partition.Partition) bool
}

// alwaysLive is the default ExpiryChecker for tables without expiration
// configured.
type alwaysLive struct{}

func (alwaysLive) IsExpired(partition.Partition) bool { return false }

// Coordinator publishes snapshots with optimistic-concurrency retry and
// provides the idempotent filter_and_commit entrypoint.
type Coordinator struct {
	log         *zap.Logger
	snapshots   *snapshot.Manager
	expiry      ExpiryChecker
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

// NewCoordinator constructs a Coordinator. expiry may be nil, in which
// case no partition is ever considered expired. maxAttempts bounds the
// optimistic-concurrency retry loop on identifier conflict.
func NewCoordinator(log *zap.Logger, snapshots *snapshot.Manager, expiry ExpiryChecker, maxAttempts uint64) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if expiry == nil {
		expiry = alwaysLive{}
	}
	if maxAttempts == 0 {
		maxAttempts = 10
	}
	return &Coordinator{
		log:         log,
		snapshots:   snapshots,
		expiry:      expiry,
		maxAttempts: maxAttempts,
		newBackOff:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// partitionsOf collects the distinct partitions a message set touches.
func partitionsOf(messages []Message) []partition.Partition {
	seen := make(map[string]bool)
	var out []partition.Partition
	for _, msg := range messages {
		key := msg.Partition.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, msg.Partition)
	}
	return out
}

// Commit atomically publishes a new snapshot of kind for messages under
// identifier/user, retrying on identifier conflict with exponential
// backoff up to maxAttempts. It fails fast with
// ErrWritingToExpiredPartition without ever entering the retry loop if
// any target partition is expired.
func (c *Coordinator) Commit(ctx context.Context, identifier int64, user string, kind snapshot.CommitKind, messages []Message) (snapshot.Snapshot, error) {
	var expired []partition.Partition
	for _, p := range partitionsOf(messages) {
		if c.expiry.IsExpired(p) {
			expired = append(expired, p)
		}
	}
	if len(expired) > 0 {
		return snapshot.Snapshot{}, Error.Wrap(fmt.Errorf("%w: %v", ErrWritingToExpiredPartition, expired))
	}

	var published snapshot.Snapshot
	attempt := 0
	operation := func() error {
		attempt++
		prev, hasAny := c.snapshots.LatestID()
		if !hasAny {
			prev = 0
		}
		candidate := snapshot.Snapshot{
			ID:               prev + 1,
			Kind:             kind,
			CommitIdentifier: identifier,
			CommitUser:       user,
		}
		err := c.snapshots.PublishIfLatest(prev, candidate)
		if err != nil {
			c.log.Debug("commit conflict, retrying with fresh base", zap.Int64("identifier", identifier), zap.Int("attempt", attempt))
			return err
		}
		published = candidate
		return nil
	}

	policy := backoff.WithMaxRetries(c.newBackOff(), c.maxAttempts)
	if err := backoff.Retry(operation, policy); err != nil {
		return snapshot.Snapshot{}, Error.Wrap(err)
	}
	return published, nil
}

// FilterAndCommit commits each identifier's messages, skipping any whose
// commit_identifier/user pair already appears in the snapshot log — the
// idempotent path for writers that prepared commits before an expire
// pass landed. It never returns an error for messages whose target
// partitions were expired after preparation but whose data was already
// published under a prior snapshot; such messages are recognized via the
// snapshot log and simply skipped.
func (c *Coordinator) FilterAndCommit(ctx context.Context, user string, kind snapshot.CommitKind, messagesByIdentifier map[int64][]Message) error {
	identifiers := make([]int64, 0, len(messagesByIdentifier))
	for identifier := range messagesByIdentifier {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(i, j int) bool { return identifiers[i] < identifiers[j] })

	for _, identifier := range identifiers {
		messages := messagesByIdentifier[identifier]
		if _, ok := c.snapshots.FindByCommitIdentifier(identifier, user); ok {
			c.log.Debug("commit already applied, skipping", zap.Int64("identifier", identifier))
			continue
		}
		if _, err := c.Commit(ctx, identifier, user, kind, messages); err != nil {
			if errors.Is(err, ErrWritingToExpiredPartition) {
				c.log.Debug("commit target expired after preparation, skipping", zap.Int64("identifier", identifier))
				continue
			}
			return Error.Wrap(err)
		}
	}
	return nil
}
