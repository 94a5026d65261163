// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package commit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storj-thirdparty/corelake/pkg/commit"
	"github.com/storj-thirdparty/corelake/pkg/partition"
	"github.com/storj-thirdparty/corelake/pkg/snapshot"
)

func TestCommitPublishesAppendSnapshot(t *testing.T) {
	snapshots := snapshot.NewManager()
	coord := commit.NewCoordinator(zaptest.NewLogger(t), snapshots, nil, 5)

	msg := commit.Message{Partition: partition.Partition{Schema: []string{"f0"}, Values: map[string]string{"f0": "20230101"}}}
	snap, err := coord.Commit(context.Background(), 1, "writer-a", snapshot.Append, []commit.Message{msg})
	require.NoError(t, err)
	require.EqualValues(t, 1, snap.ID)

	latest, ok := snapshots.LatestID()
	require.True(t, ok)
	require.EqualValues(t, 1, latest)
}

type staticExpiry struct{ expired map[string]bool }

func (s staticExpiry) IsExpired(p partition.Partition) bool { return s.expired[p.Key()] }

func TestCommitRejectsExpiredPartition(t *testing.T) {
	snapshots := snapshot.NewManager()
	p := partition.Partition{Schema: []string{"f0"}, Values: map[string]string{"f0": "20230101"}}
	coord := commit.NewCoordinator(zaptest.NewLogger(t), snapshots, staticExpiry{expired: map[string]bool{p.Key(): true}}, 5)

	_, err := coord.Commit(context.Background(), 1, "writer-a", snapshot.Overwrite, []commit.Message{{Partition: p}})
	require.True(t, errors.Is(err, commit.ErrWritingToExpiredPartition))

	_, ok := snapshots.LatestID()
	require.False(t, ok)
}

func TestFilterAndCommitIsIdempotent(t *testing.T) {
	snapshots := snapshot.NewManager()
	coord := commit.NewCoordinator(zaptest.NewLogger(t), snapshots, nil, 5)

	p := partition.Partition{Schema: []string{"f0"}, Values: map[string]string{"f0": "20230101"}}
	messages := map[int64][]commit.Message{
		0: {{Partition: p}},
		1: {{Partition: p}},
	}

	require.NoError(t, coord.FilterAndCommit(context.Background(), "writer-a", snapshot.Append, messages))
	latestAfterFirst, _ := snapshots.LatestID()

	// Re-running filter_and_commit with the same messages must not
	// re-apply already-published identifiers.
	require.NoError(t, coord.FilterAndCommit(context.Background(), "writer-a", snapshot.Append, messages))
	latestAfterSecond, _ := snapshots.LatestID()

	require.Equal(t, latestAfterFirst, latestAfterSecond)
}

func TestFilterAndCommitAppliesIdentifiersInAscendingOrder(t *testing.T) {
	snapshots := snapshot.NewManager()
	coord := commit.NewCoordinator(zaptest.NewLogger(t), snapshots, nil, 5)

	p := partition.Partition{Schema: []string{"f0"}, Values: map[string]string{"f0": "20230101"}}

	// Keys are inserted out of ascending order; map iteration order is
	// randomized per run, so this would flake under a naive range over
	// messagesByIdentifier if identifiers weren't sorted before committing.
	messages := map[int64][]commit.Message{
		3: {{Partition: p}},
		0: {{Partition: p}},
		4: {{Partition: p}},
		1: {{Partition: p}},
		2: {{Partition: p}},
	}

	require.NoError(t, coord.FilterAndCommit(context.Background(), "writer-a", snapshot.Append, messages))

	latest, err := snapshots.Latest(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 4, latest.CommitIdentifier)
}

func TestFilterAndCommitSkipsExpiredWithoutError(t *testing.T) {
	snapshots := snapshot.NewManager()
	p := partition.Partition{Schema: []string{"f0"}, Values: map[string]string{"f0": "20230101"}}
	coord := commit.NewCoordinator(zaptest.NewLogger(t), snapshots, staticExpiry{expired: map[string]bool{p.Key(): true}}, 5)

	err := coord.FilterAndCommit(context.Background(), "writer-a", snapshot.Append, map[int64][]commit.Message{
		0: {{Partition: p}},
	})
	require.NoError(t, err)

	_, ok := snapshots.LatestID()
	require.False(t, ok)
}
