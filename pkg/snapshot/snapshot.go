// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package snapshot implements the versioned metadata registry: given a
// snapshot id, look up its manifest lists, schema id and commit kind, and
// answer earliest/latest/iteration queries over the snapshot log.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zeebo/errs"
)

// Error is the class for all snapshot registry failures.
var Error = errs.Class("snapshot")

// ErrGone is returned by TryGet when an id falls within
// [EarliestID, LatestID] but the snapshot itself is missing — typically
// because a concurrent snapshot-expiration pass (outside this core's
// scope) removed it.
var ErrGone = Error.New("snapshot gone")

// ErrOutOfRange is returned by TryGet when an id falls outside
// [EarliestID, LatestID].
var ErrOutOfRange = Error.New("snapshot out of range")

// CommitKind classifies the nature of the change a snapshot publishes.
type CommitKind int

const (
	// Append adds new files without removing any.
	Append CommitKind = iota
	// Compact replaces files with compacted equivalents.
	Compact
	// Overwrite replaces prior content outright; partition drops are
	// always Overwrite.
	Overwrite
)

func (k CommitKind) String() string {
	switch k {
	case Append:
		return "APPEND"
	case Compact:
		return "COMPACT"
	case Overwrite:
		return "OVERWRITE"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a versioned metadata pointer.
type Snapshot struct {
	ID                    int64
	Kind                  CommitKind
	SchemaID              int64
	BaseManifestList      string
	DeltaManifestList     string
	ChangelogManifestList string
	// CommitIdentifier is the writer-provided monotonic tag correlating a
	// prepared commit with the snapshot that publishes it.
	CommitIdentifier int64
	CommitUser       string
}

// Manager is the versioned metadata registry consumed by the rest of the
// core. A production implementation persists the log to the table's
// metadata directory via FileIO; Manager here is an in-memory reference
// implementation used by tests and by the commit coordinator as its
// source of truth for the "latest" pointer.
type Manager struct {
	mu        sync.RWMutex
	snapshots map[int64]*Snapshot
	earliest  int64
	latest    int64
	hasAny    bool
}

// NewManager returns an empty registry.
func NewManager() *Manager {
	return &Manager{snapshots: make(map[int64]*Snapshot)}
}

// TryGet returns the snapshot for id, or ErrGone/ErrOutOfRange annotated
// with the currently available range.
func (m *Manager) TryGet(ctx context.Context, id int64) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasAny {
		return nil, Error.Wrap(fmt.Errorf("%w: no snapshots exist", ErrOutOfRange))
	}
	if id < m.earliest || id > m.latest {
		return nil, Error.Wrap(fmt.Errorf("%w: id %d not in [%d, %d]", ErrOutOfRange, id, m.earliest, m.latest))
	}
	snap, ok := m.snapshots[id]
	if !ok {
		return nil, Error.Wrap(fmt.Errorf("%w: id %d missing from [%d, %d]", ErrGone, id, m.earliest, m.latest))
	}
	return snap, nil
}

// EarliestID returns the lowest id currently retained.
func (m *Manager) EarliestID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.earliest, m.hasAny
}

// LatestID returns the highest id currently retained.
func (m *Manager) LatestID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasAny
}

// Latest returns the most recently committed snapshot.
func (m *Manager) Latest(ctx context.Context) (*Snapshot, error) {
	id, ok := m.LatestID()
	if !ok {
		return nil, Error.Wrap(fmt.Errorf("%w: no snapshots exist", ErrOutOfRange))
	}
	return m.TryGet(ctx, id)
}

// IterSnapshots returns the full snapshot log ordered by id. It is
// "lazy" only in the sense that it walks the in-memory map once; a
// disk-backed Manager would stream manifests instead.
func (m *Manager) IterSnapshots() []*Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Publish appends a new snapshot and advances the latest pointer. Callers
// needing optimistic-concurrency semantics should go through
// pkg/commit.Coordinator instead of calling Publish directly.
func (m *Manager) Publish(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := !m.hasAny
	if first {
		m.earliest = snap.ID
		m.latest = snap.ID
		m.hasAny = true
	}
	m.snapshots[snap.ID] = &snap
	if !first && snap.ID > m.latest {
		m.latest = snap.ID
	}
}

// ErrConflict is returned by PublishIfLatest when another writer has
// already advanced the latest pointer past expectedPrevID.
var ErrConflict = Error.New("commit conflict")

// PublishIfLatest publishes snap only if the current latest id equals
// expectedPrevID (0 with hasAny false counts as "no snapshots yet"),
// giving callers compare-and-swap semantics for the single "latest"
// pointer. On success snap.ID becomes the new latest id.
func (m *Manager) PublishIfLatest(expectedPrevID int64, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := int64(0)
	if m.hasAny {
		current = m.latest
	}
	if current != expectedPrevID {
		return Error.Wrap(fmt.Errorf("%w: expected latest %d, found %d", ErrConflict, expectedPrevID, current))
	}

	first := !m.hasAny
	if first {
		m.earliest = snap.ID
		m.hasAny = true
	}
	m.latest = snap.ID
	m.snapshots[snap.ID] = &snap
	return nil
}

// FindByCommitIdentifier returns the first snapshot (by ascending id)
// whose CommitIdentifier and CommitUser match, used by filterAndCommit
// to detect already-applied commits under retry.
func (m *Manager) FindByCommitIdentifier(identifier int64, user string) (*Snapshot, bool) {
	for _, s := range m.IterSnapshots() {
		if s.CommitIdentifier == identifier && s.CommitUser == user {
			return s, true
		}
	}
	return nil, false
}
