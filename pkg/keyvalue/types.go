// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package keyvalue defines the core record and file-metadata types shared
// by the planner, merge engine and split façade: KeyValue records, sealed
// DataFileMeta descriptors, SortedRun and Section groupings, and the
// DataSplit unit of read work.
package keyvalue

import "github.com/zeebo/errs"

// Error is the class for data-model invariant violations.
var Error = errs.Class("keyvalue")

// RowKind identifies the semantics of a KeyValue record.
type RowKind int

const (
	// Insert adds a new row.
	Insert RowKind = iota
	// UpdateBefore carries the pre-image of an updated row, used by
	// changelog-aware merge functions.
	UpdateBefore
	// UpdateAfter carries the post-image of an updated row.
	UpdateAfter
	// Delete tombstones a row.
	Delete
)

// String renders the row kind for logs and test failures.
func (k RowKind) String() string {
	switch k {
	case Insert:
		return "+I"
	case UpdateBefore:
		return "-U"
	case UpdateAfter:
		return "+U"
	case Delete:
		return "-D"
	default:
		return "?"
	}
}

// Row is a structured tuple of column values, keyed by ordinal field
// position to avoid depending on an external schema representation.
type Row []interface{}

// Clone returns a shallow copy of the row, safe to mutate independently.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// KeyValue is one record produced by a file reader or the merge engine: a
// key tuple, a value tuple, a per-writer monotonic sequence number and a
// row kind.
type KeyValue struct {
	Key       Row
	Value     Row
	SeqNumber int64
	Kind      RowKind
}

// POSTPONE_BUCKET marks a split whose bucket assignment has not been
// resolved yet; such splits always take the no-merge read path.
const POSTPONE_BUCKET = -1

// FieldStats summarizes one column's min/max/null-count across a file, used
// for predicate pushdown decisions upstream of this package.
type FieldStats struct {
	Min      interface{}
	Max      interface{}
	NullCount int64
}

// DataFileMeta describes one sealed on-disk data file.
type DataFileMeta struct {
	Path         string
	Level        int
	MinKey       Row
	MaxKey       Row
	RowCount     int64
	ValueStats   []FieldStats
	MinSeqNumber int64
	MaxSeqNumber int64
	FileSize     int64
}

// DeletionFile points at an external deletion-vector file covering a
// single data file.
type DeletionFile struct {
	DataFilePath string
	Path         string
	Offset       int64
	Length       int64
}

// SortedRun is an ordered, non-overlapping sequence of DataFileMeta: for
// any two adjacent files f[i], f[i+1], f[i].MaxKey must sort below
// f[i+1].MinKey under the run's key comparator.
type SortedRun struct {
	Files []DataFileMeta
}

// MinKey returns the lower bound of the run's key range, or nil if empty.
func (r SortedRun) MinKey() Row {
	if len(r.Files) == 0 {
		return nil
	}
	return r.Files[0].MinKey
}

// MaxKey returns the upper bound of the run's key range, or nil if empty.
func (r SortedRun) MaxKey() Row {
	if len(r.Files) == 0 {
		return nil
	}
	return r.Files[len(r.Files)-1].MaxKey
}

// Section is a maximal group of sorted runs whose key ranges mutually
// overlap. A Section with exactly one run is Overlapping() == false and
// admits value-predicate pushdown; with two or more runs it is overlapping
// and pushdown must be restricted to key-only predicates.
type Section struct {
	Runs []SortedRun
}

// Overlapping reports whether the section requires key-only pushdown.
func (s Section) Overlapping() bool {
	return len(s.Runs) > 1
}

// DataSplit is a unit of read work: a partition and bucket, the data files
// to merge-read, optional deletion files, and streaming/changelog flags.
type DataSplit struct {
	Partition     map[string]string
	Bucket        int
	DataFiles     []DataFileMeta
	DeletionFiles []DeletionFile
	// BeforeFiles is non-empty only for changelog/streaming reads; giving
	// it to the merge path is caller misuse (InvalidSplit).
	BeforeFiles []DataFileMeta
	IsStreaming bool
}

// UsesMergePath reports whether this split must be read through the
// merge engine rather than the no-merge concatenation path.
func (s DataSplit) UsesMergePath() bool {
	return !s.IsStreaming && s.Bucket != POSTPONE_BUCKET
}
