// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package merge

import (
	"container/heap"
	"context"
	"io"
	"sort"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/reader"
)

// Error is the class for merge-engine failures.
var Error = errs.Class("merge")

var mon = monkit.Package()

// SequenceOrder selects the direction sequence numbers (or a UDS value)
// are compared in within a key, per sequence.field.sort-order.
type SequenceOrder int

const (
	// Ascending is the default: larger sequence numbers sort later (win).
	Ascending SequenceOrder = iota
	// Descending reverses that, for tables configured with
	// sequence.field.sort-order = descending.
	Descending
)

// UserDefinedSequence (UDS) derives the within-key ordering value from a
// record instead of using its writer-assigned sequence number.
type UserDefinedSequence func(kv keyvalue.KeyValue) int64

// Engine performs a k-way merge across a section's sorted runs.
type Engine struct {
	log     *zap.Logger
	keyCmp  keyvalue.Comparator
	uds     UserDefinedSequence
	order   SequenceOrder
	wrapper ReducerMergeFunctionWrapper
}

// New constructs a merge Engine. uds may be nil, in which case ordering
// within a key falls back to SeqNumber.
func New(log *zap.Logger, keyCmp keyvalue.Comparator, uds UserDefinedSequence, order SequenceOrder, wrapper ReducerMergeFunctionWrapper) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, keyCmp: keyCmp, uds: uds, order: order, wrapper: wrapper}
}

func (e *Engine) withinKeyValue(kv keyvalue.KeyValue) int64 {
	if e.uds != nil {
		return e.uds(kv)
	}
	return kv.SeqNumber
}

// less reports whether a sorts strictly before b in the engine's total
// merge order: primarily by key, then by the within-key value in the
// configured direction, with ties broken by sequence number ascending
// (later-appended, larger seq, wins).
func (e *Engine) less(a, b keyvalue.KeyValue) bool {
	if c := e.keyCmp(a.Key, b.Key); c != 0 {
		return c < 0
	}
	av, bv := e.withinKeyValue(a), e.withinKeyValue(b)
	if av != bv {
		if e.order == Descending {
			return av > bv
		}
		return av < bv
	}
	return a.SeqNumber < b.SeqNumber
}

func (e *Engine) sameKey(a, b keyvalue.KeyValue) bool {
	return e.keyCmp(a.Key, b.Key) == 0
}

// cursor tracks the current head record of one run's reader.
type cursor struct {
	run   int
	kv    keyvalue.KeyValue
	valid bool
}

type cursorHeap struct {
	items []*cursor
	less  func(a, b keyvalue.KeyValue) bool
}

func (h cursorHeap) Len() int { return len(h.items) }
func (h cursorHeap) Less(i, j int) bool {
	return h.less(h.items[i].kv, h.items[j].kv)
}
func (h cursorHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *cursorHeap) Push(x interface{}) { h.items = append(h.items, x.(*cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// Merge performs the k-way merge over runs (one reader per sorted run,
// each already emitting keys in ascending order) and returns a
// RecordReader of reduced, drop-delete-filtered output records.
func (e *Engine) Merge(ctx context.Context, runs []reader.RecordReader) (reader.RecordReader, error) {
	defer mon.Task()(&ctx)(nil)

	h := &cursorHeap{less: e.less}
	heap.Init(h)

	for i, run := range runs {
		c := &cursor{run: i}
		if err := e.advance(ctx, run, c); err != nil {
			return nil, Error.Wrap(err)
		}
		if c.valid {
			heap.Push(h, c)
		}
	}

	return &mergedReader{engine: e, runs: runs, heap: h}, nil
}

func (e *Engine) advance(ctx context.Context, run reader.RecordReader, c *cursor) error {
	kv, err := run.Next(ctx)
	if err == io.EOF {
		c.valid = false
		return nil
	}
	if err != nil {
		return err
	}
	c.kv = kv
	c.valid = true
	return nil
}

// mergedReader implements reader.RecordReader, emitting one reduced
// record per distinct key.
type mergedReader struct {
	engine *Engine
	runs   []reader.RecordReader
	heap   *cursorHeap

	closed bool
}

func (m *mergedReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	if m.heap.Len() == 0 {
		return keyvalue.KeyValue{}, io.EOF
	}

	first := heap.Pop(m.heap).(*cursor)
	group := []keyvalue.KeyValue{first.kv}
	key := first.kv
	if err := m.refill(ctx, first); err != nil {
		return keyvalue.KeyValue{}, err
	}

	for m.heap.Len() > 0 {
		top := (*m.heap).items[0]
		if !m.engine.sameKey(top.kv, key) {
			break
		}
		next := heap.Pop(m.heap).(*cursor)
		group = append(group, next.kv)
		if err := m.refill(ctx, next); err != nil {
			return keyvalue.KeyValue{}, err
		}
	}

	// Records of one key can arrive out of within-key order (several from
	// the same run, or runs whose heads were compared before refilling), so
	// the group is put in merge order before the reducer sees it.
	sort.SliceStable(group, func(i, j int) bool { return m.engine.less(group[i], group[j]) })

	out, keep := m.engine.wrapper.Merge(group)
	if !keep {
		return m.Next(ctx)
	}
	return out, nil
}

// refill re-reads from the cursor's run and pushes it back onto the heap
// if it still has records.
func (m *mergedReader) refill(ctx context.Context, c *cursor) error {
	if err := m.engine.advance(ctx, m.runs[c.run], c); err != nil {
		return Error.Wrap(err)
	}
	if c.valid {
		heap.Push(m.heap, c)
	}
	return nil
}

func (m *mergedReader) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var combined error
	for _, run := range m.runs {
		if err := run.Close(); err != nil {
			combined = errs.Combine(combined, err)
		}
	}
	return Error.Wrap(combined)
}
