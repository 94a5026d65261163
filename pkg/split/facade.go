// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package split implements the Split Read Façade: dispatching to the
// merge engine or the no-merge path based on split properties, and
// managing projection so that pushdown projection and outer projection
// preserve merge-function correctness.
package split

import (
	"context"
	"io"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/deletion"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/merge"
	"github.com/storj-thirdparty/corelake/pkg/planner"
	"github.com/storj-thirdparty/corelake/pkg/reader"
)

// Error is the class for split-read failures, including InvalidSplit.
var Error = errs.Class("split")

// ErrInvalidSplit is returned when the merge path is asked to read a
// split carrying BeforeFiles, which it does not accept.
var ErrInvalidSplit = Error.New("invalid split: merge path does not accept before-files")

// Projection selects and reorders a subset of a row's columns.
type Projection []int

// Apply projects row, returning a new Row containing only the selected
// columns in projection order.
func (p Projection) Apply(row keyvalue.Row) keyvalue.Row {
	if p == nil {
		return row
	}
	out := make(keyvalue.Row, len(p))
	for i, idx := range p {
		if idx >= 0 && idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// PlanProjection splits a caller-requested value projection into a
// pushdown projection (the columns the reducer needs, e.g. to implement
// partial-update) and an outer projection (what the caller asked for),
// augmenting the pushdown projection with any configured sequence field
// the caller's projection omitted, and trimming it back out at the end
// ("sequence-field completion").
//
// sequenceFieldIndex is the value-column index backing sequence.field,
// or -1 if none is configured.
func PlanProjection(requested []int, sequenceFieldIndex int) (pushdown, outer Projection) {
	pushdown = append(Projection{}, requested...)

	augmented := false
	if sequenceFieldIndex >= 0 {
		found := false
		for _, idx := range requested {
			if idx == sequenceFieldIndex {
				found = true
				break
			}
		}
		if !found {
			pushdown = append(pushdown, sequenceFieldIndex)
			augmented = true
		}
	}

	outer = make(Projection, len(requested))
	for i := range requested {
		outer[i] = i // position within pushdown, since requested is a prefix of pushdown
	}
	_ = augmented
	return pushdown, outer
}

// Config is the façade's configuration surface: the value projection
// (with_read_type), the key projection (with_read_key_type), the filter
// (with_filter) and force_keep_delete. It has no IO-manager setting; the
// merge runs entirely in memory.
type Config struct {
	ReadValueProjection Projection
	ReadKeyProjection   Projection
	Filter              reader.Predicate
	ForceKeepDelete     bool
}

// Facade dispatches split reads to the merge or no-merge path.
type Facade struct {
	log        *zap.Logger
	keyCmp     keyvalue.Comparator
	keyColumns []string
	picker     RawFactoryPicker
	reducer    merge.Reducer
	uds        merge.UserDefinedSequence
	order      merge.SequenceOrder
}

// RawFactoryPicker chooses the appropriate reader.RawFactory for a data
// file depending on whether it sits in an overlapping section
// (key-filter only) or a non-overlapping one (full value filter).
type RawFactoryPicker struct {
	ValueFilterFactory reader.RawFactory
	KeyFilterFactory   reader.RawFactory
}

// NewFacade constructs a Facade. picker supplies the value-filter and
// key-filter raw factories used depending on section overlap, and
// reducer/uds/order configure the merge path's within-key semantics.
func NewFacade(log *zap.Logger, keyCmp keyvalue.Comparator, keyColumns []string, picker RawFactoryPicker, reducer merge.Reducer, uds merge.UserDefinedSequence, order merge.SequenceOrder) *Facade {
	if log == nil {
		log = zap.NewNop()
	}
	return &Facade{
		log:        log,
		keyCmp:     keyCmp,
		keyColumns: keyColumns,
		picker:     picker,
		reducer:    reducer,
		uds:        uds,
		order:      order,
	}
}

// CreateReader builds a RecordReader for split.
func (f *Facade) CreateReader(ctx context.Context, fio FileIO, split keyvalue.DataSplit, cfg Config) (reader.RecordReader, error) {
	if len(split.BeforeFiles) > 0 {
		return nil, ErrInvalidSplit
	}

	if len(split.DataFiles) == 0 {
		return reader.EmptyReader{}, nil
	}

	dvFactory := deletion.NewFactory(fio, split.DeletionFiles)

	if !split.UsesMergePath() {
		f.log.Debug("reading split via no-merge path", zap.Int("bucket", split.Bucket), zap.Bool("streaming", split.IsStreaming))
		return f.createNoMergeReader(ctx, split, dvFactory, cfg)
	}

	f.log.Debug("reading split via merge path", zap.Int("files", len(split.DataFiles)))
	return f.createMergeReader(ctx, split, dvFactory, cfg)
}

// FileIO is the byte-IO surface the façade takes from its caller. It has
// the same method set as pkg/fileio.FileIO, so any fileio.FileIO can be
// passed, and it is handed on to the deletion vector factory.
type FileIO interface {
	OpenInput(ctx context.Context, path string) (io.ReadCloser, error)
	OpenOutput(ctx context.Context, path string, overwrite bool) (io.WriteCloser, error)
	List(ctx context.Context, dir string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

func (f *Facade) createNoMergeReader(ctx context.Context, split keyvalue.DataSplit, dv *deletion.Factory, cfg Config) (reader.RecordReader, error) {
	factory := reader.Build(f.picker.ValueFilterFactory, dv, false, cfg.Filter)

	var readers []reader.RecordReader
	for _, file := range split.DataFiles {
		rr, err := factory.Open(ctx, file)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		readers = append(readers, rr)
	}
	return &projectingReader{inner: concat(readers), valueProjection: cfg.ReadValueProjection, keyProjection: cfg.ReadKeyProjection}, nil
}

func (f *Facade) createMergeReader(ctx context.Context, split keyvalue.DataSplit, dv *deletion.Factory, cfg Config) (reader.RecordReader, error) {
	sections := planner.Plan(split.DataFiles, f.keyCmp)

	// ForceKeepDelete lets callers (e.g. changelog consumers) override
	// the reducer's own keep_delete decision.
	wrapper := merge.ReducerMergeFunctionWrapper{Reducer: f.reducer, KeepDelete: cfg.ForceKeepDelete}

	var sectionReaders []reader.RecordReader
	for _, section := range sections {
		var rawFactory reader.RawFactory
		var filter reader.Predicate
		if section.Overlapping() {
			keyFilter, _ := reader.SplitByColumns(cfg.Filter, f.keyColumns)
			rawFactory = f.picker.KeyFilterFactory
			filter = keyFilter
		} else {
			rawFactory = f.picker.ValueFilterFactory
			filter = cfg.Filter
		}

		factory := reader.Build(rawFactory, dv, false, filter)

		var runReaders []reader.RecordReader
		for _, run := range section.Runs {
			var fileReaders []reader.RecordReader
			for _, file := range run.Files {
				rr, err := factory.Open(ctx, file)
				if err != nil {
					return nil, Error.Wrap(err)
				}
				fileReaders = append(fileReaders, rr)
			}
			runReaders = append(runReaders, concat(fileReaders))
		}

		engine := merge.New(f.log, f.keyCmp, f.uds, f.order, wrapper)
		merged, err := engine.Merge(ctx, runReaders)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		sectionReaders = append(sectionReaders, merged)
	}

	return &projectingReader{inner: concat(sectionReaders), valueProjection: cfg.ReadValueProjection, keyProjection: cfg.ReadKeyProjection}, nil
}

// projectingReader applies the outer key/value projection as the final
// step of the read pipeline (the outer projection is applied
// last").
type projectingReader struct {
	inner           reader.RecordReader
	valueProjection Projection
	keyProjection   Projection
}

func (p *projectingReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	kv, err := p.inner.Next(ctx)
	if err != nil {
		return keyvalue.KeyValue{}, err
	}
	if p.valueProjection != nil {
		kv.Value = p.valueProjection.Apply(kv.Value)
	}
	if p.keyProjection != nil {
		kv.Key = p.keyProjection.Apply(kv.Key)
	}
	return kv, nil
}

func (p *projectingReader) Close() error { return p.inner.Close() }

// concatReader chains multiple RecordReaders in order.
type concatReader struct {
	readers []reader.RecordReader
	i       int
}

func concat(readers []reader.RecordReader) reader.RecordReader {
	if len(readers) == 0 {
		return reader.EmptyReader{}
	}
	if len(readers) == 1 {
		return readers[0]
	}
	return &concatReader{readers: readers}
}

func (c *concatReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	for c.i < len(c.readers) {
		kv, err := c.readers[c.i].Next(ctx)
		if err == io.EOF {
			c.i++
			continue
		}
		return kv, err
	}
	return keyvalue.KeyValue{}, io.EOF
}

func (c *concatReader) Close() error {
	var combined error
	for _, r := range c.readers {
		if err := r.Close(); err != nil {
			combined = errs.Combine(combined, err)
		}
	}
	return Error.Wrap(combined)
}
