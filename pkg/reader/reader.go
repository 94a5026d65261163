// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package reader

import (
	"context"
	"io"

	"github.com/zeebo/errs"

	"github.com/storj-thirdparty/corelake/pkg/deletion"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
)

// Error is the class for file-reader construction and iteration failures.
var Error = errs.Class("reader")

// RecordReader yields KeyValue records from a single data file, in file
// order. Next returns io.EOF when exhausted.
type RecordReader interface {
	Next(ctx context.Context) (keyvalue.KeyValue, error)
	Close() error
}

// RawFactory is the external key-value file reader factory collaborator:
// it opens a data file and returns an undecorated reader plus the
// subset of the pushed filter it could NOT apply itself ("unpushed").
type RawFactory interface {
	Open(ctx context.Context, file keyvalue.DataFileMeta, projectKeysOnly bool, pushed Predicate) (reader RecordReader, unpushed Predicate, err error)
}

// Factory builds decorated readers for a (partition, bucket): it applies
// the deletion vector after the raw decode and before any unpushed filter
// or emission, preserving ascending key order within the file.
type Factory struct {
	raw             RawFactory
	dv              *deletion.Factory
	projectKeysOnly bool
	filter          Predicate
}

// Build constructs a Factory from a raw factory, a deletion-vector
// factory, the keys-only flag and a filter. It takes no partition or
// bucket: the caller has already resolved the file list, and Open
// receives each file's metadata directly.
func Build(raw RawFactory, dv *deletion.Factory, projectKeysOnly bool, filter Predicate) *Factory {
	return &Factory{raw: raw, dv: dv, projectKeysOnly: projectKeysOnly, filter: filter}
}

// Open yields a record reader for file with deletion-vector suppression
// and any unpushed filter already applied.
func (f *Factory) Open(ctx context.Context, file keyvalue.DataFileMeta) (RecordReader, error) {
	raw, unpushed, err := f.raw.Open(ctx, file, f.projectKeysOnly, f.filter)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	var dv deletion.Vector
	if f.dv != nil {
		dv, err = f.dv.Get(ctx, file.Path)
		if err != nil {
			_ = raw.Close()
			return nil, Error.Wrap(err)
		}
	}

	return &decoratedReader{
		raw:      raw,
		dv:       dv,
		unpushed: unpushed,
		position: 0,
	}, nil
}

type decoratedReader struct {
	raw      RecordReader
	dv       deletion.Vector
	unpushed Predicate
	position int64
}

func (r *decoratedReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	for {
		kv, err := r.raw.Next(ctx)
		if err != nil {
			return keyvalue.KeyValue{}, err
		}
		pos := r.position
		r.position++

		if r.dv.Contains(pos) {
			continue
		}
		if !r.unpushed.Eval(columnLookup(kv)) {
			continue
		}
		return kv, nil
	}
}

func (r *decoratedReader) Close() error {
	return r.raw.Close()
}

func columnLookup(kv keyvalue.KeyValue) func(string) (interface{}, bool) {
	return func(column string) (interface{}, bool) {
		// The reference RawFactory encodes "key.N" / "value.N" column
		// names so the unpushed filter can address either tuple.
		idx, ok := columnIndex(column, "value.")
		if ok && idx < len(kv.Value) {
			return kv.Value[idx], true
		}
		idx, ok = columnIndex(column, "key.")
		if ok && idx < len(kv.Key) {
			return kv.Key[idx], true
		}
		return nil, false
	}
}

func columnIndex(column, prefix string) (int, bool) {
	if len(column) <= len(prefix) || column[:len(prefix)] != prefix {
		return 0, false
	}
	n := 0
	for _, c := range column[len(prefix):] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// EmptyReader is a RecordReader with no records, used when a split's
// data-file list is empty.
type EmptyReader struct{}

// Next always reports io.EOF.
func (EmptyReader) Next(ctx context.Context) (keyvalue.KeyValue, error) { return keyvalue.KeyValue{}, io.EOF }

// Close is a no-op.
func (EmptyReader) Close() error { return nil }
