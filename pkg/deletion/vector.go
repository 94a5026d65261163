// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package deletion builds and caches per-file deletion vectors: bitmaps of
// row positions that must be suppressed when reading a data file.
package deletion

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/zeebo/errs"

	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
)

// Error is the class for deletion-vector construction failures.
var Error = errs.Class("deletion")

// Vector is an immutable bitmap of row positions to suppress within one
// data file. Positions outside [0, rowCount) are ignored by Contains.
type Vector struct {
	bitmap   *roaring.Bitmap
	rowCount int64
}

// Empty is the zero-valued vector: suppresses nothing.
var Empty = Vector{bitmap: roaring.New()}

// NewVector wraps a roaring bitmap of deleted row positions.
func NewVector(bitmap *roaring.Bitmap, rowCount int64) Vector {
	if bitmap == nil {
		bitmap = roaring.New()
	}
	return Vector{bitmap: bitmap, rowCount: rowCount}
}

// Contains reports whether the row at position is suppressed. Positions
// at or beyond rowCount are never suppressed, matching the invariant that
// positions outside [0, rowCount) are ignored.
func (v Vector) Contains(position int64) bool {
	if v.bitmap == nil {
		return false
	}
	if position < 0 || position >= v.rowCount {
		return false
	}
	return v.bitmap.Contains(uint32(position))
}

// Cardinality returns the number of suppressed positions.
func (v Vector) Cardinality() uint64 {
	if v.bitmap == nil {
		return 0
	}
	return v.bitmap.GetCardinality()
}

// decode parses the on-disk deletion-vector encoding: a 4-byte
// little-endian row count followed by a serialized roaring bitmap.
func decode(r io.Reader) (Vector, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Vector{}, Error.Wrap(err)
	}
	rowCount := int64(binary.LittleEndian.Uint32(header[:]))

	bitmap := roaring.New()
	if _, err := bitmap.ReadFrom(r); err != nil {
		return Vector{}, Error.Wrap(err)
	}
	return NewVector(bitmap, rowCount), nil
}

// Encode serializes a vector in the format decode expects, for tests and
// for writers producing deletion files.
func Encode(w io.Writer, v Vector) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(v.rowCount))
	if _, err := w.Write(header[:]); err != nil {
		return Error.Wrap(err)
	}
	bitmap := v.bitmap
	if bitmap == nil {
		bitmap = roaring.New()
	}
	if _, err := bitmap.WriteTo(w); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// Factory produces, and caches for the lifetime of a read, the deletion
// vector for each data file path in a split.
type Factory struct {
	io    fileio.FileIO
	byDataFile map[string]keyvalue.DeletionFile

	mu    sync.Mutex
	cache map[string]Vector
}

// NewFactory builds a factory over a split's data files and deletion
// files, associating each deletion file with the data file path it
// covers.
func NewFactory(io fileio.FileIO, deletionFiles []keyvalue.DeletionFile) *Factory {
	byDataFile := make(map[string]keyvalue.DeletionFile, len(deletionFiles))
	for _, df := range deletionFiles {
		byDataFile[df.DataFilePath] = df
	}
	return &Factory{
		io:         io,
		byDataFile: byDataFile,
		cache:      make(map[string]Vector),
	}
}

// Get returns the (possibly empty) deletion vector for a data file path,
// loading and caching it on first access.
func (f *Factory) Get(ctx context.Context, dataFilePath string) (Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v, ok := f.cache[dataFilePath]; ok {
		return v, nil
	}

	df, ok := f.byDataFile[dataFilePath]
	if !ok {
		f.cache[dataFilePath] = Empty
		return Empty, nil
	}

	reader, err := f.io.OpenInput(ctx, df.Path)
	if err != nil {
		return Vector{}, Error.Wrap(err)
	}
	defer func() { _ = reader.Close() }()

	v, err := decode(reader)
	if err != nil {
		return Vector{}, Error.Wrap(err)
	}
	f.cache[dataFilePath] = v
	return v, nil
}
