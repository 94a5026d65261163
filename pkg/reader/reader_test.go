// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package reader_test

import (
	"context"
	"io"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/deletion"
	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/reader"
)

// sliceRawFactory is a test double for reader.RawFactory that replays a
// fixed slice of records and reports no unpushed predicate.
type sliceRawFactory struct {
	records []keyvalue.KeyValue
}

type sliceReader struct {
	records []keyvalue.KeyValue
	i       int
}

func (r *sliceReader) Next(ctx context.Context) (keyvalue.KeyValue, error) {
	if r.i >= len(r.records) {
		return keyvalue.KeyValue{}, io.EOF
	}
	kv := r.records[r.i]
	r.i++
	return kv, nil
}

func (r *sliceReader) Close() error { return nil }

func (f *sliceRawFactory) Open(ctx context.Context, file keyvalue.DataFileMeta, projectKeysOnly bool, pushed reader.Predicate) (reader.RecordReader, reader.Predicate, error) {
	return &sliceReader{records: f.records}, reader.Predicate{}, nil
}

func TestFactoryAppliesDeletionVector(t *testing.T) {
	ctx := context.Background()

	records := []keyvalue.KeyValue{
		{Key: keyvalue.Row{1}, Value: keyvalue.Row{100}},
		{Key: keyvalue.Row{2}, Value: keyvalue.Row{200}},
		{Key: keyvalue.Row{3}, Value: keyvalue.Row{300}},
	}

	bitmap := roaring.New()
	bitmap.Add(1) // suppress the second record
	dvIO := fileio.NewMemory()
	var buf writerBuf
	require.NoError(t, deletion.Encode(&buf, deletion.NewVector(bitmap, int64(len(records)))))
	dvIO.Put("dv/a.dv", buf.Bytes())

	dvFactory := deletion.NewFactory(dvIO, []keyvalue.DeletionFile{
		{DataFilePath: "a.data", Path: "dv/a.dv"},
	})

	factory := reader.Build(&sliceRawFactory{records: records}, dvFactory, false, reader.Predicate{})
	rr, err := factory.Open(ctx, keyvalue.DataFileMeta{Path: "a.data"})
	require.NoError(t, err)
	defer rr.Close()

	var got []keyvalue.Row
	for {
		kv, err := rr.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, kv.Key)
	}

	require.Equal(t, []keyvalue.Row{{1}, {3}}, got)
}

func TestEmptyReader(t *testing.T) {
	ctx := context.Background()
	rr := reader.EmptyReader{}
	_, err := rr.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

// writerBuf is a tiny io.Writer that collects what is written and returns
// it from Bytes.
type writerBuf struct {
	data []byte
}

func (w *writerBuf) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *writerBuf) Bytes() []byte { return w.data }
