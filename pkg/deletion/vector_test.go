// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package deletion_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/deletion"
	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
)

func TestVectorContainsIgnoresOutOfRange(t *testing.T) {
	bitmap := roaring.New()
	bitmap.Add(0)
	bitmap.Add(5)
	bitmap.Add(100) // out of [0, rowCount)

	v := deletion.NewVector(bitmap, 10)
	require.True(t, v.Contains(0))
	require.True(t, v.Contains(5))
	require.False(t, v.Contains(2))
	require.False(t, v.Contains(100))
}

func TestFactoryCachesPerFile(t *testing.T) {
	ctx := context.Background()
	io := fileio.NewMemory()

	bitmap := roaring.New()
	bitmap.Add(1)
	var buf bytes.Buffer
	require.NoError(t, deletion.Encode(&buf, deletion.NewVector(bitmap, 4)))
	io.Put("dv/file-a.dv", buf.Bytes())

	factory := deletion.NewFactory(io, []keyvalue.DeletionFile{
		{DataFilePath: "data/file-a.data", Path: "dv/file-a.dv"},
	})

	v, err := factory.Get(ctx, "data/file-a.data")
	require.NoError(t, err)
	require.True(t, v.Contains(1))
	require.False(t, v.Contains(0))

	// A second call must hit the cache, not re-read the file: remove the
	// backing file and confirm the cached vector is still returned.
	require.NoError(t, io.Delete(ctx, "dv/file-a.dv"))
	v2, err := factory.Get(ctx, "data/file-a.data")
	require.NoError(t, err)
	require.True(t, v2.Contains(1))
}

func TestFactoryEmptyForFileWithoutDeletions(t *testing.T) {
	ctx := context.Background()
	factory := deletion.NewFactory(fileio.NewMemory(), nil)

	v, err := factory.Get(ctx, "data/no-deletions.data")
	require.NoError(t, err)
	require.EqualValues(t, 0, v.Cardinality())
}
