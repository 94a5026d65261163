// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package expire_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/expire"
	"github.com/storj-thirdparty/corelake/pkg/fileio"
)

func TestDirectoryListerDecodesAndDedupsPartitionSegments(t *testing.T) {
	mem := fileio.NewMemory()
	mem.Put("warehouse/orders/f0=20230101/part-0.ndjson", []byte(""))
	mem.Put("warehouse/orders/f0=20230101/part-1.ndjson", []byte(""))
	mem.Put("warehouse/orders/f0=20230102/part-0.ndjson", []byte(""))
	mem.Put("warehouse/orders/_schema/latest.json", []byte(""))

	lister := expire.DirectoryLister{FileIO: mem, Root: "warehouse/orders", Schema: []string{"f0"}}
	partitions, err := lister.ListLivePartitions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, partitions, 2)

	seen := map[string]bool{}
	for _, p := range partitions {
		seen[p.Values["f0"]] = true
	}
	require.True(t, seen["20230101"])
	require.True(t, seen["20230102"])
}
