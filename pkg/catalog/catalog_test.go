// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/catalog"
)

func TestNopHandlerIsAlwaysSafe(t *testing.T) {
	var h catalog.PartitionHandler = catalog.NopHandler{}
	ctx := context.Background()
	require.NoError(t, h.CreatePartitions(ctx, nil))
	require.NoError(t, h.DropPartitions(ctx, nil))
	require.NoError(t, h.AlterPartitions(ctx, nil))
	require.NoError(t, h.MarkDonePartitions(ctx, nil))
	require.NoError(t, h.Close())
}
