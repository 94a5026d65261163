// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package merge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/merge"
)

func TestDeduplicateKeepsLast(t *testing.T) {
	group := []keyvalue.KeyValue{
		{Value: keyvalue.Row{1}, SeqNumber: 1},
		{Value: keyvalue.Row{2}, SeqNumber: 2},
	}
	out := merge.Deduplicate.Reduce(group)
	require.Equal(t, keyvalue.Row{2}, out.Value)
}

func TestPartialUpdateOverlaysNonNilColumns(t *testing.T) {
	group := []keyvalue.KeyValue{
		{Value: keyvalue.Row{"name", 10}, SeqNumber: 1},
		{Value: keyvalue.Row{nil, 20}, SeqNumber: 2},
	}
	out := merge.PartialUpdate.Reduce(group)
	require.Equal(t, keyvalue.Row{"name", 20}, out.Value)
}

func TestAggregateFieldSums(t *testing.T) {
	sum := merge.AggregateField(0, func(a, b interface{}) interface{} {
		return a.(int) + b.(int)
	})
	group := []keyvalue.KeyValue{
		{Value: keyvalue.Row{1}, SeqNumber: 1},
		{Value: keyvalue.Row{2}, SeqNumber: 2},
		{Value: keyvalue.Row{3}, SeqNumber: 3},
	}
	out := sum.Reduce(group)
	require.Equal(t, 6, out.Value[0])
}

func TestReducerMergeFunctionWrapperDropDelete(t *testing.T) {
	w := merge.ReducerMergeFunctionWrapper{Reducer: merge.Deduplicate, KeepDelete: false}
	group := []keyvalue.KeyValue{{Kind: keyvalue.Delete}}
	_, keep := w.Merge(group)
	require.False(t, keep)

	w.KeepDelete = true
	_, keep = w.Merge(group)
	require.True(t, keep)
}
