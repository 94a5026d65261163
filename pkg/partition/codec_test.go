// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package partition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/partition"
	"github.com/storj-thirdparty/corelake/pkg/schema"
)

var f0Schema = []schema.Field{{Name: "f0", Type: schema.TypeString}}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p, err := partition.Encode(f0Schema, keyvalue.Row{"20230101"})
	require.NoError(t, err)
	require.Equal(t, "20230101", p.Values["f0"])

	row, err := partition.Decode(f0Schema, p)
	require.NoError(t, err)
	require.Equal(t, keyvalue.Row{"20230101"}, row)
}

func TestTimestampDefaultFormatter(t *testing.T) {
	p, err := partition.Encode(f0Schema, keyvalue.Row{"20230103"})
	require.NoError(t, err)

	ts, err := partition.Timestamp(p, "", partition.DefaultFormatter)
	require.NoError(t, err)
	require.Equal(t, 2023, ts.Year())
	require.Equal(t, time.January, ts.Month())
	require.Equal(t, 3, ts.Day())
}

func TestTimestampUnparseableIsPreserved(t *testing.T) {
	p, err := partition.Encode(f0Schema, keyvalue.Row{"abcd"})
	require.NoError(t, err)

	_, err = partition.Timestamp(p, "", partition.DefaultFormatter)
	require.ErrorIs(t, err, partition.ErrUnparseable)
}

func TestPatternTemplate(t *testing.T) {
	fields := []schema.Field{{Name: "year", Type: schema.TypeString}, {Name: "month", Type: schema.TypeString}}
	p, err := partition.Encode(fields, keyvalue.Row{"2023", "01"})
	require.NoError(t, err)

	composed, err := partition.Pattern(p, "$year$month")
	require.NoError(t, err)
	require.Equal(t, "202301", composed)

	_, err = partition.Pattern(p, "$unknown")
	require.Error(t, err)
}

func TestPatternDefaultsToFirstColumn(t *testing.T) {
	p, err := partition.Encode(f0Schema, keyvalue.Row{"20230105"})
	require.NoError(t, err)

	composed, err := partition.Pattern(p, "")
	require.NoError(t, err)
	require.Equal(t, "20230105", composed)
}
