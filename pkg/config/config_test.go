// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package config_test

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/config"
	"github.com/storj-thirdparty/corelake/pkg/schema"
)

func TestLoadAppliesDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	v := viper.New()
	require.NoError(t, v.BindPFlags(flags))

	opts, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, time.Hour, opts.PartitionExpirationCheckInterval)
	require.Equal(t, "yyyyMMdd", opts.PartitionTimestampFormatter)
	require.Equal(t, config.Ascending, opts.SequenceFieldSortOrder)
	require.False(t, opts.ExpirationEnabled())
}

func TestLoadAppliesOverrides(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--partition.expiration-time=48h",
		"--sequence.field.sort-order=descending",
		"--partition.expiration-batch-size=1",
	}))
	v := viper.New()
	require.NoError(t, v.BindPFlags(flags))

	opts, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, 48*time.Hour, opts.PartitionExpirationTime)
	require.Equal(t, config.Descending, opts.SequenceFieldSortOrder)
	require.Equal(t, 1, opts.PartitionExpirationBatchSize)
	require.True(t, opts.ExpirationEnabled())
}

func TestLoadRejectsInvalidSortOrder(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--sequence.field.sort-order=sideways"}))
	v := viper.New()
	require.NoError(t, v.BindPFlags(flags))

	_, err := config.Load(v)
	require.Error(t, err)
}

func TestValidateRejectsExpirationOnNonPartitionedTable(t *testing.T) {
	opts := config.Default()
	opts.PartitionExpirationTime = time.Hour
	err := config.Validate(opts, schema.TableSchema{})
	require.ErrorContains(t, err, "Can not set 'partition.expiration-time' for non-partitioned table")
}
