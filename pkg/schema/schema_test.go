// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/schema"
)

func TestInMemoryManager(t *testing.T) {
	m := schema.NewInMemoryManager()
	m.Register(schema.TableSchema{ID: 1, Fields: []schema.Field{{Name: "f0", Type: schema.TypeString}}})
	m.Register(schema.TableSchema{ID: 2, Fields: []schema.Field{{Name: "f0", Type: schema.TypeString}, {Name: "v", Type: schema.TypeInt}}})

	latest, err := m.Latest()
	require.NoError(t, err)
	require.EqualValues(t, 2, latest.ID)

	got, err := m.Get(1)
	require.NoError(t, err)
	require.Len(t, got.Fields, 1)

	_, err = m.Get(99)
	require.Error(t, err)
}

func TestValidateExpirationConfig(t *testing.T) {
	partitioned := schema.TableSchema{PartitionKeys: []string{"f0"}}
	require.NoError(t, schema.ValidateExpirationConfig(partitioned, true))

	nonPartitioned := schema.TableSchema{}
	err := schema.ValidateExpirationConfig(nonPartitioned, true)
	require.ErrorContains(t, err, "Can not set 'partition.expiration-time' for non-partitioned table")

	require.NoError(t, schema.ValidateExpirationConfig(nonPartitioned, false))
}
