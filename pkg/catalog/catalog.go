// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package catalog defines the PartitionHandler contract through which the
// core notifies an external metastore (e.g. Hive) of partition lifecycle
// changes, and a no-op implementation for non-partitioned or
// catalog-less tables.
package catalog

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/storj-thirdparty/corelake/pkg/partition"
)

// Error is the class for catalog propagation failures.
var Error = errs.Class("catalog")

// PartitionStatistics carries per-partition row and file counts reported
// to the catalog on alter.
type PartitionStatistics struct {
	Partition partition.Partition
	RowCount  int64
	FileCount int64
}

// PartitionHandler is implemented by an external metastore adapter.
// Methods are called by the core as partitions are created, dropped, or
// statistics change; mark_done signals that a partition will receive no
// further writes this session.
type PartitionHandler interface {
	CreatePartitions(ctx context.Context, partitions []partition.Partition) error
	DropPartitions(ctx context.Context, partitions []partition.Partition) error
	AlterPartitions(ctx context.Context, stats []PartitionStatistics) error
	MarkDonePartitions(ctx context.Context, partitions []partition.Partition) error
	Close() error
}

// NopHandler is a PartitionHandler that does nothing, used when
// metastore.partitioned-table is false or no catalog is configured.
type NopHandler struct{}

// CreatePartitions implements PartitionHandler.
func (NopHandler) CreatePartitions(ctx context.Context, partitions []partition.Partition) error { return nil }

// DropPartitions implements PartitionHandler.
func (NopHandler) DropPartitions(ctx context.Context, partitions []partition.Partition) error { return nil }

// AlterPartitions implements PartitionHandler.
func (NopHandler) AlterPartitions(ctx context.Context, stats []PartitionStatistics) error { return nil }

// MarkDonePartitions implements PartitionHandler.
func (NopHandler) MarkDonePartitions(ctx context.Context, partitions []partition.Partition) error { return nil }

// Close implements PartitionHandler.
func (NopHandler) Close() error { return nil }
