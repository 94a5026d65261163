// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package expire

import (
	"context"
	"strings"

	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/partition"
	"github.com/storj-thirdparty/corelake/pkg/snapshot"
)

// DirectoryLister discovers live partitions by decoding "field=value"
// directory segments out of a table's data file paths, the manifest-free
// discovery path used by the reference CLI. A metastore-backed deployment
// would instead enumerate partitions from the snapshot's manifest lists.
type DirectoryLister struct {
	FileIO fileio.FileIO
	Root   string
	Schema []string
}

// ListLivePartitions implements PartitionLister.
func (d DirectoryLister) ListLivePartitions(ctx context.Context, snap *snapshot.Snapshot) ([]partition.Partition, error) {
	paths, err := d.FileIO.List(ctx, d.Root)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	seen := make(map[string]bool)
	var out []partition.Partition
	for _, path := range paths {
		p, ok := decodePartitionPath(path, d.Schema)
		if !ok {
			continue
		}
		key := p.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, nil
}

func decodePartitionPath(path string, schemaFields []string) (partition.Partition, bool) {
	values := make(map[string]string, len(schemaFields))
	for _, segment := range strings.Split(path, "/") {
		idx := strings.IndexByte(segment, '=')
		if idx < 0 {
			continue
		}
		values[segment[:idx]] = segment[idx+1:]
	}
	for _, field := range schemaFields {
		if _, ok := values[field]; !ok {
			return partition.Partition{}, false
		}
	}
	return partition.Partition{Schema: schemaFields, Values: values}, true
}
