// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/storj-thirdparty/corelake/pkg/fileio"
)

func TestLoadIntoMemoryAddressesFilesRelativeToRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "f0=20230101"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "f0=20230101", "part-0.ndjson"), []byte("{}\n"), 0o644))

	mem := fileio.NewMemory()
	require.NoError(t, loadIntoMemory(mem, root))

	ok, err := mem.Exists(context.Background(), "f0=20230101/part-0.ndjson")
	require.NoError(t, err)
	require.True(t, ok)
}
