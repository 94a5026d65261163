// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpireCommandRunsUntilContextCancelled(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "f0=20230101"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "f0=20230101", "part-0.ndjson"), []byte(""), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	root := newRootCommand()
	root.SetContext(ctx)
	root.SetArgs([]string{
		"expire",
		"--data-dir", dataDir,
		"--partition-schema", "f0",
		"--partition.expiration-check-interval", "10ms",
	})

	require.NoError(t, root.Execute())
}
