// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Command corelake is a reference CLI over the partitioned table core: it
// runs the partition-expire chore against a directory of NDJSON data files
// until interrupted, or reads a manifest-described split back out through
// the merge engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
