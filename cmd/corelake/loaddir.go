// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"
	"path/filepath"

	"github.com/storj-thirdparty/corelake/pkg/fileio"
)

// loadIntoMemory walks root on the local disk and seeds mem so that every
// file under root is addressable by its path relative to root, the glue
// between the on-disk demo fixtures and the FileIO-based core.
func loadIntoMemory(mem *fileio.Memory, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		mem.Put(filepath.ToSlash(rel), data)
		return nil
	})
}
