// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package planner implements the Interval-Partition Planner: it groups a
// bucket's data files into Sections of SortedRuns using key-range interval
// containment, deterministically.
package planner

import (
	"sort"

	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
)

// Plan partitions files into an ordered list of Sections.
//
// Algorithm: sort files by (minKey, maxKey); sweep left to right
// extending the current open interval while the next file's minKey is
// within the running maxKey, closing a section otherwise. Within each
// section, files are greedily packed into sorted runs by first-fit:
// place a file into the earliest existing run whose current maxKey
// sorts below the file's minKey, else start a new run.
func Plan(files []keyvalue.DataFileMeta, cmp keyvalue.Comparator) []keyvalue.Section {
	if len(files) == 0 {
		return nil
	}

	sorted := make([]keyvalue.DataFileMeta, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if c := cmp(sorted[i].MinKey, sorted[j].MinKey); c != 0 {
			return c < 0
		}
		return cmp(sorted[i].MaxKey, sorted[j].MaxKey) < 0
	})

	var sections []keyvalue.Section
	var current []keyvalue.DataFileMeta
	var runningMax keyvalue.Row

	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, packRuns(current, cmp))
		current = nil
	}

	for _, f := range sorted {
		if len(current) == 0 || cmp(f.MinKey, runningMax) <= 0 {
			current = append(current, f)
			if runningMax == nil || cmp(f.MaxKey, runningMax) > 0 {
				runningMax = f.MaxKey
			}
			continue
		}
		flush()
		current = append(current, f)
		runningMax = f.MaxKey
	}
	flush()

	return sections
}

// packRuns greedily packs a section's files into sorted runs by first-fit:
// a file joins the earliest run whose current maxKey sorts below the
// file's minKey, else a new run is started. Input files are assumed
// sorted by minKey, matching Plan's sweep order, which makes the packing
// deterministic.
func packRuns(files []keyvalue.DataFileMeta, cmp keyvalue.Comparator) keyvalue.Section {
	var runs []keyvalue.SortedRun
	for _, f := range files {
		placed := false
		for i := range runs {
			run := &runs[i]
			if cmp(run.MaxKey(), f.MinKey) < 0 {
				run.Files = append(run.Files, f)
				placed = true
				break
			}
		}
		if !placed {
			runs = append(runs, keyvalue.SortedRun{Files: []keyvalue.DataFileMeta{f}})
		}
	}
	return keyvalue.Section{Runs: runs}
}
