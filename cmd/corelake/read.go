// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/config"
	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/keyvalue"
	"github.com/storj-thirdparty/corelake/pkg/merge"
	"github.com/storj-thirdparty/corelake/pkg/reader"
	"github.com/storj-thirdparty/corelake/pkg/split"
)

// readManifest describes a single split's read work as a small JSON
// fixture, the reference CLI's stand-in for a metastore-resolved split.
type readManifest struct {
	DataDir       string                  `json:"data_dir"`
	Bucket        int                     `json:"bucket"`
	IsStreaming   bool                    `json:"is_streaming"`
	DataFiles     []keyvalue.DataFileMeta `json:"data_files"`
	DeletionFiles []keyvalue.DeletionFile `json:"deletion_files"`
}

func newReadCommand() *cobra.Command {
	var (
		manifestPath   string
		keyColumns     string
		valueColumns   string
		sequenceColumn int
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "read a split's rows through the merge engine and print them as NDJSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			log = log.With(zap.String("run_id", newRunID()))

			opts, err := loadOptions()
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(manifestPath)
			if err != nil {
				return err
			}
			var manifest readManifest
			if err := json.Unmarshal(raw, &manifest); err != nil {
				return err
			}

			mem := fileio.NewMemory()
			if err := loadIntoMemory(mem, manifest.DataDir); err != nil {
				return err
			}

			columns := strings.Split(keyColumns, ",")
			factory := reader.NDJSONFactory{FileIO: mem}
			facade := split.NewFacade(log, keyvalue.DefaultComparator, columns,
				split.RawFactoryPicker{ValueFilterFactory: factory, KeyFilterFactory: factory},
				merge.Deduplicate, nil, sequenceOrderOf(opts))

			dataSplit := keyvalue.DataSplit{
				Bucket:        manifest.Bucket,
				DataFiles:     manifest.DataFiles,
				DeletionFiles: manifest.DeletionFiles,
				IsStreaming:   manifest.IsStreaming,
			}

			cfg := split.Config{}
			if strings.TrimSpace(valueColumns) != "" {
				requested, err := parseColumns(valueColumns)
				if err != nil {
					return err
				}
				// PlanProjection's pushdown indexes directly into the raw
				// value row, same as Config.ReadValueProjection expects,
				// so it plugs straight into this façade's single
				// post-merge projection point. Because that projection
				// runs after the merge, the reducer always sees the full
				// value row; records within a key are ordered by their
				// sequence numbers, not by sequenceColumn. PlanProjection's
				// outer half is not applied, so an augmented sequence
				// column surfaces appended to the requested columns in
				// the output rather than being trimmed back out.
				pushdown, _ := split.PlanProjection(requested, sequenceColumn)
				cfg.ReadValueProjection = pushdown
			}

			rr, err := facade.CreateReader(context.Background(), mem, dataSplit, cfg)
			if err != nil {
				return err
			}
			defer rr.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				kv, err := rr.Next(context.Background())
				if err == io.EOF {
					break
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(kv); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "path to a JSON split manifest")
	cmd.Flags().StringVar(&keyColumns, "key-columns", "key.0", "comma-separated key column names")
	cmd.Flags().StringVar(&valueColumns, "columns", "", "comma-separated value-column indices to project in the output; omit for no projection")
	cmd.Flags().IntVar(&sequenceColumn, "sequence-column", -1, "value-column index of the table's sequence field; appended to --columns output when not already requested, -1 for none")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func sequenceOrderOf(opts config.CoreOptions) merge.SequenceOrder {
	if opts.SequenceFieldSortOrder == config.Descending {
		return merge.Descending
	}
	return merge.Ascending
}

// parseColumns parses a comma-separated list of value-column indices, the
// form --columns accepts.
func parseColumns(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid --columns value %q: %w", p, err)
		}
		out[i] = n
	}
	return out, nil
}
