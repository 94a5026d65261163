// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/catalog"
	"github.com/storj-thirdparty/corelake/pkg/commit"
	"github.com/storj-thirdparty/corelake/pkg/expire"
	"github.com/storj-thirdparty/corelake/pkg/fileio"
	"github.com/storj-thirdparty/corelake/pkg/snapshot"
)

func newExpireCommand() *cobra.Command {
	var (
		dataDir         string
		partitionSchema string
		commitUser      string
	)

	cmd := &cobra.Command{
		Use:   "expire",
		Short: "run the partition-expire chore against a local data directory until interrupted",
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

			mem := fileio.NewMemory()
			if err := loadIntoMemory(mem, dataDir); err != nil {
				return err
			}

			schemaFields := strings.Split(partitionSchema, ",")
			lister := expire.DirectoryLister{FileIO: mem, Root: "", Schema: schemaFields}
			snapshots := snapshot.NewManager()
			snapshots.Publish(snapshot.Snapshot{ID: 1})
			coordinator := commit.NewCoordinator(log, snapshots, nil, 10)
			controller := expire.New(log, lister, snapshots, coordinator, catalog.NopHandler{}, expire.Options{
				CheckInterval:      opts.PartitionExpirationCheckInterval,
				ExpirationTime:     opts.PartitionExpirationTime,
				TimestampFormatter: opts.PartitionTimestampFormatter,
				TimestampPattern:   opts.PartitionTimestampPattern,
				BatchSize:          opts.PartitionExpirationBatchSize,
				MaxExpires:         opts.PartitionExpirationMaxNum,
			})

			var identifier int64
			chore := expire.NewChore(log, opts.PartitionExpirationCheckInterval, controller, commitUser, func() int64 {
				identifier++
				return identifier
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			log.Info("expire chore starting", zap.Duration("check_interval", opts.PartitionExpirationCheckInterval))
			return chore.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", ".", "local directory holding the table's partition directories")
	cmd.Flags().StringVar(&partitionSchema, "partition-schema", "", "comma-separated partition field names, e.g. \"region,day\"")
	cmd.Flags().StringVar(&commitUser, "commit-user", "corelake-cli", "commit user recorded on each OVERWRITE snapshot")
	return cmd
}
