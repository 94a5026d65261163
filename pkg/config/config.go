// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package config defines CoreOptions, the configuration surface consumed
// by the rest of the core, and binds it onto a pflag.FlagSet / viper.Viper
// pair the way the command-line entrypoint wires it up.
package config

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"

	"github.com/storj-thirdparty/corelake/pkg/schema"
)

// Error is the class for configuration failures.
var Error = errs.Class("config")

// SortOrder selects the within-key comparison direction for sequence.field.
type SortOrder int

const (
	// Ascending is the default sort order.
	Ascending SortOrder = iota
	// Descending reverses comparisons.
	Descending
)

// CoreOptions is the flat configuration surface for one table, covering
// expiration, catalog propagation, and sequencing.
type CoreOptions struct {
	PartitionExpirationTime          time.Duration
	PartitionExpirationCheckInterval time.Duration
	PartitionTimestampFormatter      string
	PartitionTimestampPattern        string
	PartitionExpirationBatchSize     int
	PartitionExpirationMaxNum        int
	MetastorePartitionedTable        bool
	WriteOnly                        bool
	SequenceField                    []string
	SequenceFieldSortOrder           SortOrder
}

// ExpirationEnabled reports whether partition expiration is configured.
func (o CoreOptions) ExpirationEnabled() bool {
	return o.PartitionExpirationTime > 0
}

// Default returns the documented defaults for every recognized key.
func Default() CoreOptions {
	return CoreOptions{
		PartitionExpirationCheckInterval: time.Hour,
		PartitionTimestampFormatter:      "yyyyMMdd",
		SequenceFieldSortOrder:           Ascending,
	}
}

// RegisterFlags declares every recognized key on flags, using Default()
// values as the defaults, for a cobra command's PersistentFlags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.Duration("partition.expiration-time", d.PartitionExpirationTime, "retention duration after which a partition's rows are dropped; unset disables expiration")
	flags.Duration("partition.expiration-check-interval", d.PartitionExpirationCheckInterval, "minimum interval between expire passes")
	flags.String("partition.timestamp-formatter", d.PartitionTimestampFormatter, "Java-style pattern used to parse the derived partition timestamp")
	flags.String("partition.timestamp-pattern", d.PartitionTimestampPattern, "template mapping partition fields to the formatter input; empty uses the first partition column")
	flags.Int("partition.expiration-batch-size", d.PartitionExpirationBatchSize, "partitions dropped per OVERWRITE commit; 0 means unbounded")
	flags.Int("partition.expiration-max-num", d.PartitionExpirationMaxNum, "maximum partitions dropped per expire pass; 0 means unbounded")
	flags.Bool("metastore.partitioned-table", false, "propagate partition lifecycle changes to the external catalog")
	flags.Bool("write-only", false, "disable compaction and snapshot expiration on this writer")
	flags.StringSlice("sequence.field", nil, "comma-separated field names forming the within-key ordering column")
	flags.String("sequence.field.sort-order", "ascending", "ascending or descending")
}

// Load reads CoreOptions from a bound viper.Viper (see RegisterFlags /
// viper.BindPFlags).
func Load(v *viper.Viper) (CoreOptions, error) {
	order := Ascending
	switch v.GetString("sequence.field.sort-order") {
	case "", "ascending":
		order = Ascending
	case "descending":
		order = Descending
	default:
		return CoreOptions{}, Error.Wrap(errs.New("invalid sequence.field.sort-order %q", v.GetString("sequence.field.sort-order")))
	}

	opts := CoreOptions{
		PartitionExpirationTime:          v.GetDuration("partition.expiration-time"),
		PartitionExpirationCheckInterval: v.GetDuration("partition.expiration-check-interval"),
		PartitionTimestampFormatter:      v.GetString("partition.timestamp-formatter"),
		PartitionTimestampPattern:        v.GetString("partition.timestamp-pattern"),
		PartitionExpirationBatchSize:     v.GetInt("partition.expiration-batch-size"),
		PartitionExpirationMaxNum:        v.GetInt("partition.expiration-max-num"),
		MetastorePartitionedTable:        v.GetBool("metastore.partitioned-table"),
		WriteOnly:                        v.GetBool("write-only"),
		SequenceField:                    v.GetStringSlice("sequence.field"),
		SequenceFieldSortOrder:           order,
	}
	if opts.PartitionExpirationCheckInterval <= 0 {
		opts.PartitionExpirationCheckInterval = time.Hour
	}
	if opts.PartitionTimestampFormatter == "" {
		opts.PartitionTimestampFormatter = "yyyyMMdd"
	}
	return opts, nil
}

// Validate checks opts against a resolved table schema, enforcing the
// rule that expiration requires a partitioned table.
func Validate(opts CoreOptions, s schema.TableSchema) error {
	if err := schema.ValidateExpirationConfig(s, opts.ExpirationEnabled()); err != nil {
		return Error.Wrap(err)
	}
	return nil
}
