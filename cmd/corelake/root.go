// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/corelake/pkg/config"
)

var (
	cfgViper = viper.New()
	logLevel string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "corelake",
		Short:         "reference CLI over the partitioned table core",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, or error")
	config.RegisterFlags(root.PersistentFlags())
	if err := cfgViper.BindPFlags(root.PersistentFlags()); err != nil {
		panic(err)
	}

	root.AddCommand(newExpireCommand())
	root.AddCommand(newReadCommand())
	return root
}

func newLogger() (*zap.Logger, error) {
	switch logLevel {
	case "debug":
		return zap.NewDevelopment()
	case "error":
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
		return cfg.Build()
	default:
		return zap.NewProduction()
	}
}

func loadOptions() (config.CoreOptions, error) {
	return config.Load(cfgViper)
}

// newRunID tags one command invocation for log correlation, the way a
// piece or segment operation gets a fresh UUID to thread through logs.
func newRunID() string {
	return uuid.NewString()
}
