// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/urfave/cli/v2"

	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/core/registry"
	"github.com/revdoc/janitor/pkg/metrics"
	asynqutils "github.com/revdoc/janitor/pkg/utils/asynq"
	"github.com/revdoc/janitor/pkg/utils/asynq/worker"
)

// NewWorkerCommand returns a new command for interfacing with the workers.
func NewWorkerCommand() *cli.Command {
	cmd := &cli.Command{
		Name:    "worker",
		Usage:   "worker operations",
		Aliases: []string{"w"},
		Before: func(ctx *cli.Context) error {
			conf := getConfig(ctx)
			validatorFuncs := []func(c *config.Config) error{
				validateRedisConfig,
				validateDBConfig,
				validateAWSConfig,
			}

			for _, validator := range validatorFuncs {
				if err := validator(conf); err != nil {
					return err
				}
			}

			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:    "start",
				Usage:   "start the worker",
				Aliases: []string{"s"},
				Action: func(ctx *cli.Context) error {
					return startWorker(ctx)
				},
			},
		},
	}

	return cmd
}

// startWorker starts the worker and blocks until a shutdown signal is
// received.
func startWorker(ctx *cli.Context) error {
	conf := getConfig(ctx)

	if _, err := configureCleaner(ctx); err != nil {
		return err
	}

	logLevel := asynq.InfoLevel
	if conf.Debug {
		logLevel = asynq.DebugLevel
	}

	w := worker.NewFromConfig(
		newRedisClientOpt(conf),
		conf.Worker,
		worker.WithLogLevel(logLevel),
	)

	w.Use(
		asynqutils.NewLoggerMiddleware(slog.Default()),
		asynqutils.NewMeasuringMiddleware(),
		asynqutils.NewMetricsMiddleware(),
	)

	// Register our task handlers
	walker := func(name string, handler asynq.Handler) error {
		slog.Info("registering task", "name", name)
		w.Handle(name, handler)

		return nil
	}
	if err := registry.TaskRegistry.Range(walker); err != nil {
		return err
	}

	// Expose the worker metrics, if configured
	if conf.Worker.Metrics.Address != "" {
		path := conf.Worker.Metrics.Path
		if path == "" {
			path = "/metrics"
		}

		server := metrics.NewServer(conf.Worker.Metrics.Address, path)
		defer server.Close() // nolint: errcheck

		go func() {
			slog.Info(
				"starting metrics server",
				"address", conf.Worker.Metrics.Address,
				"path", path,
			)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "reason", err)
			}
		}()
	}

	return w.Run()
}
