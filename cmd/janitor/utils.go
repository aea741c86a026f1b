// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/olekukonko/tablewriter"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/revdoc/janitor/internal/pkg/migrations"
	asynqclient "github.com/revdoc/janitor/pkg/clients/asynq"
	awsclients "github.com/revdoc/janitor/pkg/clients/aws"
	dbclient "github.com/revdoc/janitor/pkg/clients/db"
	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/kb/agestore"
	"github.com/revdoc/janitor/pkg/kb/catalog"
	"github.com/revdoc/janitor/pkg/kb/cleanup"
	"github.com/revdoc/janitor/pkg/kb/statusstore"
	kbtasks "github.com/revdoc/janitor/pkg/kb/tasks"
)

// na is displayed for unknown values in tabular output.
const na = "N/A"

var (
	errNoRedisEndpoint    = errors.New("no redis endpoint specified")
	errNoDatabaseConfig   = errors.New("no vector store dsn or credentials secret specified")
	errNoDashboardAddress = errors.New("no dashboard address specified")
	errNoAPIAddress       = errors.New("no api address specified")
	errNoAWSRegion        = errors.New("no aws region specified")
)

// configKey is the key used to store the parsed configuration in the context.
type configKey struct{}

// getConfig returns the [config.Config] from the context of the given
// [cli.Context].
func getConfig(ctx *cli.Context) *config.Config {
	conf, ok := ctx.Context.Value(configKey{}).(*config.Config)
	if !ok {
		panic("config not found in context")
	}

	return conf
}

// validateRedisConfig validates the Redis configuration settings.
func validateRedisConfig(conf *config.Config) error {
	if conf.Redis.Endpoint == "" {
		return errNoRedisEndpoint
	}

	return nil
}

// validateDBConfig validates the vector store configuration settings.
func validateDBConfig(conf *config.Config) error {
	if conf.Database.DSN == "" && conf.Database.CredentialsSecret == "" {
		return errNoDatabaseConfig
	}

	return nil
}

// validateDashboardConfig validates the dashboard configuration settings.
func validateDashboardConfig(conf *config.Config) error {
	if conf.Dashboard.Address == "" {
		return errNoDashboardAddress
	}

	return nil
}

// validateAPIConfig validates the trigger API configuration settings.
func validateAPIConfig(conf *config.Config) error {
	if conf.API.Address == "" {
		return errNoAPIAddress
	}

	return nil
}

// validateAWSConfig validates the AWS configuration settings.
func validateAWSConfig(conf *config.Config) error {
	if conf.AWS.Region == "" {
		return errNoAWSRegion
	}

	return nil
}

// newRedisClientOpt returns a new [asynq.RedisClientOpt] from the given
// config.
func newRedisClientOpt(conf *config.Config) asynq.RedisClientOpt {
	// TODO: Handle authentication, TLS, etc.
	return asynq.RedisClientOpt{
		Addr: conf.Redis.Endpoint,
	}
}

// newAsynqClient returns a new [asynq.Client] from the given config.
func newAsynqClient(conf *config.Config) *asynq.Client {
	return asynq.NewClient(newRedisClientOpt(conf))
}

// newInspector returns a new [asynq.Inspector] from the given config.
func newInspector(conf *config.Config) *asynq.Inspector {
	return asynq.NewInspector(newRedisClientOpt(conf))
}

// newDB returns a new [bun.DB] connected to the given DSN.
func newDB(dsn string, debug bool) *bun.DB {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(pgdb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(debug)))

	return db
}

// newMigrator returns a new [migrate.Migrator] from the given config. By
// default the bundled migrations are used, unless an alternate migration
// directory has been configured.
func newMigrator(conf *config.Config, db *bun.DB) (*migrate.Migrator, error) {
	m := migrations.Migrations
	if conf.Database.MigrationDirectory != "" {
		m = migrate.NewMigrations(migrate.WithMigrationsDirectory(conf.Database.MigrationDirectory))
		if err := m.Discover(os.DirFS(conf.Database.MigrationDirectory)); err != nil {
			return nil, err
		}
	}

	return migrate.NewMigrator(db, m), nil
}

// newScheduler creates a new [asynq.Scheduler] from the given config.
func newScheduler(conf *config.Config) *asynq.Scheduler {
	preEnqueueFunc := func(t *asynq.Task, _ []asynq.Option) {
		slog.Info("enqueueing task", "name", t.Type())
	}

	opts := &asynq.SchedulerOpts{
		PreEnqueueFunc: preEnqueueFunc,
	}

	return asynq.NewScheduler(newRedisClientOpt(conf), opts)
}

// newTableWriter creates a new table for rendering tabular output with the
// given headers.
func newTableWriter(w io.Writer, headers []string) *tablewriter.Table {
	row := make([]any, 0, len(headers))
	for _, header := range headers {
		row = append(row, header)
	}

	table := tablewriter.NewTable(w)
	table.Header(row...)

	return table
}

// configureCleaner wires up the vector store, registry, status store and
// dispatcher clients, and returns a [cleanup.Cleaner] built on top of them.
// The configured cleaner is also registered with the task handlers.
func configureCleaner(ctx *cli.Context) (*cleanup.Cleaner, error) {
	conf := getConfig(ctx)

	asynqclient.SetClient(newAsynqClient(conf))
	asynqclient.SetInspector(newInspector(conf))

	dsn, err := getDatabaseDSN(ctx.Context, conf)
	if err != nil {
		return nil, err
	}

	db := newDB(dsn, conf.Debug)
	dbclient.SetDB(db)

	if err := configureAWSClients(ctx.Context, conf); err != nil {
		return nil, err
	}

	cleaner := cleanup.New(cleanup.Config{
		Catalog:     catalog.New(awsclients.BedrockAgent),
		AgeIndex:    agestore.New(db),
		StatusStore: statusstore.New(awsclients.DynamoDB, conf.Cleanup.StatusTable),
		Dispatcher:  kbtasks.NewDispatcher(conf.Cleanup.Queue),
		Cleanup:     conf.Cleanup,
	})
	kbtasks.SetCleaner(cleaner)

	return cleaner, nil
}
