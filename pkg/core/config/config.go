// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package config provides the janitor configuration model.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoConfigVersion error is returned when the configuration does not specify
// config format version.
var ErrNoConfigVersion = errors.New("config format version not specified")

// ErrUnsupportedVersion is an error, which is returned when the config file
// uses an incompatible version format.
var ErrUnsupportedVersion = errors.New("unsupported config format version")

// ConfigFormatVersion represents the supported config format version.
const ConfigFormatVersion = "v1alpha1"

// DefaultQueueName is the name of the queue used for tasks, unless an explicit
// queue has been configured.
const DefaultQueueName = "janitor"

const (
	// DefaultBatchSize is the default number of knowledge bases processed
	// by a single cleanup invocation.
	DefaultBatchSize = 10

	// DefaultMaxRetries is the default number of deletion attempts per
	// knowledge base.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the default delay between deletion attempts.
	DefaultRetryDelay = 5 * time.Second

	// DefaultDaysThreshold is the default age (in days) past which a
	// knowledge base is considered outdated.
	DefaultDaysThreshold = 30

	// DefaultKnowledgeBasePrefix is the default naming prefix of the
	// knowledge bases managed by the documentation pipeline.
	DefaultKnowledgeBasePrefix = "kb_"

	// DefaultStatusTableName is the default name of the DynamoDB table
	// which tracks cleanup progress.
	DefaultStatusTableName = "cleanup-status-checker"
)

// Config represents the janitor configuration.
type Config struct {
	// Version is the version of the config file.
	Version string `yaml:"version"`

	// Debug configures debug mode, if set to true.
	Debug bool `yaml:"debug"`

	// Logging represents the logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Redis represents the Redis configuration.
	Redis RedisConfig `yaml:"redis"`

	// Database represents the vector store database configuration.
	Database DatabaseConfig `yaml:"database"`

	// Worker represents the worker configuration.
	Worker WorkerConfig `yaml:"worker"`

	// Scheduler represents the scheduler configuration.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Dashboard represents the dashboard configuration.
	Dashboard DashboardConfig `yaml:"dashboard"`

	// API represents the HTTP trigger API configuration.
	API APIConfig `yaml:"api"`

	// AWS represents the AWS configuration.
	AWS AWSConfig `yaml:"aws"`

	// Vault represents the Vault configuration.
	Vault VaultConfig `yaml:"vault"`

	// Cleanup represents the knowledge base cleanup configuration.
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// LoggingConfig provides the logging configuration settings.
type LoggingConfig struct {
	// Level specifies the log level, e.g. info, warn, error or debug.
	Level string `yaml:"level"`

	// Format specifies the format of log events, e.g. text or json.
	Format string `yaml:"format"`

	// AddSource configures log events to include the source code position
	// of the log statement.
	AddSource bool `yaml:"add_source"`

	// Attributes provides default attributes to add to each log event.
	Attributes map[string]string `yaml:"attributes"`
}

// RedisConfig provides Redis specific configuration settings.
type RedisConfig struct {
	// Endpoint is the endpoint of the Redis service.
	Endpoint string `yaml:"endpoint"`
}

// DatabaseConfig provides the configuration of the vector store database.
//
// The janitor connects to the vector store either with an explicit DSN, or by
// reading the database credentials from a Vault secret.
type DatabaseConfig struct {
	// DSN is the Data Source Name to connect to.
	DSN string `yaml:"dsn"`

	// Name is the name of the database to connect to, when credentials
	// are read from Vault.
	Name string `yaml:"name"`

	// CredentialsSecret is the path to the Vault secret providing the
	// host, port, user and password of the vector store.
	CredentialsSecret string `yaml:"credentials_secret"`

	// MigrationDirectory specifies an alternate location with migration
	// files.
	MigrationDirectory string `yaml:"migration_dir"`
}

// WorkerConfig provides worker specific configuration settings.
type WorkerConfig struct {
	// Metrics specifies the metrics configuration for the worker.
	Metrics MetricsConfig `yaml:"metrics"`

	// Concurrency specifies the concurrency level for workers.
	Concurrency int `yaml:"concurrency"`

	// Queues provides the queues and their priorities which the worker
	// will handle.
	Queues map[string]int `yaml:"queues"`

	// StrictPriority configures the worker queues with strict priority,
	// if set to true.
	StrictPriority bool `yaml:"strict_priority"`
}

// MetricsConfig provides the metrics configuration settings.
type MetricsConfig struct {
	// Address specifies the address on which the metrics HTTP endpoint
	// will be exposed.
	Address string `yaml:"address"`

	// Path specifies the HTTP path for exposing metrics.
	Path string `yaml:"path"`
}

// SchedulerConfig provides the scheduler configuration settings.
type SchedulerConfig struct {
	// DefaultQueue specifies the queue to which periodic tasks will be
	// enqueued, unless the job specifies an explicit queue.
	DefaultQueue string `yaml:"default_queue"`

	// Jobs provides the list of periodic jobs.
	Jobs []*PeriodicJob `yaml:"jobs"`
}

// PeriodicJob is a job, which is enqueued by the scheduler on a regular basis.
type PeriodicJob struct {
	// Name specifies the name of the task to be enqueued.
	Name string `yaml:"name"`

	// Spec is the cron spec of the job.
	Spec string `yaml:"spec"`

	// Payload is an optional payload to use when enqueueing the task.
	Payload string `yaml:"payload"`

	// Queue is an optional queue to use when enqueueing the task.
	Queue string `yaml:"queue"`

	// Desc is an optional description of the job.
	Desc string `yaml:"desc"`
}

// DashboardConfig provides the dashboard configuration settings.
type DashboardConfig struct {
	// Address specifies the address on which the dashboard service will
	// listen.
	Address string `yaml:"address"`

	// ReadOnly configures the dashboard in read-only mode.
	ReadOnly bool `yaml:"read_only"`

	// PrometheusEndpoint specifies the Prometheus endpoint from which the
	// dashboard will read metrics.
	PrometheusEndpoint string `yaml:"prometheus_endpoint"`
}

// APIConfig provides the configuration of the HTTP trigger API.
type APIConfig struct {
	// Address specifies the address on which the trigger API will listen.
	Address string `yaml:"address"`
}

// AWSConfig provides the AWS configuration settings.
type AWSConfig struct {
	// Region is the AWS region to use.
	Region string `yaml:"region"`

	// AppID is an optional application specific identifier.
	AppID string `yaml:"app_id"`

	// Credentials provides optional static credentials. When empty, the
	// default credentials chain of the SDK is used.
	Credentials AWSCredentialsConfig `yaml:"credentials"`
}

// AWSCredentialsConfig provides static AWS credentials.
type AWSCredentialsConfig struct {
	// AccessKeyID is the AWS access key id.
	AccessKeyID string `yaml:"access_key_id"`

	// SecretAccessKey is the AWS secret access key.
	SecretAccessKey string `yaml:"secret_access_key"`
}

// VaultConfig provides the Vault configuration settings.
type VaultConfig struct {
	// Endpoint is the address of the Vault service.
	Endpoint string `yaml:"endpoint"`

	// Token is the auth token to use when connecting to Vault. When
	// empty, the VAULT_TOKEN environment variable is used instead.
	Token string `yaml:"token"`

	// MountPath is the mount path of the KV-v2 secrets engine.
	MountPath string `yaml:"mount_path"`
}

// CleanupConfig provides the knowledge base cleanup configuration settings.
type CleanupConfig struct {
	// BatchSize specifies the max number of knowledge bases processed by
	// a single invocation.
	BatchSize int `yaml:"batch_size"`

	// MaxRetries specifies the number of deletion attempts per knowledge
	// base before it is marked as failed.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay specifies the delay between deletion attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// DefaultDaysThreshold specifies the age in days past which a
	// knowledge base is considered outdated, unless the trigger payload
	// provides an explicit threshold.
	DefaultDaysThreshold int `yaml:"default_days_threshold"`

	// DelayBetweenResources specifies an optional delay between
	// processing consecutive knowledge bases within a batch.
	DelayBetweenResources time.Duration `yaml:"delay_between_kbs"`

	// Prefix is the naming prefix of the knowledge bases managed by the
	// documentation pipeline. Knowledge bases without this prefix are
	// never considered for cleanup.
	Prefix string `yaml:"kb_prefix"`

	// StatusTable is the name of the DynamoDB table which tracks cleanup
	// progress.
	StatusTable string `yaml:"status_table"`

	// Queue is the queue to which cleanup continuations are enqueued.
	Queue string `yaml:"queue"`
}

// Parse parses the config from the given path.
func Parse(path string) (*Config, error) {
	var conf Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}

	if conf.Version == "" {
		return nil, ErrNoConfigVersion
	}

	if conf.Version != ConfigFormatVersion {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, conf.Version)
	}

	conf.Cleanup.SetDefaults()

	return &conf, nil
}

// MustParse parses the config from the given path, or panics in case of
// errors.
func MustParse(path string) *Config {
	config, err := Parse(path)
	if err != nil {
		panic(err)
	}

	return config
}

// SetDefaults applies the default cleanup settings for unset options.
func (c *CleanupConfig) SetDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}

	if c.DefaultDaysThreshold <= 0 {
		c.DefaultDaysThreshold = DefaultDaysThreshold
	}

	if c.Prefix == "" {
		c.Prefix = DefaultKnowledgeBasePrefix
	}

	if c.StatusTable == "" {
		c.StatusTable = DefaultStatusTableName
	}

	if c.Queue == "" {
		c.Queue = DefaultQueueName
	}
}
