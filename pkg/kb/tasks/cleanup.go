// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revdoc/janitor/pkg/kb/cleanup"
	"github.com/revdoc/janitor/pkg/metrics"
	asynqutils "github.com/revdoc/janitor/pkg/utils/asynq"
	awsutils "github.com/revdoc/janitor/pkg/utils/aws"
)

const (
	// TaskCleanup is the name of the task, which reclaims stale knowledge
	// bases. Without a payload it starts a new cleanup job over all stale
	// knowledge bases; with a payload it processes the batch the payload
	// describes.
	TaskCleanup = "kb:task:cleanup"
)

// ErrNoCleaner is an error, which is returned when the worker has not been
// configured with a [cleanup.Cleaner].
var ErrNoCleaner = errors.New("no cleaner configured")

// cleaner is the [cleanup.Cleaner] used by the task handlers.
var cleaner *cleanup.Cleaner

// SetCleaner sets the [cleanup.Cleaner] to be used by the task handlers.
func SetCleaner(c *cleanup.Cleaner) {
	cleaner = c
}

// NewCleanupTask creates a new [asynq.Task] for starting a cleanup job
// without specifying a payload.
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskCleanup, nil)
}

// HandleCleanupTask is the handler, which reclaims stale knowledge bases.
func HandleCleanupTask(ctx context.Context, t *asynq.Task) error {
	if cleaner == nil {
		return asynqutils.SkipRetry(ErrNoCleaner)
	}

	var trigger cleanup.Trigger
	data := t.Payload()
	if data != nil {
		if err := asynqutils.Unmarshal(data, &trigger); err != nil {
			return asynqutils.SkipRetry(err)
		}
	}

	logger := asynqutils.GetLogger(ctx)
	resp, err := cleaner.Run(ctx, trigger)
	if err != nil {
		// A continuation for a job the status store knows nothing
		// about will not become valid by retrying it.
		if errors.Is(err, cleanup.ErrUnknownJob) {
			return asynqutils.SkipRetry(err)
		}

		return awsutils.MaybeSkipRetry(err)
	}

	if !trigger.IsContinuation() && resp.JobID != "" {
		metric := prometheus.MustNewConstMetric(
			outdatedDesc,
			prometheus.GaugeValue,
			float64(resp.OutdatedCount),
			resp.JobID,
		)
		key := metrics.Key(TaskCleanup, resp.JobID)
		metrics.DefaultCollector.AddMetric(key, metric)
	}

	logger.Info(
		"processed cleanup trigger",
		"job_id", resp.JobID,
		"message", resp.Message,
	)

	return nil
}
