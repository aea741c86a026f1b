// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	asynqclient "github.com/revdoc/janitor/pkg/clients/asynq"
	"github.com/revdoc/janitor/pkg/kb/cleanup"
	asynqutils "github.com/revdoc/janitor/pkg/utils/asynq"
)

// Dispatcher enqueues cleanup continuations as [TaskCleanup] tasks, so that
// each batch of a job is processed by a separate worker invocation.
type Dispatcher struct {
	queue string
}

// NewDispatcher creates a new [Dispatcher], which enqueues continuations to
// the given queue. When the queue is empty, the continuation is enqueued to
// the queue from which the current task was consumed.
func NewDispatcher(queue string) *Dispatcher {
	return &Dispatcher{queue: queue}
}

// Dispatch implements the [cleanup.Dispatcher] interface.
func (d *Dispatcher) Dispatch(ctx context.Context, c cleanup.Continuation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	queue := d.queue
	if queue == "" {
		queue = asynqutils.GetQueueName(ctx)
	}

	logger := asynqutils.GetLogger(ctx)
	task := asynq.NewTask(TaskCleanup, data)
	info, err := asynqclient.Client.Enqueue(task, asynq.Queue(queue))
	if err != nil {
		logger.Error(
			"failed to enqueue task",
			"type", task.Type(),
			"job_id", c.JobID,
			"start_index", c.StartIndex,
			"reason", err,
		)

		return err
	}

	logger.Info(
		"enqueued task",
		"type", task.Type(),
		"id", info.ID,
		"queue", info.Queue,
		"job_id", c.JobID,
		"start_index", c.StartIndex,
	)

	return nil
}
