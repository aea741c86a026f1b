// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package tasks provides the asynq task handlers of the knowledge base
// cleanup.
package tasks

import (
	"github.com/hibiken/asynq"

	"github.com/revdoc/janitor/pkg/core/registry"
)

// CleanupTaskSchedule is the default schedule on which a new cleanup job is
// started.
const CleanupTaskSchedule = "@every 24h"

// init registers our task handlers and periodic tasks with the registries.
func init() {
	// Task handlers
	registry.TaskRegistry.MustRegister(TaskCleanup, asynq.HandlerFunc(HandleCleanupTask))

	// Periodic tasks
	registry.ScheduledTaskRegistry.MustRegister(CleanupTaskSchedule, NewCleanupTask())
}
