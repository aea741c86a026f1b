// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/kb/cleanup"
	"github.com/revdoc/janitor/pkg/kb/models"
)

// emptyStatusStore is a status store which knows about nothing.
type emptyStatusStore struct{}

func (emptyStatusStore) GetStatus(_ context.Context, _ string) (models.CleanupStatus, bool, error) {
	return "", false, nil
}

func (emptyStatusStore) SetStatus(_ context.Context, _ string, _ models.CleanupStatus, _ string) error {
	return nil
}

func (emptyStatusStore) GetMapping(_ context.Context, _ string) (string, string, bool, error) {
	return "", "", false, nil
}

func (emptyStatusStore) DeleteMapping(_ context.Context, _ string) error {
	return nil
}

func (emptyStatusStore) PutJob(_ context.Context, _ *models.Job) error {
	return nil
}

func (emptyStatusStore) GetJob(_ context.Context, _ string) (*models.Job, bool, error) {
	return nil, false, nil
}

func (emptyStatusStore) AdvanceCursor(_ context.Context, _ string, _ int, _ bool) error {
	return nil
}

func TestHandleCleanupTaskWithoutCleaner(t *testing.T) {
	SetCleaner(nil)
	defer SetCleaner(nil)

	testTask := NewCleanupTask()
	err := HandleCleanupTask(context.Background(), testTask)
	if err == nil {
		t.Fatal("handler must fail without a configured cleaner")
	}

	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("a missing cleaner must not be retried, got %v", err)
	}
}

func TestHandleCleanupTaskMalformedPayload(t *testing.T) {
	SetCleaner(cleanup.New(cleanup.Config{Cleanup: config.CleanupConfig{}}))
	defer SetCleaner(nil)

	testTask := asynq.NewTask(TaskCleanup, []byte("{not-a-payload"))
	err := HandleCleanupTask(context.Background(), testTask)
	if err == nil {
		t.Fatal("handler must fail on a malformed payload")
	}

	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("a malformed payload must not be retried, got %v", err)
	}
}

func TestHandleCleanupTaskUnknownJob(t *testing.T) {
	SetCleaner(cleanup.New(cleanup.Config{
		StatusStore: emptyStatusStore{},
		Cleanup: config.CleanupConfig{
			RetryDelay: time.Millisecond,
		},
	}))
	defer SetCleaner(nil)

	payload := cleanup.Continuation{
		JobID:         "no-such-job",
		Batch:         []string{"alpha"},
		StartIndex:    0,
		DaysThreshold: 30,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}

	testTask := asynq.NewTask(TaskCleanup, data)
	err = HandleCleanupTask(context.Background(), testTask)
	if err == nil {
		t.Fatal("handler must fail on a continuation for an unknown job")
	}

	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("an unknown job must not be retried, got %v", err)
	}
}
