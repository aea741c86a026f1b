// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package cleanup implements the reclamation of stale knowledge bases.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/kb/catalog"
	"github.com/revdoc/janitor/pkg/kb/models"
	asynqutils "github.com/revdoc/janitor/pkg/utils/asynq"
	"github.com/revdoc/janitor/pkg/utils/retry"
)

// ErrUnknownJob is an error, which is returned when a continuation refers to
// a job the status store has no record of.
var ErrUnknownJob = errors.New("unknown cleanup job")

// ErrNoDispatcher is an error, which is returned when the cleaner is
// configured without a dispatcher.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// Response messages returned by [Cleaner.Run].
const (
	// MsgNothingToCleanup is returned when discovery finds no knowledge
	// base older than the threshold.
	MsgNothingToCleanup = "No knowledge bases to cleanup"

	// MsgDispatchFailed is returned when handing the work over to the
	// async machinery fails.
	MsgDispatchFailed = "Failed to start async process"

	// MsgInternalError is returned for any other failure.
	MsgInternalError = "Internal error"
)

// Catalog provides access to the knowledge base registry.
type Catalog interface {
	// List returns all knowledge base entries from the registry.
	List(ctx context.Context) ([]catalog.Entry, error)

	// DeleteKnowledgeBase deletes the knowledge base with the given id.
	DeleteKnowledgeBase(ctx context.Context, kbID string) error

	// DeleteDataSource deletes the data source paired with the given
	// knowledge base.
	DeleteDataSource(ctx context.Context, kbID, dsID string) error
}

// AgeIndex provides access to the creation timestamps of the vector tables
// backing the knowledge bases, as well as deletion of the tables themselves.
type AgeIndex interface {
	// CreatedAt returns the creation timestamp of the vector table
	// backing the given resource id.
	CreatedAt(ctx context.Context, resourceID string) (time.Time, bool, error)

	// DropTable drops the vector table backing the given resource id.
	DropTable(ctx context.Context, resourceID string) error
}

// StatusStore tracks the cleanup progress of each knowledge base and the
// bookkeeping of each job.
type StatusStore interface {
	// GetStatus returns the recorded cleanup status of a resource.
	GetStatus(ctx context.Context, id string) (models.CleanupStatus, bool, error)

	// SetStatus records the cleanup status of a resource. The comment is
	// persisted only if no comment exists yet.
	SetStatus(ctx context.Context, id string, status models.CleanupStatus, comment string) error

	// GetMapping returns the registry identifiers of a resource.
	GetMapping(ctx context.Context, id string) (string, string, bool, error)

	// DeleteMapping removes the registry identifiers of a resource.
	DeleteMapping(ctx context.Context, id string) error

	// PutJob persists a job.
	PutJob(ctx context.Context, job *models.Job) error

	// GetJob returns the job with the given id.
	GetJob(ctx context.Context, jobID string) (*models.Job, bool, error)

	// AdvanceCursor persists the new cursor position of a job without
	// ever moving it backwards.
	AdvanceCursor(ctx context.Context, jobID string, cursor int, completed bool) error
}

// Dispatcher hands a continuation over to the async machinery for later
// processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Continuation) error
}

// Trigger represents an incoming request to the cleaner. A trigger without a
// job id starts a new job; a trigger with a job id continues an existing one.
type Trigger struct {
	// JobID identifies the job to continue, if any.
	JobID string `json:"job_id,omitempty"`

	// Batch is the slice of resource ids to process in this invocation.
	Batch []string `json:"kb_batch,omitempty"`

	// StartIndex is the position of the batch within the candidate set of
	// the job.
	StartIndex int `json:"start_index,omitempty"`

	// DaysThreshold is the age cutoff in days. When zero, the configured
	// default applies.
	DaysThreshold int `json:"days_threshold,omitempty"`
}

// IsContinuation returns a boolean indicating whether the trigger continues
// an existing job.
func (t *Trigger) IsContinuation() bool {
	return t.JobID != ""
}

// Continuation represents the payload dispatched to process the next batch
// of a job.
type Continuation struct {
	// JobID identifies the job being continued.
	JobID string `json:"job_id"`

	// Batch is the slice of resource ids to process next.
	Batch []string `json:"kb_batch"`

	// StartIndex is the position of the batch within the candidate set of
	// the job.
	StartIndex int `json:"start_index"`

	// DaysThreshold is the age cutoff the job was started with.
	DaysThreshold int `json:"days_threshold"`
}

// Response represents the outcome of a trigger.
type Response struct {
	// StatusCode is the HTTP-style status code of the outcome.
	StatusCode int `json:"statusCode"`

	// Message is a human-readable summary of the outcome.
	Message string `json:"message"`

	// JobID is the id of the accepted or continued job, if any.
	JobID string `json:"job_id,omitempty"`

	// DaysThreshold is the age cutoff the run was performed with.
	DaysThreshold int `json:"days_threshold,omitempty"`

	// OutdatedCount is the number of knowledge bases selected for
	// cleanup.
	OutdatedCount int `json:"outdated_count,omitempty"`
}

// Config provides the settings and collaborators of the [Cleaner].
type Config struct {
	// Catalog is the knowledge base registry client.
	Catalog Catalog

	// AgeIndex is the vector store age index.
	AgeIndex AgeIndex

	// StatusStore tracks cleanup progress.
	StatusStore StatusStore

	// Dispatcher hands continuations over to the async machinery.
	Dispatcher Dispatcher

	// Cleanup provides the cleanup settings.
	Cleanup config.CleanupConfig
}

// Cleaner reclaims stale knowledge bases in batches, dispatching a
// continuation for each subsequent batch until the candidate set is
// exhausted.
type Cleaner struct {
	catalog    Catalog
	ages       AgeIndex
	statuses   StatusStore
	dispatcher Dispatcher
	conf       config.CleanupConfig

	// nowFunc and sleepFunc exist so tests can control time.
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration)
}

// New creates a new [Cleaner] from the given config.
func New(conf Config) *Cleaner {
	cleanup := conf.Cleanup
	cleanup.SetDefaults()

	return &Cleaner{
		catalog:    conf.Catalog,
		ages:       conf.AgeIndex,
		statuses:   conf.StatusStore,
		dispatcher: conf.Dispatcher,
		conf:       cleanup,
		nowFunc:    time.Now,
		sleepFunc:  sleep,
	}
}

// sleep blocks for the given duration, or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run processes the given trigger and returns the outcome. A non-nil error
// accompanies every 5xx response, so callers can decide whether to retry.
func (c *Cleaner) Run(ctx context.Context, t Trigger) (Response, error) {
	if t.IsContinuation() {
		return c.continueJob(ctx, t)
	}

	return c.startJob(ctx, t)
}

// startJob discovers the stale knowledge bases, persists a new job over them
// and dispatches the first continuation.
func (c *Cleaner) startJob(ctx context.Context, t Trigger) (Response, error) {
	logger := asynqutils.GetLogger(ctx)

	days := t.DaysThreshold
	if days <= 0 {
		days = c.conf.DefaultDaysThreshold
	}

	candidates := c.findOutdated(ctx, days)
	if len(candidates) == 0 {
		logger.Info("no stale knowledge bases found", "days_threshold", days)

		return Response{StatusCode: 200, Message: MsgNothingToCleanup, DaysThreshold: days}, nil
	}

	for _, id := range candidates {
		if err := c.statuses.SetStatus(ctx, id, models.StatusPending, ""); err != nil {
			return Response{StatusCode: 500, Message: MsgInternalError}, err
		}
	}

	job := &models.Job{
		ID:            uuid.NewString(),
		DaysThreshold: days,
		Candidates:    candidates,
		Cursor:        0,
		BatchSize:     c.conf.BatchSize,
		StartedAt:     c.nowFunc(),
	}

	if err := c.statuses.PutJob(ctx, job); err != nil {
		return Response{StatusCode: 500, Message: MsgInternalError}, err
	}

	next := Continuation{
		JobID:         job.ID,
		Batch:         window(job.Candidates, 0, job.BatchSize),
		StartIndex:    0,
		DaysThreshold: days,
	}

	if c.dispatcher == nil {
		return Response{StatusCode: 500, Message: MsgDispatchFailed}, ErrNoDispatcher
	}

	if err := c.dispatcher.Dispatch(ctx, next); err != nil {
		logger.Error("failed to dispatch first batch", "job_id", job.ID, "reason", err)

		return Response{StatusCode: 500, Message: MsgDispatchFailed}, err
	}

	logger.Info("accepted knowledge bases for cleanup",
		"job_id", job.ID,
		"count", len(candidates),
		"days_threshold", days,
	)

	resp := Response{
		StatusCode:    200,
		Message:       fmt.Sprintf("Accepted %d knowledge bases for cleanup", len(candidates)),
		JobID:         job.ID,
		DaysThreshold: days,
		OutdatedCount: len(candidates),
	}

	return resp, nil
}

// continueJob processes the batch carried by the trigger and dispatches the
// next continuation, if any work remains.
func (c *Cleaner) continueJob(ctx context.Context, t Trigger) (Response, error) {
	logger := asynqutils.GetLogger(ctx)

	job, ok, err := c.statuses.GetJob(ctx, t.JobID)
	if err != nil {
		return Response{StatusCode: 500, Message: MsgInternalError}, err
	}

	if !ok {
		return Response{StatusCode: 500, Message: MsgInternalError}, fmt.Errorf("%w: %s", ErrUnknownJob, t.JobID)
	}

	for i, id := range t.Batch {
		if err := c.processResource(ctx, id); err != nil {
			logger.Error("giving up on knowledge base", "resource_id", id, "reason", err)
		}

		if i < len(t.Batch)-1 {
			c.sleepFunc(ctx, c.conf.DelayBetweenResources)
		}
	}

	cursor := t.StartIndex + len(t.Batch)
	done := cursor >= len(job.Candidates)

	if err := c.statuses.AdvanceCursor(ctx, job.ID, cursor, done); err != nil {
		return Response{StatusCode: 500, Message: MsgInternalError}, err
	}

	if done {
		logger.Info("cleanup job completed", "job_id", job.ID, "count", len(job.Candidates))

		resp := Response{
			StatusCode:    200,
			Message:       fmt.Sprintf("Processed %d knowledge bases", len(job.Candidates)),
			JobID:         job.ID,
			DaysThreshold: job.DaysThreshold,
		}

		return resp, nil
	}

	next := Continuation{
		JobID:         job.ID,
		Batch:         window(job.Candidates, cursor, job.BatchSize),
		StartIndex:    cursor,
		DaysThreshold: job.DaysThreshold,
	}

	if err := c.dispatcher.Dispatch(ctx, next); err != nil {
		logger.Error("failed to dispatch next batch", "job_id", job.ID, "reason", err)

		return Response{StatusCode: 500, Message: MsgDispatchFailed}, err
	}

	resp := Response{
		StatusCode:    200,
		Message:       fmt.Sprintf("Processed batch of %d knowledge bases", len(t.Batch)),
		JobID:         job.ID,
		DaysThreshold: job.DaysThreshold,
	}

	return resp, nil
}

// findOutdated returns the ids of the knowledge bases whose backing vector
// table is strictly older than the given number of days. Knowledge bases
// exactly at the threshold are not selected. Discovery fails closed: a
// registry listing failure yields an empty candidate set, and an age lookup
// failure excludes the affected knowledge base only. Nothing is ever deleted
// on the strength of incomplete information.
func (c *Cleaner) findOutdated(ctx context.Context, days int) []string {
	logger := asynqutils.GetLogger(ctx)

	entries, err := c.catalog.List(ctx)
	if err != nil {
		logger.Error("failed to list knowledge bases", "reason", err)

		return nil
	}

	cutoff := time.Duration(days) * 24 * time.Hour
	now := c.nowFunc()

	outdated := make([]string, 0)
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name, c.conf.Prefix) {
			continue
		}

		id := strings.TrimPrefix(entry.Name, c.conf.Prefix)
		createdAt, ok, err := c.ages.CreatedAt(ctx, id)
		if err != nil {
			logger.Error("failed to look up age, skipping", "resource_id", id, "reason", err)

			continue
		}

		if !ok {
			continue
		}

		if now.Sub(createdAt) > cutoff {
			outdated = append(outdated, id)
		}
	}

	return outdated
}

// processResource reclaims a single knowledge base, retrying the deletion
// sequence with a fixed delay between attempts. A resource already marked as
// succeeded is skipped entirely.
func (c *Cleaner) processResource(ctx context.Context, id string) error {
	logger := asynqutils.GetLogger(ctx)

	status, ok, err := c.statuses.GetStatus(ctx, id)
	if err != nil {
		return err
	}

	if ok && status == models.StatusSucceeded {
		logger.Info("knowledge base already cleaned up", "resource_id", id)

		return nil
	}

	if err := c.statuses.SetStatus(ctx, id, models.StatusInProgress, ""); err != nil {
		return err
	}

	policy := retry.Policy{
		MaxAttempts: c.conf.MaxRetries,
		Delay:       c.conf.RetryDelay,
	}

	op := func(ctx context.Context) error {
		return c.deleteResource(ctx, id)
	}

	if err := policy.Do(ctx, op); err != nil {
		if statusErr := c.statuses.SetStatus(ctx, id, models.StatusFailed, err.Error()); statusErr != nil {
			return statusErr
		}

		return err
	}

	return c.statuses.SetStatus(ctx, id, models.StatusSucceeded, "Cleanup completed successfully")
}

// deleteResource performs the deletion sequence for a single knowledge base:
// the backing vector table goes first, then the data source, then the
// knowledge base itself, and finally the mapping record. A missing mapping
// means the registry side is already gone, which counts as success.
func (c *Cleaner) deleteResource(ctx context.Context, id string) error {
	if err := c.ages.DropTable(ctx, id); err != nil {
		return fmt.Errorf("dropping vector table: %w", err)
	}

	kbID, dsID, ok, err := c.statuses.GetMapping(ctx, id)
	if err != nil {
		return fmt.Errorf("resolving registry ids: %w", err)
	}

	if !ok {
		return nil
	}

	if err := c.catalog.DeleteDataSource(ctx, kbID, dsID); err != nil {
		return fmt.Errorf("deleting data source: %w", err)
	}

	if err := c.catalog.DeleteKnowledgeBase(ctx, kbID); err != nil {
		return fmt.Errorf("deleting knowledge base: %w", err)
	}

	if err := c.statuses.DeleteMapping(ctx, id); err != nil {
		return fmt.Errorf("removing registry ids: %w", err)
	}

	return nil
}

// window returns the slice of ids starting at the given offset with at most
// size elements.
func window(ids []string, offset, size int) []string {
	if offset >= len(ids) {
		return nil
	}

	end := offset + size
	if end > len(ids) {
		end = len(ids)
	}

	return ids[offset:end]
}
