// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/revdoc/janitor/pkg/core/config"
	"github.com/revdoc/janitor/pkg/kb/catalog"
	"github.com/revdoc/janitor/pkg/kb/models"
)

type fakeCatalog struct {
	entries []catalog.Entry

	deletedKBs map[string]int
	deletedDSs map[string]int

	listErr   error
	deleteErr map[string]error
}

func newFakeCatalog(entries ...catalog.Entry) *fakeCatalog {
	return &fakeCatalog{
		entries:    entries,
		deletedKBs: make(map[string]int),
		deletedDSs: make(map[string]int),
		deleteErr:  make(map[string]error),
	}
}

func (f *fakeCatalog) List(_ context.Context) ([]catalog.Entry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.entries, nil
}

func (f *fakeCatalog) DeleteKnowledgeBase(_ context.Context, kbID string) error {
	if err := f.deleteErr[kbID]; err != nil {
		return err
	}
	f.deletedKBs[kbID]++

	return nil
}

func (f *fakeCatalog) DeleteDataSource(_ context.Context, kbID, _ string) error {
	if err := f.deleteErr[kbID]; err != nil {
		return err
	}
	f.deletedDSs[kbID]++

	return nil
}

type fakeAgeIndex struct {
	created    map[string]time.Time
	dropped    map[string]int
	dropErr    map[string]error
	createdErr map[string]error
}

func newFakeAgeIndex() *fakeAgeIndex {
	return &fakeAgeIndex{
		created:    make(map[string]time.Time),
		dropped:    make(map[string]int),
		dropErr:    make(map[string]error),
		createdErr: make(map[string]error),
	}
}

func (f *fakeAgeIndex) CreatedAt(_ context.Context, resourceID string) (time.Time, bool, error) {
	if err := f.createdErr[resourceID]; err != nil {
		return time.Time{}, false, err
	}
	createdAt, ok := f.created[resourceID]

	return createdAt, ok, nil
}

func (f *fakeAgeIndex) DropTable(_ context.Context, resourceID string) error {
	if err := f.dropErr[resourceID]; err != nil {
		return err
	}
	f.dropped[resourceID]++

	return nil
}

type fakeStatusStore struct {
	statuses map[string]models.CleanupStatus
	comments map[string]string
	mappings map[string][2]string
	jobs     map[string]*models.Job

	cursorHistory []int
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		statuses: make(map[string]models.CleanupStatus),
		comments: make(map[string]string),
		mappings: make(map[string][2]string),
		jobs:     make(map[string]*models.Job),
	}
}

func (f *fakeStatusStore) GetStatus(_ context.Context, id string) (models.CleanupStatus, bool, error) {
	status, ok := f.statuses[id]

	return status, ok, nil
}

func (f *fakeStatusStore) SetStatus(_ context.Context, id string, status models.CleanupStatus, comment string) error {
	f.statuses[id] = status
	if comment != "" {
		if _, exists := f.comments[id]; !exists {
			f.comments[id] = comment
		}
	}

	return nil
}

func (f *fakeStatusStore) GetMapping(_ context.Context, id string) (string, string, bool, error) {
	mapping, ok := f.mappings[id]

	return mapping[0], mapping[1], ok, nil
}

func (f *fakeStatusStore) DeleteMapping(_ context.Context, id string) error {
	delete(f.mappings, id)

	return nil
}

func (f *fakeStatusStore) PutJob(_ context.Context, job *models.Job) error {
	clone := *job
	f.jobs[job.ID] = &clone

	return nil
}

func (f *fakeStatusStore) GetJob(_ context.Context, jobID string) (*models.Job, bool, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, false, nil
	}

	clone := *job

	return &clone, true, nil
}

func (f *fakeStatusStore) AdvanceCursor(_ context.Context, jobID string, cursor int, completed bool) error {
	job, ok := f.jobs[jobID]
	if !ok || job.Cursor > cursor {
		return nil
	}

	job.Cursor = cursor
	job.Completed = completed
	f.cursorHistory = append(f.cursorHistory, cursor)

	return nil
}

type fakeDispatcher struct {
	dispatched []Continuation
	err        error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, c Continuation) error {
	if f.err != nil {
		return f.err
	}
	f.dispatched = append(f.dispatched, c)

	return nil
}

// harness bundles the cleaner with its fakes and a fixed clock.
type harness struct {
	cleaner  *Cleaner
	catalog  *fakeCatalog
	ages     *fakeAgeIndex
	statuses *fakeStatusStore
	queue    *fakeDispatcher
	now      time.Time
}

func newHarness(conf config.CleanupConfig, entries ...catalog.Entry) *harness {
	h := &harness{
		catalog:  newFakeCatalog(entries...),
		ages:     newFakeAgeIndex(),
		statuses: newFakeStatusStore(),
		queue:    &fakeDispatcher{},
		now:      time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
	}

	h.cleaner = New(Config{
		Catalog:     h.catalog,
		AgeIndex:    h.ages,
		StatusStore: h.statuses,
		Dispatcher:  h.queue,
		Cleanup:     conf,
	})
	h.cleaner.nowFunc = func() time.Time { return h.now }
	h.cleaner.sleepFunc = func(_ context.Context, _ time.Duration) {}

	return h
}

// addKB registers a knowledge base in the catalog, the age index and the
// mapping store, created the given number of days ago.
func (h *harness) addKB(id string, ageDays int) {
	h.catalog.entries = append(h.catalog.entries, catalog.Entry{
		ID:   "KB" + id,
		Name: "kb_" + id,
	})
	h.ages.created[id] = h.now.Add(-time.Duration(ageDays) * 24 * time.Hour)
	h.statuses.mappings[id] = [2]string{"KB" + id, "DS" + id}
}

// drain repeatedly feeds dispatched continuations back into the cleaner
// until the queue is empty, simulating the async machinery.
func (h *harness) drain(t *testing.T) {
	t.Helper()

	for len(h.queue.dispatched) > 0 {
		next := h.queue.dispatched[0]
		h.queue.dispatched = h.queue.dispatched[1:]

		trigger := Trigger{
			JobID:         next.JobID,
			Batch:         next.Batch,
			StartIndex:    next.StartIndex,
			DaysThreshold: next.DaysThreshold,
		}

		if _, err := h.cleaner.Run(context.Background(), trigger); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStartJobSelectsOnlyStaleKBs(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.addKB("alpha", 45)
	h.addKB("beta", 20)
	h.addKB("gamma", 60)

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != 200 {
		t.Fatalf("got status code %d, expected 200", resp.StatusCode)
	}

	if resp.OutdatedCount != 2 {
		t.Fatalf("got %d outdated knowledge bases, expected 2", resp.OutdatedCount)
	}

	if resp.Message != "Accepted 2 knowledge bases for cleanup" {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	if resp.JobID == "" {
		t.Fatal("response must carry the job id")
	}

	if len(h.queue.dispatched) != 1 {
		t.Fatalf("got %d dispatched continuations, expected 1", len(h.queue.dispatched))
	}

	first := h.queue.dispatched[0]
	if first.StartIndex != 0 || len(first.Batch) != 2 {
		t.Fatalf("unexpected first continuation: %+v", first)
	}

	for _, id := range []string{"alpha", "gamma"} {
		if h.statuses.statuses[id] != models.StatusPending {
			t.Fatalf("candidate %q not marked pending", id)
		}
	}
}

func TestStartJobExcludesExactThresholdAge(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.addKB("edge", 30)

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Message != MsgNothingToCleanup {
		t.Fatalf("a knowledge base exactly at the threshold must not be selected, got %q", resp.Message)
	}
}

func TestStartJobIgnoresUnprefixedEntries(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.catalog.entries = append(h.catalog.entries, catalog.Entry{ID: "KBother", Name: "production-search"})
	h.ages.created["production-search"] = h.now.Add(-90 * 24 * time.Hour)

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Message != MsgNothingToCleanup {
		t.Fatalf("unprefixed entries must not be selected, got %q", resp.Message)
	}
}

func TestStartJobNothingToCleanup(t *testing.T) {
	h := newHarness(config.CleanupConfig{})

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	if resp.StatusCode != 200 || resp.Message != MsgNothingToCleanup {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// An empty candidate set must not create a job or dispatch anything.
	if len(h.queue.dispatched) != 0 {
		t.Fatalf("got %d dispatched continuations, expected 0", len(h.queue.dispatched))
	}

	if len(h.statuses.jobs) != 0 {
		t.Fatalf("got %d persisted jobs, expected 0", len(h.statuses.jobs))
	}
}

func TestStartJobDispatchFailure(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.addKB("alpha", 45)
	h.queue.err = errors.New("redis connection refused")

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err == nil {
		t.Fatal("Run must fail when dispatch fails")
	}

	if resp.StatusCode != 500 || resp.Message != MsgDispatchFailed {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStartJobListFailureDegradesToNoop(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.addKB("alpha", 45)
	h.catalog.listErr = errors.New("registry unavailable")

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	// A registry outage must never start deletions.
	if resp.StatusCode != 200 || resp.Message != MsgNothingToCleanup {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(h.queue.dispatched) != 0 {
		t.Fatalf("got %d dispatched continuations, expected 0", len(h.queue.dispatched))
	}
}

func TestStartJobAgeLookupFailureExcludesResource(t *testing.T) {
	h := newHarness(config.CleanupConfig{})
	h.addKB("alpha", 45)
	h.addKB("beta", 45)
	h.ages.createdErr["alpha"] = errors.New("connection reset by peer")

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	if resp.OutdatedCount != 1 {
		t.Fatalf("got %d outdated knowledge bases, expected 1", resp.OutdatedCount)
	}

	first := h.queue.dispatched[0]
	if len(first.Batch) != 1 || first.Batch[0] != "beta" {
		t.Fatalf("unexpected first continuation: %+v", first)
	}
}

func TestStartJobUsesDefaultThreshold(t *testing.T) {
	h := newHarness(config.CleanupConfig{DefaultDaysThreshold: 10})
	h.addKB("alpha", 15)

	resp, err := h.cleaner.Run(context.Background(), Trigger{})
	if err != nil {
		t.Fatal(err)
	}

	if resp.DaysThreshold != 10 {
		t.Fatalf("got days threshold %d, expected 10", resp.DaysThreshold)
	}

	if resp.OutdatedCount != 1 {
		t.Fatalf("got %d outdated knowledge bases, expected 1", resp.OutdatedCount)
	}
}

func TestJobProcessesAllBatches(t *testing.T) {
	h := newHarness(config.CleanupConfig{BatchSize: 3})
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, id := range ids {
		h.addKB(id, 45)
	}

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}

	h.drain(t)

	job := h.statuses.jobs[resp.JobID]
	if job == nil {
		t.Fatal("job not persisted")
	}

	if !job.Completed {
		t.Fatal("job must be marked completed")
	}

	// Seven candidates with a batch size of three advance the cursor in
	// steps of 3, 6 and 7.
	want := []int{3, 6, 7}
	if len(h.statuses.cursorHistory) != len(want) {
		t.Fatalf("got cursor history %v, expected %v", h.statuses.cursorHistory, want)
	}
	for i, cursor := range want {
		if h.statuses.cursorHistory[i] != cursor {
			t.Fatalf("got cursor history %v, expected %v", h.statuses.cursorHistory, want)
		}
	}

	for _, id := range ids {
		if h.statuses.statuses[id] != models.StatusSucceeded {
			t.Fatalf("knowledge base %q not cleaned up: %q", id, h.statuses.statuses[id])
		}

		if h.ages.dropped[id] != 1 {
			t.Fatalf("vector table of %q dropped %d times, expected 1", id, h.ages.dropped[id])
		}

		if h.catalog.deletedKBs["KB"+id] != 1 {
			t.Fatalf("knowledge base %q deleted %d times, expected 1", id, h.catalog.deletedKBs["KB"+id])
		}

		if h.catalog.deletedDSs["KB"+id] != 1 {
			t.Fatalf("data source of %q deleted %d times, expected 1", id, h.catalog.deletedDSs["KB"+id])
		}

		if _, ok := h.statuses.mappings[id]; ok {
			t.Fatalf("mapping of %q not removed", id)
		}
	}
}

func TestContinuationSkipsSucceededResources(t *testing.T) {
	h := newHarness(config.CleanupConfig{BatchSize: 2})
	h.addKB("alpha", 45)
	h.addKB("beta", 45)
	h.statuses.statuses["alpha"] = models.StatusSucceeded
	h.statuses.comments["alpha"] = "Cleanup completed successfully"

	if _, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30}); err != nil {
		t.Fatal(err)
	}
	h.drain(t)

	// The already succeeded resource must not be touched again.
	if h.ages.dropped["alpha"] != 0 {
		t.Fatalf("vector table of succeeded resource dropped %d times", h.ages.dropped["alpha"])
	}

	if h.catalog.deletedKBs["KBalpha"] != 0 {
		t.Fatal("succeeded knowledge base deleted again")
	}

	if h.statuses.comments["alpha"] != "Cleanup completed successfully" {
		t.Fatalf("comment changed to %q", h.statuses.comments["alpha"])
	}

	if h.statuses.statuses["beta"] != models.StatusSucceeded {
		t.Fatal("remaining knowledge base not cleaned up")
	}
}

func TestContinuationExhaustedRetriesMarksFailed(t *testing.T) {
	h := newHarness(config.CleanupConfig{BatchSize: 2, MaxRetries: 3, RetryDelay: time.Millisecond})
	h.addKB("alpha", 45)
	h.addKB("beta", 45)
	h.ages.dropErr["alpha"] = errors.New("relation is locked")

	resp, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30})
	if err != nil {
		t.Fatal(err)
	}
	h.drain(t)

	if h.statuses.statuses["alpha"] != models.StatusFailed {
		t.Fatalf("got status %q, expected %q", h.statuses.statuses["alpha"], models.StatusFailed)
	}

	wantComment := fmt.Sprintf("dropping vector table: %v", h.ages.dropErr["alpha"])
	if h.statuses.comments["alpha"] != wantComment {
		t.Fatalf("got comment %q, expected %q", h.statuses.comments["alpha"], wantComment)
	}

	// A failed resource must not block the rest of the batch or the job.
	if h.statuses.statuses["beta"] != models.StatusSucceeded {
		t.Fatal("healthy knowledge base not cleaned up")
	}

	job := h.statuses.jobs[resp.JobID]
	if !job.Completed {
		t.Fatal("job must complete despite failed resources")
	}
}

func TestContinuationMissingMappingStillSucceeds(t *testing.T) {
	h := newHarness(config.CleanupConfig{BatchSize: 1})
	h.addKB("alpha", 45)
	delete(h.statuses.mappings, "alpha")

	if _, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30}); err != nil {
		t.Fatal(err)
	}
	h.drain(t)

	if h.statuses.statuses["alpha"] != models.StatusSucceeded {
		t.Fatalf("got status %q, expected %q", h.statuses.statuses["alpha"], models.StatusSucceeded)
	}

	if h.ages.dropped["alpha"] != 1 {
		t.Fatal("vector table must still be dropped")
	}

	if h.catalog.deletedKBs["KBalpha"] != 0 {
		t.Fatal("no registry delete expected without a mapping")
	}
}

func TestContinuationUnknownJob(t *testing.T) {
	h := newHarness(config.CleanupConfig{})

	trigger := Trigger{
		JobID:         "no-such-job",
		Batch:         []string{"alpha"},
		StartIndex:    0,
		DaysThreshold: 30,
	}

	resp, err := h.cleaner.Run(context.Background(), trigger)
	if !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("got error %v, expected %v", err, ErrUnknownJob)
	}

	if resp.StatusCode != 500 {
		t.Fatalf("got status code %d, expected 500", resp.StatusCode)
	}
}

func TestContinuationDispatchFailure(t *testing.T) {
	h := newHarness(config.CleanupConfig{BatchSize: 1})
	h.addKB("alpha", 45)
	h.addKB("beta", 45)

	if _, err := h.cleaner.Run(context.Background(), Trigger{DaysThreshold: 30}); err != nil {
		t.Fatal(err)
	}

	first := h.queue.dispatched[0]
	h.queue.dispatched = nil
	h.queue.err = errors.New("redis connection refused")

	trigger := Trigger{
		JobID:         first.JobID,
		Batch:         first.Batch,
		StartIndex:    first.StartIndex,
		DaysThreshold: first.DaysThreshold,
	}

	resp, err := h.cleaner.Run(context.Background(), trigger)
	if err == nil {
		t.Fatal("Run must fail when dispatching the next batch fails")
	}

	if resp.StatusCode != 500 || resp.Message != MsgDispatchFailed {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The batch itself was still processed before the dispatch attempt.
	if h.statuses.statuses["alpha"] != models.StatusSucceeded {
		t.Fatal("batch must be processed before dispatching the next one")
	}
}
