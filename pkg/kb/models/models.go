// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package models provides the models of the knowledge base cleanup domain.
package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CleanupStatus represents the cleanup progress of a single knowledge base.
type CleanupStatus string

const (
	// StatusPending means the knowledge base has been selected for
	// cleanup, but processing has not started yet.
	StatusPending CleanupStatus = "PENDING"

	// StatusInProgress means the knowledge base is currently being
	// deleted.
	StatusInProgress CleanupStatus = "IN_PROGRESS"

	// StatusSucceeded means the knowledge base and its backing resources
	// have been deleted.
	StatusSucceeded CleanupStatus = "SUCCEEDED"

	// StatusFailed means deletion was attempted and gave up after
	// exhausting all retries.
	StatusFailed CleanupStatus = "FAILED"
)

// VectorTable represents a row from the vector_registry table, which records
// when the backing vector table of a knowledge base was created.
type VectorTable struct {
	bun.BaseModel `bun:"table:vector_registry"`

	ID        int64     `bun:"id,pk,autoincrement"`
	TableName string    `bun:"table_name,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Resource represents one reclaimable knowledge base together with its
// identifiers in the external registry.
type Resource struct {
	// ID is the reverse engineering id of the knowledge base, derived
	// from the knowledge base name by stripping the configured prefix.
	ID string `json:"id"`

	// KnowledgeBaseID is the id of the knowledge base in the registry.
	KnowledgeBaseID string `json:"kb_id"`

	// DataSourceID is the id of the data source paired with the
	// knowledge base.
	DataSourceID string `json:"ds_id"`

	// CreatedAt is the creation timestamp recorded in the vector
	// registry.
	CreatedAt time.Time `json:"created_at"`
}

// Job represents one reclamation run over a fixed candidate set.
type Job struct {
	// ID uniquely identifies the run.
	ID string `json:"job_id"`

	// DaysThreshold is the age cutoff used to select candidates for this
	// run.
	DaysThreshold int `json:"days_threshold"`

	// Candidates is the ordered sequence of knowledge base ids discovered
	// at job start. The set is fixed for the lifetime of the job.
	Candidates []string `json:"candidates"`

	// Cursor is the index of the next unprocessed candidate.
	Cursor int `json:"cursor"`

	// BatchSize is the max number of candidates processed per invocation.
	BatchSize int `json:"batch_size"`

	// Completed is set once the cursor has reached the end of the
	// candidate set.
	Completed bool `json:"completed"`

	// StartedAt is the timestamp at which the job was accepted.
	StartedAt time.Time `json:"started_at"`
}

// Done returns a boolean indicating whether the job has processed its entire
// candidate set.
func (j *Job) Done() bool {
	return j.Cursor >= len(j.Candidates)
}
