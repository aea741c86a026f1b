// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package statusstore provides durable tracking of cleanup progress.
package statusstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/revdoc/janitor/pkg/kb/models"
	"github.com/revdoc/janitor/pkg/utils/ptr"
)

// Attribute names of the status table items.
const (
	attrKey       = "ReverseEnggID"
	attrKBID      = "KBID"
	attrDSID      = "DSID"
	attrStatus    = "CleanupStatus"
	attrComment   = "CleanupComment"
	attrThreshold = "DaysThreshold"
	attrCursor    = "JobCursor"
	attrBatchSize = "BatchSize"
	attrCandidates = "Candidates"
	attrCompleted = "Completed"
	attrStartedAt = "StartedAt"
)

// jobKeyPrefix is the key prefix of job items, which share the status table
// with the per-resource items.
const jobKeyPrefix = "job:"

// ErrMalformedItem is an error, which is returned when an item from the
// status table does not have the expected shape.
var ErrMalformedItem = errors.New("malformed status table item")

// API is the subset of the DynamoDB API used by the status store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store tracks the cleanup status of each knowledge base, the mapping from
// resource ids to registry identifiers, and the per-job cursor bookkeeping.
type Store struct {
	api   API
	table string
}

// New creates a new [Store] using the given API implementation and table
// name.
func New(api API, table string) *Store {
	return &Store{api: api, table: table}
}

// key returns the primary key of the item for the given resource or job id.
func (s *Store) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: id},
	}
}

// GetStatus returns the recorded cleanup status for the given resource id.
// The boolean result indicates whether a status has been recorded at all.
func (s *Store) GetStatus(ctx context.Context, id string) (models.CleanupStatus, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      ptr.To(s.table),
		Key:            s.key(id),
		ConsistentRead: ptr.To(true),
	})
	if err != nil {
		return "", false, err
	}

	if out.Item == nil {
		return "", false, nil
	}

	status, ok := out.Item[attrStatus].(*types.AttributeValueMemberS)
	if !ok {
		return "", false, nil
	}

	return models.CleanupStatus(status.Value), true, nil
}

// SetStatus records the cleanup status for the given resource id. The
// optional comment is persisted only if no comment exists yet for the
// resource, so the first recorded explanation is never overwritten.
func (s *Store) SetStatus(ctx context.Context, id string, status models.CleanupStatus, comment string) error {
	expr := "SET #status = :status"
	names := map[string]string{
		"#status": attrStatus,
	}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
	}

	if comment != "" {
		expr += ", #comment = if_not_exists(#comment, :comment)"
		names["#comment"] = attrComment
		values[":comment"] = &types.AttributeValueMemberS{Value: comment}
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 ptr.To(s.table),
		Key:                       s.key(id),
		UpdateExpression:          ptr.To(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})

	return err
}

// GetMapping returns the knowledge base and data source ids recorded for the
// given resource id. The boolean result indicates whether a mapping exists;
// a missing mapping means the registry side of the resource is already gone.
func (s *Store) GetMapping(ctx context.Context, id string) (string, string, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: ptr.To(s.table),
		Key:       s.key(id),
	})
	if err != nil {
		return "", "", false, err
	}

	if out.Item == nil {
		return "", "", false, nil
	}

	kbID, ok := out.Item[attrKBID].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", false, nil
	}

	dsID, ok := out.Item[attrDSID].(*types.AttributeValueMemberS)
	if !ok {
		return "", "", false, nil
	}

	return kbID.Value, dsID.Value, true, nil
}

// DeleteMapping removes the knowledge base and data source ids recorded for
// the given resource id, while retaining the cleanup status and comment.
func (s *Store) DeleteMapping(ctx context.Context, id string) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        ptr.To(s.table),
		Key:              s.key(id),
		UpdateExpression: ptr.To("REMOVE #kb, #ds"),
		ExpressionAttributeNames: map[string]string{
			"#kb": attrKBID,
			"#ds": attrDSID,
		},
	})

	return err
}

// PutJob persists the given job.
func (s *Store) PutJob(ctx context.Context, job *models.Job) error {
	candidates := make([]types.AttributeValue, 0, len(job.Candidates))
	for _, id := range job.Candidates {
		candidates = append(candidates, &types.AttributeValueMemberS{Value: id})
	}

	item := map[string]types.AttributeValue{
		attrKey:        &types.AttributeValueMemberS{Value: jobKeyPrefix + job.ID},
		attrThreshold:  &types.AttributeValueMemberN{Value: strconv.Itoa(job.DaysThreshold)},
		attrCursor:     &types.AttributeValueMemberN{Value: strconv.Itoa(job.Cursor)},
		attrBatchSize:  &types.AttributeValueMemberN{Value: strconv.Itoa(job.BatchSize)},
		attrCandidates: &types.AttributeValueMemberL{Value: candidates},
		attrCompleted:  &types.AttributeValueMemberBOOL{Value: job.Completed},
		attrStartedAt:  &types.AttributeValueMemberS{Value: job.StartedAt.UTC().Format(time.RFC3339)},
	}

	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: ptr.To(s.table),
		Item:      item,
	})

	return err
}

// GetJob returns the job with the given id. The boolean result indicates
// whether the job exists.
func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      ptr.To(s.table),
		Key:            s.key(jobKeyPrefix + jobID),
		ConsistentRead: ptr.To(true),
	})
	if err != nil {
		return nil, false, err
	}

	if out.Item == nil {
		return nil, false, nil
	}

	job := &models.Job{ID: jobID}

	if v, ok := out.Item[attrThreshold].(*types.AttributeValueMemberN); ok {
		job.DaysThreshold, err = strconv.Atoi(v.Value)
		if err != nil {
			return nil, false, ErrMalformedItem
		}
	}

	if v, ok := out.Item[attrCursor].(*types.AttributeValueMemberN); ok {
		job.Cursor, err = strconv.Atoi(v.Value)
		if err != nil {
			return nil, false, ErrMalformedItem
		}
	}

	if v, ok := out.Item[attrBatchSize].(*types.AttributeValueMemberN); ok {
		job.BatchSize, err = strconv.Atoi(v.Value)
		if err != nil {
			return nil, false, ErrMalformedItem
		}
	}

	if v, ok := out.Item[attrCandidates].(*types.AttributeValueMemberL); ok {
		job.Candidates = make([]string, 0, len(v.Value))
		for _, item := range v.Value {
			s, ok := item.(*types.AttributeValueMemberS)
			if !ok {
				return nil, false, ErrMalformedItem
			}
			job.Candidates = append(job.Candidates, s.Value)
		}
	}

	if v, ok := out.Item[attrCompleted].(*types.AttributeValueMemberBOOL); ok {
		job.Completed = v.Value
	}

	if v, ok := out.Item[attrStartedAt].(*types.AttributeValueMemberS); ok {
		job.StartedAt, _ = time.Parse(time.RFC3339, v.Value)
	}

	return job, true, nil
}

// AdvanceCursor persists the new cursor position of the job. The update is
// guarded by a condition expression, so a re-delivered continuation can never
// move the cursor backwards.
func (s *Store) AdvanceCursor(ctx context.Context, jobID string, cursor int, completed bool) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        ptr.To(s.table),
		Key:              s.key(jobKeyPrefix + jobID),
		UpdateExpression: ptr.To("SET #cursor = :cursor, #completed = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#cursor":    attrCursor,
			"#completed": attrCompleted,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cursor":    &types.AttributeValueMemberN{Value: strconv.Itoa(cursor)},
			":completed": &types.AttributeValueMemberBOOL{Value: completed},
		},
		ConditionExpression: ptr.To("attribute_not_exists(#cursor) OR #cursor <= :cursor"),
	})

	// A conditional check failure means a concurrent or re-delivered
	// invocation already advanced the cursor past this point.
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}

	return err
}
