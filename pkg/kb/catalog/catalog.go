// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package catalog provides access to the knowledge base registry.
package catalog

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"github.com/revdoc/janitor/pkg/utils/ptr"
)

// API is the subset of the Bedrock Agent API used by the catalog client.
type API interface {
	ListKnowledgeBases(ctx context.Context, params *bedrockagent.ListKnowledgeBasesInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.ListKnowledgeBasesOutput, error)
	DeleteKnowledgeBase(ctx context.Context, params *bedrockagent.DeleteKnowledgeBaseInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.DeleteKnowledgeBaseOutput, error)
	DeleteDataSource(ctx context.Context, params *bedrockagent.DeleteDataSourceInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.DeleteDataSourceOutput, error)
}

// Entry represents a knowledge base entry from the registry.
type Entry struct {
	// ID is the id of the knowledge base in the registry.
	ID string

	// Name is the name of the knowledge base.
	Name string
}

// Client provides access to the knowledge base registry.
type Client struct {
	api API
}

// New creates a new [Client] using the given API implementation.
func New(api API) *Client {
	return &Client{api: api}
}

// List returns all knowledge base entries from the registry, paginating until
// no continuation token is returned.
func (c *Client) List(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0)
	var nextToken *string

	for {
		out, err := c.api.ListKnowledgeBases(ctx, &bedrockagent.ListKnowledgeBasesInput{
			NextToken: nextToken,
		})
		if err != nil {
			return nil, err
		}

		for _, summary := range out.KnowledgeBaseSummaries {
			entry := Entry{
				ID:   ptr.Value(summary.KnowledgeBaseId, ""),
				Name: ptr.Value(summary.Name, ""),
			}
			entries = append(entries, entry)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	return entries, nil
}

// DeleteKnowledgeBase deletes the knowledge base with the given id from the
// registry. Deleting a knowledge base which no longer exists is treated as
// success.
func (c *Client) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := c.api.DeleteKnowledgeBase(ctx, &bedrockagent.DeleteKnowledgeBaseInput{
		KnowledgeBaseId: ptr.To(kbID),
	})

	return ignoreNotFound(err)
}

// DeleteDataSource deletes the data source paired with the given knowledge
// base. Deleting a data source which no longer exists is treated as success.
func (c *Client) DeleteDataSource(ctx context.Context, kbID, dsID string) error {
	_, err := c.api.DeleteDataSource(ctx, &bedrockagent.DeleteDataSourceInput{
		KnowledgeBaseId: ptr.To(kbID),
		DataSourceId:    ptr.To(dsID),
	})

	return ignoreNotFound(err)
}

// ignoreNotFound suppresses not-found errors, so that deletes remain
// idempotent across retried and duplicated triggers.
func ignoreNotFound(err error) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return nil
	}

	return err
}
