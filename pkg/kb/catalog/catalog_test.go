// SPDX-FileCopyrightText: 2025 The revdoc janitor contributors
//
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"github.com/revdoc/janitor/pkg/utils/ptr"
)

type fakeAPI struct {
	pages [][]types.KnowledgeBaseSummary

	deletedKBs []string
	deletedDSs []string

	deleteKBErr error
	deleteDSErr error
}

func (f *fakeAPI) ListKnowledgeBases(_ context.Context, params *bedrockagent.ListKnowledgeBasesInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.ListKnowledgeBasesOutput, error) {
	page := 0
	if params.NextToken != nil {
		page = int((*params.NextToken)[0] - '0')
	}

	out := &bedrockagent.ListKnowledgeBasesOutput{
		KnowledgeBaseSummaries: f.pages[page],
	}

	if page < len(f.pages)-1 {
		out.NextToken = ptr.To(string(rune('0' + page + 1)))
	}

	return out, nil
}

func (f *fakeAPI) DeleteKnowledgeBase(_ context.Context, params *bedrockagent.DeleteKnowledgeBaseInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.DeleteKnowledgeBaseOutput, error) {
	if f.deleteKBErr != nil {
		return nil, f.deleteKBErr
	}
	f.deletedKBs = append(f.deletedKBs, *params.KnowledgeBaseId)

	return &bedrockagent.DeleteKnowledgeBaseOutput{}, nil
}

func (f *fakeAPI) DeleteDataSource(_ context.Context, params *bedrockagent.DeleteDataSourceInput, _ ...func(*bedrockagent.Options)) (*bedrockagent.DeleteDataSourceOutput, error) {
	if f.deleteDSErr != nil {
		return nil, f.deleteDSErr
	}
	f.deletedDSs = append(f.deletedDSs, *params.DataSourceId)

	return &bedrockagent.DeleteDataSourceOutput{}, nil
}

func TestListPaginates(t *testing.T) {
	api := &fakeAPI{
		pages: [][]types.KnowledgeBaseSummary{
			{
				{KnowledgeBaseId: ptr.To("KB1"), Name: ptr.To("kb_alpha")},
				{KnowledgeBaseId: ptr.To("KB2"), Name: ptr.To("kb_beta")},
			},
			{
				{KnowledgeBaseId: ptr.To("KB3"), Name: ptr.To("kb_gamma")},
			},
		},
	}

	client := New(api)
	entries, err := client.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, expected 3", len(entries))
	}

	if entries[2].ID != "KB3" || entries[2].Name != "kb_gamma" {
		t.Fatalf("unexpected last entry: %+v", entries[2])
	}
}

func TestDeleteKnowledgeBaseIgnoresNotFound(t *testing.T) {
	api := &fakeAPI{
		deleteKBErr: &types.ResourceNotFoundException{},
	}

	client := New(api)
	if err := client.DeleteKnowledgeBase(context.Background(), "KB1"); err != nil {
		t.Fatalf("deleting a missing knowledge base must succeed, got %v", err)
	}
}

func TestDeleteDataSourcePropagatesErrors(t *testing.T) {
	wantErr := errors.New("access denied")
	api := &fakeAPI{
		deleteDSErr: wantErr,
	}

	client := New(api)
	err := client.DeleteDataSource(context.Background(), "KB1", "DS1")
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, expected %v", err, wantErr)
	}
}
