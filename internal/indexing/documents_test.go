package indexing

import (
	"context"
	"testing"
	"time"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

func testVideo() *domain.Video {
	categoryID := uint(7)
	return &domain.Video{
		ID:         42,
		Name:       "Intro to Soldering",
		CategoryID: &categoryID,
		Category:   &domain.Category{ID: 7, Name: "electronics"},
		SourceType: domain.SourceUpload,
		FilePath:   "uploads/intro.mp4",
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testChunk(start float64, ordinal int, dim int) TextChunk {
	return TextChunk{
		Segment:   domain.Segment{Start: start, End: start + 10},
		Ordinal:   ordinal,
		Text:      "some transcript text",
		Embedding: make([]float64, dim),
	}
}

func TestBuild_DeterministicIDs(t *testing.T) {
	builder := NewDocumentBuilder(logger.NewNop(), nil, nil, 4, 3)
	video := testVideo()
	chunks := []TextChunk{testChunk(8, 0, 4), testChunk(8, 1, 4), testChunk(75.5, 0, 4)}

	first, err := builder.Build(context.Background(), video, 100, nil, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := builder.Build(context.Background(), video, 100, nil, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 4 {
		t.Fatalf("expected parent + 3 chunks, got %d actions", len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("action %d: id changed between runs: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].ID != "42" || first[0].Routing != "42" {
		t.Fatalf("unexpected parent id/routing: %q/%q", first[0].ID, first[0].Routing)
	}
	if first[1].ID != "42-segment-8000-0" {
		t.Fatalf("unexpected chunk id: %q", first[1].ID)
	}
	if first[3].ID != "42-segment-75500-0" {
		t.Fatalf("unexpected chunk id: %q", first[3].ID)
	}
}

func TestBuild_AllChildrenRouteToParent(t *testing.T) {
	builder := NewDocumentBuilder(logger.NewNop(), nil, nil, 4, 3)
	video := testVideo()

	actions, err := builder.Build(context.Background(), video, 100, nil, []TextChunk{testChunk(0, 0, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, action := range actions {
		if action.Routing != "42" {
			t.Fatalf("action %q routed to %q, expected parent id", action.ID, action.Routing)
		}
	}
}

func TestBuild_JoinRelationTags(t *testing.T) {
	builder := NewDocumentBuilder(logger.NewNop(), nil, nil, 4, 3)
	video := testVideo()

	actions, err := builder.Build(context.Background(), video, 100, nil, []TextChunk{testChunk(0, 0, 4)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parent := actions[0].Doc.(map[string]any)
	if parent["video_relation"] != "video" {
		t.Fatalf("unexpected parent relation: %v", parent["video_relation"])
	}
	if parent["category_name"] != "electronics" {
		t.Fatalf("unexpected category name: %v", parent["category_name"])
	}

	child := actions[1].Doc.(map[string]any)
	relation, ok := child["video_relation"].(map[string]any)
	if !ok {
		t.Fatalf("child relation is not a join object: %v", child["video_relation"])
	}
	if relation["name"] != "content_chunk" || relation["parent"] != "42" {
		t.Fatalf("unexpected child relation: %v", relation)
	}
	if child["chunk_type"] != ChunkTypeSegment {
		t.Fatalf("unexpected chunk type: %v", child["chunk_type"])
	}
}

func TestBuild_TextEmbeddingDimensionMismatchIsFatal(t *testing.T) {
	builder := NewDocumentBuilder(logger.NewNop(), nil, nil, 4, 3)
	video := testVideo()

	_, err := builder.Build(context.Background(), video, 100, nil, []TextChunk{testChunk(0, 0, 5)})
	if err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}
