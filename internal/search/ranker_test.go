package search

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/repos"
)

type fakeVideoRepo struct {
	meta map[uint]repos.VideoMeta
}

func (f *fakeVideoRepo) GetWithRelations(context.Context, *gorm.DB, uint) (*domain.Video, error) {
	panic("not used")
}

func (f *fakeVideoRepo) TitlesByIDs(_ context.Context, _ *gorm.DB, ids []uint) (map[uint]repos.VideoMeta, error) {
	out := make(map[uint]repos.VideoMeta, len(ids))
	for _, id := range ids {
		if m, ok := f.meta[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeVideoRepo) UpdateDescription(context.Context, *gorm.DB, uint, string) error {
	panic("not used")
}

func (f *fakeVideoRepo) TransitionStatus(context.Context, *gorm.DB, uint, []domain.VideoStatus, domain.VideoStatus) (bool, error) {
	panic("not used")
}

func hit(id string, score float64, videoID uint) opensearch.Hit {
	return opensearch.Hit{
		ID:    id,
		Score: score,
		Source: map[string]any{
			"video_id":   float64(videoID),
			"chunk_type": "video_segment",
		},
	}
}

func responseOf(hits ...opensearch.Hit) *opensearch.SearchResponse {
	var resp opensearch.SearchResponse
	resp.Hits.Hits = hits
	return &resp
}

func newTestRanker(maxTotal, maxPerVideo int) *Ranker {
	repo := &fakeVideoRepo{meta: map[uint]repos.VideoMeta{
		1: {Title: "Video One", UploadTimestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		2: {Title: "Video Two", UploadTimestamp: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}}
	return NewRanker(logger.NewNop(), repo, maxTotal, maxPerVideo)
}

func TestRank_DuplicateIDsKeepHighestScore(t *testing.T) {
	ranker := newTestRanker(50, 10)
	resp := responseOf(
		hit("1-segment-0-0", 0.4, 1),
		hit("1-segment-0-0", 0.9, 1),
		hit("2-segment-0-0", 0.7, 2),
	)

	results, err := ranker.Rank(context.Background(), resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after deduplication, got %d", len(results))
	}
	if results[0].Relevance != 0.9 {
		t.Fatalf("expected the highest-scoring duplicate to win, got %v", results[0].Relevance)
	}
}

func TestRank_PerVideoCap(t *testing.T) {
	ranker := newTestRanker(50, 2)
	resp := responseOf(
		hit("1-segment-0-0", 0.9, 1),
		hit("1-segment-10-0", 0.8, 1),
		hit("1-segment-20-0", 0.7, 1),
		hit("2-segment-0-0", 0.6, 2),
	)

	results, err := ranker.Rank(context.Background(), resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	perVideo := map[uint]int{}
	for _, result := range results {
		perVideo[result.VideoID]++
	}
	if perVideo[1] != 2 {
		t.Fatalf("expected video 1 capped at 2 results, got %d", perVideo[1])
	}
	if perVideo[2] != 1 {
		t.Fatalf("expected video 2 to still contribute, got %d", perVideo[2])
	}
}

func TestRank_GlobalCap(t *testing.T) {
	ranker := newTestRanker(3, 10)
	resp := responseOf(
		hit("1-segment-0-0", 0.9, 1),
		hit("1-segment-10-0", 0.8, 1),
		hit("2-segment-0-0", 0.7, 2),
		hit("2-segment-10-0", 0.6, 2),
		hit("2-segment-20-0", 0.5, 2),
	)

	results, err := ranker.Rank(context.Background(), resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected global cap of 3, got %d", len(results))
	}
}

func TestRank_SortedByScoreDescending(t *testing.T) {
	ranker := newTestRanker(50, 10)
	resp := responseOf(
		hit("1-segment-0-0", 0.2, 1),
		hit("2-segment-0-0", 0.8, 2),
		hit("1-segment-10-0", 0.5, 1),
	)

	results, err := ranker.Rank(context.Background(), resp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Relevance > results[i-1].Relevance {
			t.Fatalf("results not sorted by relevance: %v then %v",
				results[i-1].Relevance, results[i].Relevance)
		}
	}
}

func TestRank_FlattensInnerHits(t *testing.T) {
	ranker := newTestRanker(50, 10)
	parent := hit("1", 0.3, 1)
	nested := hit("1-segment-0-0", 0.9, 1)
	parent.InnerHits = map[string]opensearch.InnerHitsBlock{}
	block := opensearch.InnerHitsBlock{}
	block.Hits.Hits = []opensearch.Hit{nested}
	parent.InnerHits["content_chunk"] = block

	results, err := ranker.Rank(context.Background(), responseOf(parent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected parent and nested hit, got %d results", len(results))
	}
	if results[0].Relevance != 0.9 {
		t.Fatalf("expected the nested hit to rank first, got %v", results[0].Relevance)
	}
}

func TestRank_ResolvesMissingTitles(t *testing.T) {
	ranker := newTestRanker(50, 10)
	results, err := ranker.Rank(context.Background(), responseOf(hit("1-segment-0-0", 0.9, 1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Video One" {
		t.Fatalf("expected title backfilled from metadata, got %q", results[0].Title)
	}
	if results[0].UploadTimestamp.IsZero() {
		t.Fatalf("expected upload timestamp backfilled from metadata")
	}
}
