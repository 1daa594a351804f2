package search

import (
	"context"
	"sort"
	"time"

	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/repos"
)

// Result is one entry in the final ranked result list.
type Result struct {
	VideoID         uint      `json:"video_id"`
	Title           string    `json:"title"`
	ChunkType       string    `json:"chunk_type"`
	StartSeconds    float64   `json:"start_seconds"`
	UploadTimestamp time.Time `json:"upload_timestamp"`
	Relevance       float64   `json:"relevance"`
}

type candidate struct {
	id     string
	score  float64
	source map[string]any
}

// Ranker merges, deduplicates and caps raw engine hits into the final
// result list.
type Ranker struct {
	log                 *logger.Logger
	videos              repos.VideoRepo
	maxTotalResults     int
	maxSegmentsPerVideo int
}

func NewRanker(log *logger.Logger, videos repos.VideoRepo, maxTotal, maxPerVideo int) *Ranker {
	return &Ranker{
		log:                 log.With("service", "SearchRanker"),
		videos:              videos,
		maxTotalResults:     maxTotal,
		maxSegmentsPerVideo: maxPerVideo,
	}
}

// Rank flattens top-level and nested hits, sorts by score descending and
// walks the candidates applying three rules: the first occurrence of a
// document id wins, no video contributes more than the per-video cap, and
// the walk stops at the global cap. Titles and upload timestamps missing
// from the documents are resolved from video metadata afterwards.
func (r *Ranker) Rank(ctx context.Context, resp *opensearch.SearchResponse) ([]Result, error) {
	candidates := flatten(resp)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	seen := make(map[string]bool, len(candidates))
	perVideo := make(map[uint]int)
	var results []Result
	for _, cand := range candidates {
		if len(results) >= r.maxTotalResults {
			break
		}
		if seen[cand.id] {
			continue
		}
		seen[cand.id] = true

		videoID := uintField(cand.source, "video_id")
		if videoID == 0 {
			continue
		}
		if perVideo[videoID] >= r.maxSegmentsPerVideo {
			continue
		}
		perVideo[videoID]++

		results = append(results, Result{
			VideoID:         videoID,
			Title:           stringField(cand.source, "title"),
			ChunkType:       stringField(cand.source, "chunk_type"),
			StartSeconds:    floatField(cand.source, "start_seconds"),
			UploadTimestamp: timeField(cand.source, "upload_timestamp"),
			Relevance:       cand.score,
		})
	}

	if err := r.resolveMetadata(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

// resolveMetadata backfills titles and upload timestamps from the video
// table for results whose documents did not embed them.
func (r *Ranker) resolveMetadata(ctx context.Context, results []Result) error {
	var missing []uint
	for i := range results {
		if results[i].Title == "" || results[i].UploadTimestamp.IsZero() {
			missing = append(missing, results[i].VideoID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	meta, err := r.videos.TitlesByIDs(ctx, nil, missing)
	if err != nil {
		return err
	}
	for i := range results {
		m, ok := meta[results[i].VideoID]
		if !ok {
			continue
		}
		if results[i].Title == "" {
			results[i].Title = m.Title
		}
		if results[i].UploadTimestamp.IsZero() {
			results[i].UploadTimestamp = m.UploadTimestamp
		}
	}
	return nil
}

func flatten(resp *opensearch.SearchResponse) []candidate {
	var out []candidate
	for _, hit := range resp.Hits.Hits {
		out = append(out, candidate{id: hit.ID, score: hit.Score, source: hit.Source})
		for _, inner := range hit.InnerHits {
			for _, nested := range inner.Hits.Hits {
				out = append(out, candidate{id: nested.ID, score: nested.Score, source: nested.Source})
			}
		}
	}
	return out
}

func stringField(source map[string]any, key string) string {
	if v, ok := source[key].(string); ok {
		return v
	}
	return ""
}

func floatField(source map[string]any, key string) float64 {
	if v, ok := source[key].(float64); ok {
		return v
	}
	return 0
}

func uintField(source map[string]any, key string) uint {
	if v, ok := source[key].(float64); ok && v > 0 {
		return uint(v)
	}
	return 0
}

func timeField(source map[string]any, key string) time.Time {
	raw, ok := source[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
