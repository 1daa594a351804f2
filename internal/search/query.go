// Package search implements hybrid (lexical + vector) video search: query
// compilation with category access control, execution against the index and
// ranking/deduplication of the results.
package search

import (
	"github.com/veeky/veeky-backend/internal/indexing"
)

// QueryInput is the compiled query's source material. Embeddings are
// precomputed by the caller; the compiler itself never talks to the model
// gateway.
type QueryInput struct {
	Text           string
	TextEmbedding  []float64
	ImageEmbedding []float64

	// PermittedCategories is nil for unrestricted access. An empty non-nil
	// set means zero access and is rejected before compilation.
	PermittedCategories []uint
	RequestedCategory   *uint

	MaxResults int
}

// BuildHybridQuery compiles the search body: up to three ranked sub-queries
// (lexical match, text knn, image knn) under one hybrid clause, each
// carrying the same category filter, falling back to a filtered match-all
// when no sub-query applies. Roughly double the final result count is
// requested to leave headroom for deduplication and per-video capping.
func BuildHybridQuery(in QueryInput) map[string]any {
	filters := categoryFilters(in)

	// The knn legs fetch the same candidate pool the response is sized for.
	candidateK := in.MaxResults * 2

	var subQueries []map[string]any
	if in.Text != "" {
		subQueries = append(subQueries, filtered(map[string]any{
			"match": map[string]any{
				"text_content": map[string]any{
					"query":     in.Text,
					"operator":  "and",
					"fuzziness": "AUTO",
				},
			},
		}, filters))
	}
	if len(in.TextEmbedding) > 0 {
		subQueries = append(subQueries, filtered(knnClause("text_embedding", in.TextEmbedding, candidateK), filters))
	}
	if len(in.ImageEmbedding) > 0 {
		subQueries = append(subQueries, filtered(knnClause("image_embedding", in.ImageEmbedding, candidateK), filters))
	}

	var query map[string]any
	switch len(subQueries) {
	case 0:
		query = filtered(map[string]any{"match_all": map[string]any{}}, filters)
	default:
		query = map[string]any{
			"hybrid": map[string]any{
				"queries": subQueries,
			},
		}
	}

	return map[string]any{
		"size":  in.MaxResults * 2,
		"query": query,
		"sort":  []any{map[string]any{"_score": map[string]any{"order": "desc"}}},
		"_source": []string{
			"video_id",
			"title",
			"chunk_type",
			"start_seconds",
			"end_seconds",
			"text_content",
			"upload_timestamp",
			"category_id",
		},
	}
}

// categoryFilters builds the filter clauses shared by every sub-query:
// a term filter when a single category is requested, a terms filter over the
// permitted set otherwise. Unrestricted access with no requested category
// yields no filter.
func categoryFilters(in QueryInput) []map[string]any {
	chunkFilter := map[string]any{
		"terms": map[string]any{
			"chunk_type": []string{indexing.ChunkTypeSegment, indexing.ChunkTypeKeyframe},
		},
	}
	if in.RequestedCategory != nil {
		return []map[string]any{
			chunkFilter,
			{"term": map[string]any{"category_id": *in.RequestedCategory}},
		}
	}
	if in.PermittedCategories != nil {
		return []map[string]any{
			chunkFilter,
			{"terms": map[string]any{"category_id": in.PermittedCategories}},
		}
	}
	return []map[string]any{chunkFilter}
}

func filtered(query map[string]any, filters []map[string]any) map[string]any {
	if len(filters) == 0 {
		return query
	}
	return map[string]any{
		"bool": map[string]any{
			"must":   []any{query},
			"filter": filters,
		},
	}
}

func knnClause(field string, vector []float64, k int) map[string]any {
	return map[string]any{
		"knn": map[string]any{
			field: map[string]any{
				"vector": vector,
				"k":      k,
			},
		},
	}
}
