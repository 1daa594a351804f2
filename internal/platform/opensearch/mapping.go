package opensearch

// IndexBody declares the schema for the video search index: one logical
// collection holding the video parent document and its content chunks,
// joined through the video_relation field, with fixed-dimension knn vector
// fields for text and image embeddings (cosine similarity via HNSW).
func IndexBody(textDim, imageDim int) map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":        1,
				"number_of_replicas":      1,
				"knn":                     true,
				"knn.algo_param.ef_search": 100,
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"video_id": map[string]any{"type": "integer"},
				"title": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{
							"type":         "keyword",
							"ignore_above": 256,
						},
					},
				},
				"description":       map[string]any{"type": "text"},
				"source_url":        map[string]any{"type": "keyword"},
				"category_id":       map[string]any{"type": "integer"},
				"category_name":     map[string]any{"type": "keyword"},
				"upload_timestamp":  map[string]any{"type": "date"},
				"duration_seconds":  map[string]any{"type": "float"},
				"processing_status": map[string]any{"type": "keyword"},
				"video_relation": map[string]any{
					"type":      "join",
					"relations": map[string]any{"video": "content_chunk"},
				},
				"chunk_type":    map[string]any{"type": "keyword"},
				"start_seconds": map[string]any{"type": "float"},
				"end_seconds":   map[string]any{"type": "float"},
				"text_content":  map[string]any{"type": "text"},
				"text_embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": textDim,
					"method":    knnMethod(),
				},
				"keyframe_path": map[string]any{"type": "keyword"},
				"image_embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": imageDim,
					"method":    knnMethod(),
				},
			},
		},
	}
}

func knnMethod() map[string]any {
	return map[string]any{
		"name":       "hnsw",
		"space_type": "cosinesimil",
		"engine":     "nmslib",
		"parameters": map[string]any{
			"ef_construction": 128,
			"m":               24,
		},
	}
}
