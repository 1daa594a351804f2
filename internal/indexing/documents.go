package indexing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/veeky/veeky-backend/internal/clients/ollama"
	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
)

const (
	ChunkTypeKeyframe = "keyframe"
	ChunkTypeSegment  = "video_segment"

	relationField = "video_relation"
	relationVideo = "video"
	relationChunk = "content_chunk"
)

// DocumentBuilder assembles the parent, keyframe and text chunk documents
// for one indexing run. Document ids derive deterministically from the video
// id and the unit's time marker so repeated runs overwrite rather than
// duplicate.
type DocumentBuilder struct {
	log      *logger.Logger
	gateway  *ollama.Client
	prompts  *PromptResolver
	textDim  int
	imageDim int
}

func NewDocumentBuilder(log *logger.Logger, gateway *ollama.Client, prompts *PromptResolver, textDim, imageDim int) *DocumentBuilder {
	return &DocumentBuilder{
		log:      log.With("service", "DocumentBuilder"),
		gateway:  gateway,
		prompts:  prompts,
		textDim:  textDim,
		imageDim: imageDim,
	}
}

// Build produces the full bulk action list for the video: one parent plus
// one child per keyframe and per text chunk, all routed to the parent.
func (b *DocumentBuilder) Build(
	ctx context.Context,
	video *domain.Video,
	duration float64,
	keyframes []domain.Keyframe,
	chunks []TextChunk,
) ([]opensearch.Action, error) {
	parentID := strconv.FormatUint(uint64(video.ID), 10)
	actions := []opensearch.Action{{
		ID:      parentID,
		Routing: parentID,
		Doc:     b.parentDoc(video, duration),
	}}

	for i := range keyframes {
		keyframe := b.describeKeyframe(ctx, video, keyframes[i])
		doc, err := b.keyframeDoc(video, keyframe)
		if err != nil {
			return nil, err
		}
		actions = append(actions, opensearch.Action{
			ID:      fmt.Sprintf("%d-keyframe-%d", video.ID, int64(keyframe.Keyframe.Timestamp*1000)),
			Routing: parentID,
			Doc:     doc,
		})
	}

	for _, chunk := range chunks {
		doc, err := b.textChunkDoc(video, chunk)
		if err != nil {
			return nil, err
		}
		actions = append(actions, opensearch.Action{
			ID:      fmt.Sprintf("%d-segment-%d-%d", video.ID, int64(chunk.Segment.Start*1000), chunk.Ordinal),
			Routing: parentID,
			Doc:     doc,
		})
	}

	b.log.Info("document assembly finished",
		"video_id", video.ID,
		"documents", len(actions),
	)
	return actions, nil
}

// enrichedKeyframe pairs a keyframe with the text embedding of its
// description, which enables lexical-adjacent retrieval of visual content.
type enrichedKeyframe struct {
	Keyframe             domain.Keyframe
	DescriptionEmbedding []float64
}

// describeKeyframe enriches one keyframe with a description, an image
// embedding and a text embedding of the description. Each of the three calls
// may fail independently; a failure leaves that field empty.
func (b *DocumentBuilder) describeKeyframe(ctx context.Context, video *domain.Video, keyframe domain.Keyframe) enrichedKeyframe {
	prompt := b.prompts.FetchPrompt(ctx, PromptPurposeKeyframeDescription, video.CategoryName())
	enriched := enrichedKeyframe{Keyframe: keyframe}

	description, err := b.gateway.DescribeImage(ctx, keyframe.Path, prompt)
	if err != nil {
		b.log.Warn("keyframe description failed",
			"video_id", video.ID,
			"timestamp", keyframe.Timestamp,
			"error", err,
		)
	} else {
		enriched.Keyframe.Description = description
	}

	embedding, err := b.gateway.EmbedImage(ctx, keyframe.Path)
	if err != nil {
		b.log.Warn("keyframe image embedding failed",
			"video_id", video.ID,
			"timestamp", keyframe.Timestamp,
			"error", err,
		)
	} else {
		enriched.Keyframe.Embedding = embedding
	}

	if enriched.Keyframe.Description != "" {
		textEmbedding, err := b.gateway.EmbedText(ctx, enriched.Keyframe.Description)
		if err != nil {
			b.log.Warn("keyframe description embedding failed",
				"video_id", video.ID,
				"timestamp", keyframe.Timestamp,
				"error", err,
			)
		} else {
			enriched.DescriptionEmbedding = textEmbedding
		}
	}
	return enriched
}

func (b *DocumentBuilder) parentDoc(video *domain.Video, duration float64) map[string]any {
	doc := map[string]any{
		"video_id":          video.ID,
		"title":             video.Name,
		"description":       video.Description,
		"duration_seconds":  duration,
		"processing_status": string(domain.StatusCompleted),
		"upload_timestamp":  video.CreatedAt.UTC().Format(time.RFC3339),
		relationField:       relationVideo,
	}
	if video.SourceURL != "" {
		doc["source_url"] = video.SourceURL
	}
	if video.CategoryID != nil {
		doc["category_id"] = *video.CategoryID
	}
	doc["category_name"] = video.CategoryName()
	return doc
}

func (b *DocumentBuilder) keyframeDoc(video *domain.Video, enriched enrichedKeyframe) (map[string]any, error) {
	keyframe := enriched.Keyframe
	doc := b.childDoc(video, ChunkTypeKeyframe, keyframe.Timestamp, keyframe.Timestamp)
	doc["keyframe_path"] = keyframe.Path
	if keyframe.Description != "" {
		doc["text_content"] = keyframe.Description
	}
	if len(keyframe.Embedding) > 0 {
		if len(keyframe.Embedding) != b.imageDim {
			return nil, fmt.Errorf(
				"image embedding dimension %d does not match index dimension %d",
				len(keyframe.Embedding), b.imageDim,
			)
		}
		doc["image_embedding"] = keyframe.Embedding
	}
	if len(enriched.DescriptionEmbedding) > 0 {
		if len(enriched.DescriptionEmbedding) != b.textDim {
			return nil, fmt.Errorf(
				"text embedding dimension %d does not match index dimension %d",
				len(enriched.DescriptionEmbedding), b.textDim,
			)
		}
		doc["text_embedding"] = enriched.DescriptionEmbedding
	}
	return doc, nil
}

func (b *DocumentBuilder) textChunkDoc(video *domain.Video, chunk TextChunk) (map[string]any, error) {
	if len(chunk.Embedding) != b.textDim {
		return nil, fmt.Errorf(
			"text embedding dimension %d does not match index dimension %d",
			len(chunk.Embedding), b.textDim,
		)
	}
	doc := b.childDoc(video, ChunkTypeSegment, chunk.Segment.Start, chunk.Segment.End)
	doc["text_content"] = chunk.Text
	doc["text_embedding"] = chunk.Embedding
	return doc, nil
}

func (b *DocumentBuilder) childDoc(video *domain.Video, chunkType string, start, end float64) map[string]any {
	doc := map[string]any{
		"video_id":      video.ID,
		"chunk_type":    chunkType,
		"start_seconds": start,
		"end_seconds":   end,
		relationField: map[string]any{
			"name":   relationChunk,
			"parent": strconv.FormatUint(uint64(video.ID), 10),
		},
	}
	if video.CategoryID != nil {
		doc["category_id"] = *video.CategoryID
	}
	doc["category_name"] = video.CategoryName()
	return doc
}
