package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veeky/veeky-backend/internal/capability"
	"github.com/veeky/veeky-backend/internal/clients/gcp"
	"github.com/veeky/veeky-backend/internal/clients/ollama"
	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/media"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// TextChunk is one embedded fragment of a segment's corrected transcript.
type TextChunk struct {
	Segment   domain.Segment
	Ordinal   int
	Text      string
	Embedding []float64
}

// Transcriber runs the per-segment transcription and refinement stage:
// audio extraction, speech-to-text, transcript cleanup through the model
// gateway, chunking and chunk embedding.
type Transcriber struct {
	log           *logger.Logger
	tools         *media.Tools
	caps          *capability.Registry
	gateway       *ollama.Client
	prompts       *PromptResolver
	chunkMaxChars int
}

func NewTranscriber(
	log *logger.Logger,
	tools *media.Tools,
	caps *capability.Registry,
	gateway *ollama.Client,
	prompts *PromptResolver,
	chunkMaxChars int,
) *Transcriber {
	return &Transcriber{
		log:           log.With("service", "Transcriber"),
		tools:         tools,
		caps:          caps,
		gateway:       gateway,
		prompts:       prompts,
		chunkMaxChars: chunkMaxChars,
	}
}

// TranscribeSegments processes segments in order. A failure on one segment
// skips that segment and continues; the scratch audio directory is removed
// before returning on every path.
func (t *Transcriber) TranscribeSegments(
	ctx context.Context,
	video *domain.Video,
	videoPath string,
	segments []domain.Segment,
	audioRoot string,
) ([]TextChunk, error) {
	speech, err := t.caps.SpeechToText()
	if err != nil {
		return nil, err
	}

	audioDir := filepath.Join(audioRoot, fmt.Sprintf("video_%d", video.ID))
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(audioDir); err != nil {
			t.log.Warn("audio scratch cleanup failed", "dir", audioDir, "error", err)
		}
	}()

	cleanupPrompt := t.prompts.FetchPrompt(ctx, PromptPurposeTranscriptCleanup, video.CategoryName())

	var chunks []TextChunk
	for i := range segments {
		segment := segments[i]
		raw, err := t.transcribeSegment(ctx, speech, videoPath, segment, audioDir, i)
		if err != nil {
			t.log.Warn("segment transcription failed, skipping segment",
				"video_id", video.ID,
				"segment_start", segment.Start,
				"segment_end", segment.End,
				"error", err,
			)
			continue
		}
		if raw == "" {
			t.log.Debug("segment produced no speech",
				"video_id", video.ID,
				"segment_start", segment.Start,
			)
			continue
		}
		segment.RawTranscription = raw

		corrected, err := t.gateway.RefineText(ctx, raw, cleanupPrompt)
		if err != nil || corrected == "" {
			if err != nil {
				t.log.Warn("transcript refinement failed, keeping raw transcript",
					"video_id", video.ID,
					"segment_start", segment.Start,
					"error", err,
				)
			}
			corrected = raw
		}
		segment.CorrectedTranscription = corrected

		for j, text := range ChunkText(corrected, t.chunkMaxChars) {
			embedding, err := t.gateway.EmbedText(ctx, text)
			if err != nil {
				t.log.Warn("chunk embedding failed, dropping chunk",
					"video_id", video.ID,
					"segment_start", segment.Start,
					"chunk", j,
					"error", err,
				)
				continue
			}
			chunks = append(chunks, TextChunk{
				Segment:   segment,
				Ordinal:   j,
				Text:      text,
				Embedding: embedding,
			})
		}
	}

	t.log.Info("transcription stage finished",
		"video_id", video.ID,
		"segments", len(segments),
		"chunks", len(chunks),
	)
	return chunks, nil
}

// transcribeSegment extracts the segment's audio to a scratch WAV, sends it
// through speech-to-text and always deletes the scratch file.
func (t *Transcriber) transcribeSegment(
	ctx context.Context,
	speech gcp.Transcriber,
	videoPath string,
	segment domain.Segment,
	audioDir string,
	ordinal int,
) (string, error) {
	wavPath := filepath.Join(audioDir, fmt.Sprintf("segment_%04d.wav", ordinal))
	defer func() {
		if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
			t.log.Warn("scratch audio removal failed", "path", wavPath, "error", err)
		}
	}()

	if err := t.tools.ExtractAudioClip(ctx, videoPath, segment.Start, segment.Duration(), wavPath); err != nil {
		return "", err
	}
	return speech.TranscribeFile(ctx, wavPath)
}
