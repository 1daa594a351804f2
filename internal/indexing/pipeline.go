package indexing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/veeky/veeky-backend/internal/capability"
	"github.com/veeky/veeky-backend/internal/config"
	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/media"
	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/repos"
)

// cleanupList collects temporary paths acquired during a run. Paths are
// removed in reverse acquisition order on every exit branch.
type cleanupList struct {
	log   *logger.Logger
	paths []string
}

func (c *cleanupList) register(path string) {
	c.paths = append(c.paths, path)
}

func (c *cleanupList) release() {
	for i := len(c.paths) - 1; i >= 0; i-- {
		if err := os.RemoveAll(c.paths[i]); err != nil {
			c.log.Warn("temporary path cleanup failed", "path", c.paths[i], "error", err)
		}
	}
	c.paths = nil
}

// Orchestrator drives the end-to-end indexing sequence for one video and
// owns the video's status state machine.
type Orchestrator struct {
	log        *logger.Logger
	cfg        config.Pipeline
	videos     repos.VideoRepo
	tools      *media.Tools
	keyframes  *KeyframeExtractor
	segmenter  *Segmenter
	transcribe *Transcriber
	documents  *DocumentBuilder
	index      *opensearch.Client
}

func NewOrchestrator(
	log *logger.Logger,
	cfg config.Pipeline,
	videos repos.VideoRepo,
	tools *media.Tools,
	keyframes *KeyframeExtractor,
	segmenter *Segmenter,
	transcribe *Transcriber,
	documents *DocumentBuilder,
	index *opensearch.Client,
) *Orchestrator {
	return &Orchestrator{
		log:        log.With("service", "IndexingOrchestrator"),
		cfg:        cfg,
		videos:     videos,
		tools:      tools,
		keyframes:  keyframes,
		segmenter:  segmenter,
		transcribe: transcribe,
		documents:  documents,
		index:      index,
	}
}

// Process runs the full pipeline for one video. It is idempotency-guarded:
// a video already in PROCESSING is a logged no-op, and a COMPLETED or FAILED
// video is re-run from the top. Every temporary artifact acquired during the
// run is removed before returning, on success and on failure.
func (o *Orchestrator) Process(ctx context.Context, videoID uint) error {
	runID := uuid.NewString()
	tracer := otel.Tracer("indexing")
	ctx, span := tracer.Start(ctx, "video.process", trace.WithAttributes(
		attribute.Int64("video.id", int64(videoID)),
		attribute.String("run.id", runID),
	))
	defer span.End()

	log := o.log.With("video_id", videoID, "run_id", runID)

	video, err := o.videos.GetWithRelations(ctx, nil, videoID)
	if err != nil {
		span.SetStatus(codes.Error, "video lookup failed")
		span.RecordError(err)
		return err
	}

	if video.Status == domain.StatusProcessing {
		log.Info("video already processing, skipping")
		span.AddEvent("skipped.already_processing")
		return nil
	}

	// Claim the video before any heavy work so a crash mid-run leaves it
	// visibly stuck in PROCESSING instead of silently PENDING.
	claimed, err := o.videos.TransitionStatus(ctx, nil, videoID,
		[]domain.VideoStatus{domain.StatusPending, domain.StatusCompleted, domain.StatusFailed},
		domain.StatusProcessing,
	)
	if err != nil {
		span.SetStatus(codes.Error, "status transition failed")
		span.RecordError(err)
		return err
	}
	if !claimed {
		log.Info("video claimed by another worker, skipping")
		span.AddEvent("skipped.claim_lost")
		return nil
	}

	cleanup := &cleanupList{log: log}
	defer cleanup.release()

	runErr := o.run(ctx, span, video, cleanup)
	if runErr != nil {
		log.Error("video indexing failed",
			"error", runErr,
			"missing_capability", capability.IsMissing(runErr),
		)
		span.SetStatus(codes.Error, "indexing failed")
		span.RecordError(runErr)
		if _, err := o.videos.TransitionStatus(ctx, nil, videoID,
			[]domain.VideoStatus{domain.StatusProcessing}, domain.StatusFailed,
		); err != nil {
			log.Error("failed-state transition failed", "error", err)
		}
		return runErr
	}

	if _, err := o.videos.TransitionStatus(ctx, nil, videoID,
		[]domain.VideoStatus{domain.StatusProcessing}, domain.StatusCompleted,
	); err != nil {
		span.SetStatus(codes.Error, "completed-state transition failed")
		span.RecordError(err)
		return err
	}
	log.Info("video indexing completed")
	span.SetStatus(codes.Ok, "")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, span trace.Span, video *domain.Video, cleanup *cleanupList) error {
	videoPath, err := o.acquire(ctx, video, cleanup)
	if err != nil {
		return err
	}
	span.AddEvent("acquired", trace.WithAttributes(attribute.String("video.path", videoPath)))

	framesDir := filepath.Join(o.cfg.MediaRoot, "keyframes", fmt.Sprintf("video_%d", video.ID))
	keyframes, duration, err := o.keyframes.Extract(ctx, videoPath, framesDir)
	if err != nil {
		return fmt.Errorf("keyframe extraction: %w", err)
	}
	span.AddEvent("keyframes.extracted", trace.WithAttributes(
		attribute.Int("keyframes.count", len(keyframes)),
		attribute.Float64("video.duration_seconds", duration),
	))

	silence, err := o.tools.DetectSilence(ctx, videoPath, o.cfg.SilenceNoise, o.cfg.SilenceDuration)
	if err != nil {
		// Silence detection is best effort; its absence only degrades
		// boundary quality.
		o.log.Warn("silence detection unavailable", "video_id", video.ID, "error", err)
		silence = nil
	}
	silenceBoundaries := make([]float64, 0, len(silence)*2)
	for _, window := range silence {
		silenceBoundaries = append(silenceBoundaries, window.Start, window.End)
	}

	segments, err := o.segmenter.Segments(video, duration, keyframes, silenceBoundaries)
	if err != nil {
		return fmt.Errorf("segmentation: %w", err)
	}
	span.AddEvent("segmented", trace.WithAttributes(attribute.Int("segments.count", len(segments))))

	chunks, err := o.transcribe.TranscribeSegments(ctx, video, videoPath, segments, o.cfg.ProcessingRoot)
	if err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	span.AddEvent("transcribed", trace.WithAttributes(attribute.Int("chunks.count", len(chunks))))

	actions, err := o.documents.Build(ctx, video, duration, keyframes, chunks)
	if err != nil {
		return fmt.Errorf("document assembly: %w", err)
	}

	if err := o.index.Bulk(ctx, actions); err != nil {
		return fmt.Errorf("index submission: %w", err)
	}
	span.AddEvent("indexed", trace.WithAttributes(attribute.Int("documents.count", len(actions))))
	return nil
}

// acquire resolves the video to a local file. Uploads must already exist on
// disk; remote videos are downloaded into a scratch directory registered for
// cleanup, and a missing description is backfilled from the source.
func (o *Orchestrator) acquire(ctx context.Context, video *domain.Video, cleanup *cleanupList) (string, error) {
	switch video.SourceType {
	case domain.SourceUpload:
		if video.FilePath == "" {
			return "", fmt.Errorf("video %d: %w", video.ID, apperrors.ErrNotFound)
		}
		path := video.FilePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(o.cfg.MediaRoot, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("video %d file %s: %w", video.ID, path, apperrors.ErrNotFound)
		}
		return path, nil

	case domain.SourceYouTube:
		destDir := filepath.Join(o.cfg.DownloadRoot, fmt.Sprintf("video_%d", video.ID))
		cleanup.register(destDir)
		result, err := o.tools.Download(ctx, video.SourceURL, destDir)
		if err != nil {
			return "", fmt.Errorf("download video %d: %w", video.ID, err)
		}
		if video.Description == "" && result.Description != "" {
			if err := o.videos.UpdateDescription(ctx, nil, video.ID, result.Description); err != nil {
				o.log.Warn("description backfill failed", "video_id", video.ID, "error", err)
			} else {
				video.Description = result.Description
			}
		}
		return result.FilePath, nil

	default:
		return "", fmt.Errorf("video %d has unknown source type %q", video.ID, video.SourceType)
	}
}
