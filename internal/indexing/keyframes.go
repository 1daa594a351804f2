// Package indexing implements the video indexing pipeline: keyframe
// extraction, segmentation, transcription and refinement, document assembly
// and the orchestrator that drives them end to end.
package indexing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/media"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// FrameDecoder streams downscaled grayscale frames and captures full
// resolution stills. media.Tools is the production implementation.
type FrameDecoder interface {
	DecodeGrayFrames(ctx context.Context, videoPath string, fn func(media.GrayFrame) error) error
	SaveFrameJPEG(ctx context.Context, videoPath string, timestamp float64, outPath string) error
	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
}

// KeyframeExtractor selects perceptually distinct frames at a bounded
// minimum interval using structural similarity against the last accepted
// frame.
type KeyframeExtractor struct {
	log       *logger.Logger
	decoder   FrameDecoder
	interval  float64
	threshold float64
}

func NewKeyframeExtractor(log *logger.Logger, decoder FrameDecoder, interval, threshold float64) *KeyframeExtractor {
	return &KeyframeExtractor{
		log:       log.With("service", "KeyframeExtractor"),
		decoder:   decoder,
		interval:  interval,
		threshold: threshold,
	}
}

// Extract walks the decoded frame stream and returns the accepted keyframes
// in timestamp order, plus the video duration. Duration is the maximum
// observed frame timestamp, falling back to a metadata probe when decoding
// yields nothing usable.
func (e *KeyframeExtractor) Extract(ctx context.Context, videoPath, framesDir string) ([]domain.Keyframe, float64, error) {
	var (
		accepted     []acceptedFrame
		prev         media.GrayFrame
		havePrev     bool
		nextEligible float64
		maxTimestamp float64
	)

	err := e.decoder.DecodeGrayFrames(ctx, videoPath, func(frame media.GrayFrame) error {
		if frame.Timestamp > maxTimestamp {
			maxTimestamp = frame.Timestamp
		}
		if frame.Timestamp < nextEligible {
			return nil
		}
		if havePrev {
			score := media.SSIM(prev, frame)
			if score >= e.threshold {
				return nil
			}
		}
		accepted = append(accepted, acceptedFrame{timestamp: frame.Timestamp})
		prev = frame
		havePrev = true
		nextEligible = frame.Timestamp + e.interval
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	duration := maxTimestamp
	if duration == 0 {
		probed, probeErr := e.decoder.ProbeDuration(ctx, videoPath)
		if probeErr != nil {
			return nil, 0, fmt.Errorf("no frames decoded and duration probe failed: %w", probeErr)
		}
		duration = probed
	}

	// A near-static video can pass SSIM on nothing after the first frame is
	// filtered out by eligibility edge cases; always keep at least the start.
	if len(accepted) == 0 {
		accepted = append(accepted, acceptedFrame{timestamp: 0})
	}

	keyframes := make([]domain.Keyframe, 0, len(accepted))
	for _, frame := range accepted {
		outPath := filepath.Join(framesDir, keyframeFileName(frame.timestamp))
		if err := e.decoder.SaveFrameJPEG(ctx, videoPath, frame.timestamp, outPath); err != nil {
			e.log.Warn("keyframe capture failed, skipping frame",
				"timestamp", frame.timestamp,
				"error", err,
			)
			continue
		}
		keyframes = append(keyframes, domain.Keyframe{
			Timestamp: frame.timestamp,
			Path:      outPath,
		})
	}

	e.log.Info("keyframe extraction finished",
		"video_path", videoPath,
		"keyframes", len(keyframes),
		"duration_seconds", duration,
	)
	return keyframes, duration, nil
}

type acceptedFrame struct {
	timestamp float64
}

// keyframeFileName names frames by zero-padded millisecond timestamp so the
// files sort lexically in playback order.
func keyframeFileName(timestamp float64) string {
	ms := int64(timestamp * 1000)
	return fmt.Sprintf("frame_%08dms.jpg", ms)
}
