package indexing

import (
	"fmt"
	"sort"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// Segmenter determines transcription time ranges. Manually authored
// intervals bypass automatic detection entirely; otherwise boundaries come
// from keyframe timestamps and detected silence, subject to min/max segment
// duration policy.
type Segmenter struct {
	log        *logger.Logger
	minSegment float64
	maxSegment float64
}

func NewSegmenter(log *logger.Logger, minSegment, maxSegment float64) *Segmenter {
	return &Segmenter{
		log:        log.With("service", "Segmenter"),
		minSegment: minSegment,
		maxSegment: maxSegment,
	}
}

// Segments computes the segment list for one video.
func (s *Segmenter) Segments(
	video *domain.Video,
	duration float64,
	keyframes []domain.Keyframe,
	silence []float64,
) ([]domain.Segment, error) {
	if len(video.Intervals) > 0 {
		return manualSegments(video.Intervals)
	}

	boundaries := collectBoundaries(duration, keyframes, silence)
	if len(boundaries) < 2 {
		if duration <= 0 {
			return nil, fmt.Errorf("video %d has no usable duration", video.ID)
		}
		return []domain.Segment{{Start: 0, End: duration}}, nil
	}

	segments := s.enforceDurationPolicy(boundaries)
	s.log.Debug("segmentation finished",
		"video_id", video.ID,
		"boundaries", len(boundaries),
		"segments", len(segments),
	)
	return segments, nil
}

// manualSegments uses authored intervals verbatim, including intervals that
// exceed the automatic max segment duration.
func manualSegments(intervals []domain.VideoInterval) ([]domain.Segment, error) {
	segments := make([]domain.Segment, 0, len(intervals))
	for i := range intervals {
		interval := intervals[i]
		if err := interval.Validate(); err != nil {
			return nil, fmt.Errorf("interval %d: %w", interval.ID, err)
		}
		segments = append(segments, domain.Segment{
			Start: float64(interval.StartSecond),
			End:   float64(interval.EndSecond),
		})
	}
	return segments, nil
}

// collectBoundaries merges {0, duration, keyframe timestamps, silence
// boundaries} into a sorted, deduplicated list clamped to [0, duration].
func collectBoundaries(duration float64, keyframes []domain.Keyframe, silence []float64) []float64 {
	seen := map[float64]bool{}
	var boundaries []float64
	add := func(t float64) {
		if t < 0 || t > duration {
			return
		}
		if seen[t] {
			return
		}
		seen[t] = true
		boundaries = append(boundaries, t)
	}

	add(0)
	add(duration)
	for _, keyframe := range keyframes {
		add(keyframe.Timestamp)
	}
	for _, t := range silence {
		add(t)
	}

	sort.Float64s(boundaries)
	return boundaries
}

// enforceDurationPolicy walks consecutive boundary pairs, merging spans
// shorter than the minimum forward into the next span (unless final) and
// splitting spans longer than the maximum into successive max-sized pieces.
func (s *Segmenter) enforceDurationPolicy(boundaries []float64) []domain.Segment {
	var segments []domain.Segment
	start := boundaries[0]
	for i := 1; i < len(boundaries); i++ {
		end := boundaries[i]
		span := end - start
		isFinal := i == len(boundaries)-1
		if span < s.minSegment && !isFinal {
			continue
		}
		for span > s.maxSegment {
			segments = append(segments, domain.Segment{Start: start, End: start + s.maxSegment})
			start += s.maxSegment
			span = end - start
		}
		// A post-split remainder below the minimum merges forward into the
		// next span rather than surfacing as its own short segment.
		if span >= s.minSegment || isFinal {
			if span > 0 {
				segments = append(segments, domain.Segment{Start: start, End: end})
			}
			start = end
		}
	}
	return segments
}
