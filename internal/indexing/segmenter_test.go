package indexing

import (
	"math"
	"testing"

	"github.com/veeky/veeky-backend/internal/domain"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

func newTestSegmenter(min, max float64) *Segmenter {
	return NewSegmenter(logger.NewNop(), min, max)
}

func keyframesAt(timestamps ...float64) []domain.Keyframe {
	out := make([]domain.Keyframe, 0, len(timestamps))
	for _, t := range timestamps {
		out = append(out, domain.Keyframe{Timestamp: t})
	}
	return out
}

func TestSegments_KeyframeBoundaries(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	segments, err := s.Segments(video, 100, keyframesAt(0, 10, 50), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Segment{
		{Start: 0, End: 10},
		{Start: 10, End: 50},
		{Start: 50, End: 100},
	}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
	}
	for i := range want {
		if segments[i].Start != want[i].Start || segments[i].End != want[i].End {
			t.Fatalf("segment %d: expected [%v, %v), got [%v, %v)",
				i, want[i].Start, want[i].End, segments[i].Start, segments[i].End)
		}
	}
}

func TestSegments_MergesShortSpansForward(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	// Boundaries at 0, 3, 20: the 3s span merges into the next one.
	segments, err := s.Segments(video, 20, keyframesAt(3), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segments), segments)
	}
	if segments[0].Start != 0 || segments[0].End != 20 {
		t.Fatalf("expected [0, 20), got [%v, %v)", segments[0].Start, segments[0].End)
	}
}

func TestSegments_SplitsLongSpans(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	segments, err := s.Segments(video, 200, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, segment := range segments {
		if segment.Duration() > 75 {
			t.Fatalf("segment [%v, %v) exceeds max duration", segment.Start, segment.End)
		}
	}
	// The union must reconstruct [0, 200] with no gaps.
	cursor := 0.0
	for _, segment := range segments {
		if segment.Start != cursor {
			t.Fatalf("gap or overlap at %v: segment starts at %v", cursor, segment.Start)
		}
		cursor = segment.End
	}
	if cursor != 200 {
		t.Fatalf("segments end at %v, expected 200", cursor)
	}
}

func TestSegments_SplitRemainderMergesForward(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	// Boundaries at 0, 80, 85: splitting [0, 80) leaves a 5s remainder at
	// 75 that is below the minimum, so it merges into the next span instead
	// of surfacing on its own.
	segments, err := s.Segments(video, 85, keyframesAt(80), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.Segment{
		{Start: 0, End: 75},
		{Start: 75, End: 85},
	}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(segments), segments)
	}
	for i := range want {
		if segments[i].Start != want[i].Start || segments[i].End != want[i].End {
			t.Fatalf("segment %d: expected [%v, %v), got [%v, %v)",
				i, want[i].Start, want[i].End, segments[i].Start, segments[i].End)
		}
	}
}

func TestSegments_FinalSplitRemainderKept(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	// A short remainder at the very end has no next span to merge into and
	// is kept as-is.
	segments, err := s.Segments(video, 80, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}
	if segments[1].Start != 75 || segments[1].End != 80 {
		t.Fatalf("expected final [75, 80), got [%v, %v)", segments[1].Start, segments[1].End)
	}
}

func TestSegments_CoverageIsGapFree(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	silence := []float64{5.5, 7.2, 33.3, 36.1}
	segments, err := s.Segments(video, 120, keyframesAt(4, 12, 44, 90), silence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor := 0.0
	for _, segment := range segments {
		if math.Abs(segment.Start-cursor) > 1e-9 {
			t.Fatalf("gap or overlap at %v: segment starts at %v", cursor, segment.Start)
		}
		if segment.End <= segment.Start {
			t.Fatalf("degenerate segment [%v, %v)", segment.Start, segment.End)
		}
		cursor = segment.End
	}
	if math.Abs(cursor-120) > 1e-9 {
		t.Fatalf("segments end at %v, expected 120", cursor)
	}
}

func TestSegments_ManualIntervalsVerbatim(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{
		ID: 1,
		Intervals: []domain.VideoInterval{
			{StartSecond: 0, EndSecond: 90},
			{StartSecond: 90, EndSecond: 300},
		},
	}

	// Manual intervals bypass detection and may exceed the max duration.
	segments, err := s.Segments(video, 300, keyframesAt(10, 20), []float64{15})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].Start != 90 || segments[1].End != 300 {
		t.Fatalf("expected [90, 300), got [%v, %v)", segments[1].Start, segments[1].End)
	}
}

func TestSegments_InvalidManualIntervalRejected(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{
		ID: 1,
		Intervals: []domain.VideoInterval{
			{StartSecond: 20, EndSecond: 10},
		},
	}
	if _, err := s.Segments(video, 100, nil, nil); err == nil {
		t.Fatalf("expected validation error for inverted interval")
	}
}

func TestSegments_WholeVideoFallback(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}

	segments, err := s.Segments(video, 42, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segments) != 1 || segments[0].Start != 0 || segments[0].End != 42 {
		t.Fatalf("expected single [0, 42) segment, got %+v", segments)
	}
}

func TestSegments_NoDurationFails(t *testing.T) {
	s := newTestSegmenter(8, 75)
	video := &domain.Video{ID: 1}
	if _, err := s.Segments(video, 0, nil, nil); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}
