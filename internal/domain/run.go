package domain

// Segment is an analysed time range of a video. Segments only live for the
// duration of one processing run.
type Segment struct {
	Start                  float64
	End                    float64
	RawTranscription       string
	CorrectedTranscription string
}

func (s Segment) Duration() float64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Keyframe is a visually distinct frame captured during one processing run.
// The image file outlives the run; the record does not.
type Keyframe struct {
	Timestamp   float64
	Path        string
	Description string
	Embedding   []float64
}
