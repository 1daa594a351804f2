package config

import (
	"path/filepath"

	"github.com/veeky/veeky-backend/internal/platform/envutil"
)

// Pipeline holds the tunables for one video indexing run.
type Pipeline struct {
	IndexName        string
	KeyframeInterval float64
	SSIMThreshold    float64
	MinSegment       float64
	MaxSegment       float64
	SilenceNoise     string
	SilenceDuration  float64
	ChunkMaxChars    int

	MediaRoot      string
	ProcessingRoot string
	DownloadRoot   string
}

// Search holds the result shaping limits for hybrid search.
type Search struct {
	MaxTotalResults     int
	MaxSegmentsPerVideo int
}

// Queue holds the task queue connection and worker sizing.
type Queue struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

type Config struct {
	HTTPAddr    string
	Environment string
	Version     string

	Pipeline Pipeline
	Search   Search
	Queue    Queue
}

func Load() Config {
	mediaRoot := envutil.Str("MEDIA_ROOT", "media")
	return Config{
		HTTPAddr:    envutil.Str("HTTP_ADDR", ":8080"),
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
		Pipeline: Pipeline{
			IndexName:        envutil.Str("OPENSEARCH_INDEX", "videos"),
			KeyframeInterval: envutil.Float("VIDEO_INDEX_KEYFRAME_INTERVAL", 4.0),
			SSIMThreshold:    envutil.Float("VIDEO_INDEX_SSIM_THRESHOLD", 0.90),
			MinSegment:       envutil.Float("VIDEO_INDEX_MIN_SEGMENT", 8.0),
			MaxSegment:       envutil.Float("VIDEO_INDEX_MAX_SEGMENT", 75.0),
			SilenceNoise:     envutil.Str("VIDEO_INDEX_SILENCE_NOISE", "-35dB"),
			SilenceDuration:  envutil.Float("VIDEO_INDEX_SILENCE_DURATION", 1.5),
			ChunkMaxChars:    envutil.Int("VIDEO_INDEX_CHUNK_MAX_CHARS", 900),
			MediaRoot:        mediaRoot,
			ProcessingRoot:   envutil.Str("TMP_PROCESSING_DIR", filepath.Join("tmp", "processing")),
			DownloadRoot:     envutil.Str("TMP_DOWNLOAD_DIR", filepath.Join("tmp", "downloads")),
		},
		Search: Search{
			MaxTotalResults:     envutil.Int("MAX_TOTAL_SEARCH_RESULTS", 50),
			MaxSegmentsPerVideo: envutil.Int("MAX_SEGMENTS_PER_VIDEO", 10),
		},
		Queue: Queue{
			RedisAddr:     envutil.Str("REDIS_ADDR", "localhost:6379"),
			RedisPassword: envutil.Str("REDIS_PASSWORD", ""),
			RedisDB:       envutil.Int("REDIS_DB", 0),
			Concurrency:   envutil.Int("WORKER_CONCURRENCY", 1),
		},
	}
}
