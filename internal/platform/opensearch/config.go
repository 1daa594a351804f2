package opensearch

import (
	"fmt"
	"time"

	"github.com/veeky/veeky-backend/internal/platform/envutil"
)

const (
	// The embedding models behind the gateway produce vectors of these
	// exact sizes; the index mapping is declared against them and a
	// mismatch is a configuration error, not a runtime condition.
	DefaultTextVectorDim  = 1024
	DefaultImageVectorDim = 512
)

type Config struct {
	Host     string
	Port     int
	Scheme   string
	Username string
	Password string

	Index          string
	TextVectorDim  int
	ImageVectorDim int

	Timeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		Host:           envutil.Str("OPENSEARCH_HOST", "localhost"),
		Port:           envutil.Int("OPENSEARCH_PORT", 9200),
		Scheme:         envutil.Str("OPENSEARCH_SCHEME", "http"),
		Username:       envutil.Str("OPENSEARCH_USER", ""),
		Password:       envutil.Str("OPENSEARCH_PASSWORD", ""),
		Index:          envutil.Str("OPENSEARCH_INDEX", "videos"),
		TextVectorDim:  envutil.Int("OPENSEARCH_TEXT_VECTOR_DIM", DefaultTextVectorDim),
		ImageVectorDim: envutil.Int("OPENSEARCH_IMAGE_VECTOR_DIM", DefaultImageVectorDim),
		Timeout:        time.Duration(envutil.Int("OPENSEARCH_TIMEOUT", 30)) * time.Second,
	}
}

func ValidateConfig(cfg Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("opensearch host is required")
	}
	if cfg.Port <= 0 {
		return fmt.Errorf("opensearch port must be positive, got %d", cfg.Port)
	}
	if cfg.Scheme != "http" && cfg.Scheme != "https" {
		return fmt.Errorf("opensearch scheme must be http or https, got %q", cfg.Scheme)
	}
	if cfg.Index == "" {
		return fmt.Errorf("opensearch index name is required")
	}
	if cfg.TextVectorDim <= 0 || cfg.ImageVectorDim <= 0 {
		return fmt.Errorf(
			"opensearch vector dimensions must be positive, got text=%d image=%d",
			cfg.TextVectorDim,
			cfg.ImageVectorDim,
		)
	}
	return nil
}
