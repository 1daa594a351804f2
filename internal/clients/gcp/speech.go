package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/veeky/veeky-backend/internal/platform/ctxutil"
	"github.com/veeky/veeky-backend/internal/platform/envutil"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// Transcriber converts a mono 16kHz WAV clip into text.
type Transcriber interface {
	TranscribeFile(ctx context.Context, wavPath string) (string, error)
	Close() error
}

type speechService struct {
	log          *logger.Logger
	client       *speech.Client
	languageCode string
	maxRetries   int
}

func NewSpeech(log *logger.Logger) (Transcriber, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Speech")

	ctx := context.Background()
	client, err := speech.NewClient(ctx, ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &speechService{
		log:          slog,
		client:       client,
		languageCode: envutil.Str("SPEECH_LANGUAGE_CODE", "en-US"),
		maxRetries:   3,
	}, nil
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) TranscribeFile(ctx context.Context, wavPath string) (string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("read audio clip: %w", err)
	}
	if len(audio) == 0 {
		return "", nil
	}

	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			AudioChannelCount:          1,
			LanguageCode:               s.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	var resp *speechpb.RecognizeResponse
	for attempt := 0; ; attempt++ {
		resp, err = s.client.Recognize(ctx, req)
		if err == nil {
			break
		}
		if attempt >= s.maxRetries || !retryableSpeechError(err) {
			return "", fmt.Errorf("speech recognize: %w", err)
		}
		backoff := time.Duration(attempt+1) * 2 * time.Second
		s.log.Warn("speech recognize retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	var parts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		text := strings.TrimSpace(alts[0].GetTranscript())
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

func retryableSpeechError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return true
	default:
		return false
	}
}
