// Package capability resolves optional runtime integrations (decoders,
// transcribers, downloaders) on demand. A missing integration surfaces as a
// typed MissingError instead of a crash, and resolution results are cached
// for the lifetime of the process.
package capability

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/veeky/veeky-backend/internal/clients/gcp"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// MissingError reports an optional runtime dependency that is not available
// in this deployment.
type MissingError struct {
	Name  string
	Hint  string
	Cause error
}

func (e *MissingError) Error() string {
	if e == nil {
		return "required capability is not available"
	}
	msg := fmt.Sprintf("required capability %q is not available", e.Name)
	if e.Hint != "" {
		msg = msg + ". " + e.Hint
	}
	return msg
}

func (e *MissingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsMissing reports whether err is (or wraps) a MissingError.
func IsMissing(err error) bool {
	var missing *MissingError
	return errors.As(err, &missing)
}

type binaryResult struct {
	path string
	err  error
}

// Registry resolves capabilities lazily and caches the outcome, so a
// deployment without e.g. yt-dlp fails the same way every time without
// re-probing PATH on each call.
type Registry struct {
	log *logger.Logger

	mu       sync.Mutex
	binaries map[string]binaryResult

	speechOnce sync.Once
	speech     gcp.Transcriber
	speechErr  error
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:      log.With("service", "CapabilityRegistry"),
		binaries: make(map[string]binaryResult),
	}
}

func (r *Registry) lookupBinary(name, hint string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.binaries[name]; ok {
		return cached.path, cached.err
	}
	path, err := exec.LookPath(name)
	if err != nil {
		missing := &MissingError{Name: name, Hint: hint, Cause: err}
		r.binaries[name] = binaryResult{err: missing}
		r.log.Warn("capability unavailable", "capability", name, "hint", hint)
		return "", missing
	}
	r.binaries[name] = binaryResult{path: path}
	r.log.Debug("capability resolved", "capability", name, "path", path)
	return path, nil
}

// FFmpeg resolves the ffmpeg binary used for frame decoding, audio
// extraction and silence detection.
func (r *Registry) FFmpeg() (string, error) {
	return r.lookupBinary("ffmpeg", "Install ffmpeg to decode video and extract audio.")
}

// FFprobe resolves the ffprobe binary used for media metadata probing.
func (r *Registry) FFprobe() (string, error) {
	return r.lookupBinary("ffprobe", "Install ffprobe (ships with ffmpeg) to probe video metadata.")
}

// Downloader resolves the yt-dlp binary used to fetch remote videos.
func (r *Registry) Downloader() (string, error) {
	return r.lookupBinary("yt-dlp", "Install yt-dlp to download videos from remote sources.")
}

// SpeechToText resolves the transcription service. Construction failures
// (missing credentials, unreachable endpoint) are reported as a missing
// capability and cached.
func (r *Registry) SpeechToText() (gcp.Transcriber, error) {
	r.speechOnce.Do(func() {
		transcriber, err := gcp.NewSpeech(r.log)
		if err != nil {
			r.speechErr = &MissingError{
				Name:  "speech-to-text",
				Hint:  "Configure Google Cloud Speech credentials to enable automatic transcription.",
				Cause: err,
			}
			r.log.Warn("capability unavailable", "capability", "speech-to-text", "error", err)
			return
		}
		r.speech = transcriber
	})
	return r.speech, r.speechErr
}
