// Package media wraps the external media binaries (ffmpeg, ffprobe, yt-dlp)
// behind a typed Go surface: probing, frame decoding, audio extraction,
// silence detection and remote download.
package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/veeky/veeky-backend/internal/capability"
	"github.com/veeky/veeky-backend/internal/platform/ctxutil"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

// Frame dimensions for the downscaled grayscale stream used by similarity
// comparison. Full resolution is only decoded for accepted keyframes.
const (
	compareWidth  = 320
	compareHeight = 180
)

var silenceEventRe = regexp.MustCompile(`silence_(start|end):\s*([0-9]+(?:\.[0-9]+)?)`)

// GrayFrame is one downscaled grayscale frame with its presentation time.
type GrayFrame struct {
	Timestamp float64
	Width     int
	Height    int
	Pixels    []byte
}

// SilenceWindow is one silent span detected on the audio track.
type SilenceWindow struct {
	Start float64
	End   float64
}

// DownloadResult describes a video fetched from a remote source.
type DownloadResult struct {
	FilePath    string
	Title       string
	Description string
}

// Tools runs the external media binaries. Binaries are resolved lazily
// through the capability registry so a deployment without ffmpeg can still
// serve search traffic.
type Tools struct {
	log  *logger.Logger
	caps *capability.Registry
}

func NewTools(log *logger.Logger, caps *capability.Registry) *Tools {
	return &Tools{
		log:  log.With("service", "MediaTools"),
		caps: caps,
	}
}

// ProbeDuration returns the container duration in seconds.
func (t *Tools) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	ffprobe, err := t.caps.FFprobe()
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctxutil.Default(ctx), ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration for %s: %w", videoPath, err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}

// probeFrameRate returns the average frame rate of the first video stream.
func (t *Tools) probeFrameRate(ctx context.Context, videoPath string) (float64, error) {
	ffprobe, err := t.caps.FFprobe()
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctxutil.Default(ctx), ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe frame rate for %s: %w", videoPath, err)
	}
	return parseFrameRate(strings.TrimSpace(string(out)))
}

// parseFrameRate parses ffprobe rational rates like "30000/1001" or "25/1".
func parseFrameRate(raw string) (float64, error) {
	if raw == "" || raw == "0/0" {
		return 0, fmt.Errorf("no frame rate reported")
	}
	num, den, found := strings.Cut(raw, "/")
	if !found {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("parse frame rate %q: %w", raw, err)
		}
		return rate, nil
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", raw, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: invalid denominator", raw)
	}
	return n / d, nil
}

// DecodeGrayFrames streams the video as downscaled grayscale frames and
// invokes fn for each one. Returning a non-nil error from fn stops decoding.
func (t *Tools) DecodeGrayFrames(ctx context.Context, videoPath string, fn func(GrayFrame) error) error {
	ffmpeg, err := t.caps.FFmpeg()
	if err != nil {
		return err
	}
	fps, err := t.probeFrameRate(ctx, videoPath)
	if err != nil {
		return err
	}

	ctx = ctxutil.Default(ctx)
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-i", videoPath,
		"-vf", fmt.Sprintf("scale=%d:%d", compareWidth, compareHeight),
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-v", "error",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg decode for %s: %w", videoPath, err)
	}

	frameSize := compareWidth * compareHeight
	reader := bufio.NewReaderSize(stdout, frameSize)
	frameIndex := 0
	var fnErr error
	for {
		pixels := make([]byte, frameSize)
		if _, err := io.ReadFull(reader, pixels); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			fnErr = fmt.Errorf("read decoded frame: %w", err)
			break
		}
		frame := GrayFrame{
			Timestamp: float64(frameIndex) / fps,
			Width:     compareWidth,
			Height:    compareHeight,
			Pixels:    pixels,
		}
		if err := fn(frame); err != nil {
			fnErr = err
			break
		}
		frameIndex++
	}

	if fnErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fnErr
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg decode for %s: %w (stderr: %s)", videoPath, err, strings.TrimSpace(stderr.String()))
	}
	if frameIndex == 0 {
		return fmt.Errorf("ffmpeg decoded no frames from %s", videoPath)
	}
	return nil
}

// SaveFrameJPEG captures the frame nearest to timestamp as a full resolution
// JPEG at outPath.
func (t *Tools) SaveFrameJPEG(ctx context.Context, videoPath string, timestamp float64, outPath string) error {
	ffmpeg, err := t.caps.FFmpeg()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create frame directory: %w", err)
	}
	cmd := exec.CommandContext(ctxutil.Default(ctx), ffmpeg,
		"-ss", formatSeconds(timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		"-v", "error",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg frame capture at %.3fs: %w (stderr: %s)", timestamp, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ExtractAudioClip writes the [start, start+duration) audio range as a mono
// 16kHz PCM WAV suitable for speech recognition.
func (t *Tools) ExtractAudioClip(ctx context.Context, videoPath string, start, duration float64, outPath string) error {
	ffmpeg, err := t.caps.FFmpeg()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}
	cmd := exec.CommandContext(ctxutil.Default(ctx), ffmpeg,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		"-v", "error",
		outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg audio extraction [%.3f, +%.3f]: %w (stderr: %s)", start, duration, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// DetectSilence runs ffmpeg silencedetect over the audio track and returns
// the detected silent spans. A video without an audio track yields no spans.
func (t *Tools) DetectSilence(ctx context.Context, videoPath, noise string, minDuration float64) ([]SilenceWindow, error) {
	ffmpeg, err := t.caps.FFmpeg()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctxutil.Default(ctx), ffmpeg,
		"-i", videoPath,
		"-af", fmt.Sprintf("silencedetect=noise=%s:d=%s", noise, formatSeconds(minDuration)),
		"-f", "null",
		"-",
	)
	// silencedetect reports on stderr.
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.log.Warn("silence detection failed, continuing without silence boundaries",
			"video_path", videoPath,
			"error", err,
		)
		return nil, nil
	}
	return ParseSilenceOutput(stderr.String()), nil
}

// ParseSilenceOutput pairs silence_start and silence_end events from
// silencedetect log output. A trailing start without an end is dropped.
func ParseSilenceOutput(output string) []SilenceWindow {
	var windows []SilenceWindow
	var pendingStart *float64
	for _, match := range silenceEventRe.FindAllStringSubmatch(output, -1) {
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		switch match[1] {
		case "start":
			v := value
			pendingStart = &v
		case "end":
			if pendingStart != nil {
				windows = append(windows, SilenceWindow{Start: *pendingStart, End: value})
				pendingStart = nil
			}
		}
	}
	return windows
}

type downloadMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Download fetches a remote video into destDir and returns the local file
// path plus the title and description reported by the source.
func (t *Tools) Download(ctx context.Context, sourceURL, destDir string) (*DownloadResult, error) {
	downloader, err := t.caps.Downloader()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}
	ctx = ctxutil.Default(ctx)

	metaCmd := exec.CommandContext(ctx, downloader, "--dump-json", "--no-download", sourceURL)
	metaOut, err := metaCmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata for %s: %w", sourceURL, err)
	}
	var meta downloadMetadata
	if err := json.Unmarshal(metaOut, &meta); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	template := filepath.Join(destDir, "%(id)s.%(ext)s")
	dlCmd := exec.CommandContext(ctx, downloader,
		"-f", "mp4/bestvideo+bestaudio/best",
		"-o", template,
		sourceURL,
	)
	var stderr bytes.Buffer
	dlCmd.Stderr = &stderr
	if err := dlCmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp download for %s: %w (stderr: %s)", sourceURL, err, strings.TrimSpace(stderr.String()))
	}

	filePath, err := newestFile(destDir)
	if err != nil {
		return nil, err
	}
	t.log.Info("downloaded remote video", "source_url", sourceURL, "file_path", filePath)
	return &DownloadResult{
		FilePath:    filePath,
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
	}, nil
}

func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list download directory: %w", err)
	}
	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().UnixNano() > newestMod {
			newest = filepath.Join(dir, entry.Name())
			newestMod = info.ModTime().UnixNano()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("download produced no file in %s", dir)
	}
	return newest, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
