// Package ollama is a synchronous HTTP facade over an Ollama model server,
// covering the four operations the indexing pipeline and search layer need:
// text refinement, text embedding, image description and image embedding.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/veeky/veeky-backend/internal/platform/ctxutil"
	"github.com/veeky/veeky-backend/internal/platform/envutil"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 120 * time.Second

	maxErrorBodyBytes = 1024
)

type Config struct {
	BaseURL    string
	TextModel  string
	EmbedModel string
	// VisionModel defaults to TextModel when empty.
	VisionModel string
	Timeout     time.Duration
}

func ConfigFromEnv() Config {
	textModel := envutil.Str("OLLAMA_TEXT_MODEL", "gemma3:4b")
	return Config{
		BaseURL:     envutil.Str("OLLAMA_BASE_URL", DefaultBaseURL),
		TextModel:   textModel,
		EmbedModel:  envutil.Str("OLLAMA_EMBED_MODEL", "snowflake-arctic-embed2"),
		VisionModel: envutil.Str("OLLAMA_VISION_MODEL", textModel),
		Timeout:     time.Duration(envutil.Int("OLLAMA_TIMEOUT_SECONDS", 120)) * time.Second,
	}
}

type Client struct {
	log     *logger.Logger
	baseURL string
	cfg     Config
	http    *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.TextModel
	}
	return &Client{
		log:     log.With("service", "OllamaClient"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type embeddingsRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
}

type embeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// RefineText sends a transcript through the text model for cleanup. The
// prompt precedes the text in a single completion request.
func (c *Client) RefineText(ctx context.Context, text, prompt string) (string, error) {
	req := generateRequest{
		Model:  c.cfg.TextModel,
		Prompt: prompt + "\n\n" + strings.TrimSpace(text) + "\n",
		Stream: false,
	}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// EmbedText generates an embedding vector for the provided text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float64, error) {
	req := embeddingsRequest{Model: c.cfg.EmbedModel, Prompt: text}
	var resp embeddingsResponse
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding response")
	}
	return resp.Embedding, nil
}

// DescribeImage generates a textual description of an image file.
func (c *Client) DescribeImage(ctx context.Context, imagePath, prompt string) (string, error) {
	data, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}
	req := generateRequest{
		Model:  c.cfg.VisionModel,
		Prompt: prompt,
		Images: []string{data},
		Stream: false,
	}
	var resp generateResponse
	if err := c.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

// EmbedImage generates an embedding vector for an image file.
func (c *Client) EmbedImage(ctx context.Context, imagePath string) ([]float64, error) {
	data, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	req := embeddingsRequest{
		Model:  c.cfg.EmbedModel,
		Images: []string{data},
	}
	var resp embeddingsResponse
	if err := c.post(ctx, "/api/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding response for image")
	}
	return resp.Embedding, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		if readErr != nil {
			return fmt.Errorf("ollama: API returned status %d (failed to read body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ollama: decode response: %w", err)
	}
	return nil
}

func encodeImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ollama: read image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
