// Package opensearch is a hand-rolled HTTP client for the OpenSearch index
// holding video documents. It owns index schema declaration, idempotent
// index creation, bulk submission and query execution.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/veeky/veeky-backend/internal/platform/ctxutil"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 1024

// Action is one bulk index operation. Repeated submissions with the same ID
// overwrite the previous document rather than duplicating it.
type Action struct {
	ID      string
	Routing string
	Doc     any
}

// Hit is one search result, either top-level or nested.
type Hit struct {
	ID        string                    `json:"_id"`
	Score     float64                   `json:"_score"`
	Source    map[string]any            `json:"_source"`
	InnerHits map[string]InnerHitsBlock `json:"inner_hits"`
}

type InnerHitsBlock struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

type SearchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

type Client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewClient validates the configuration and verifies the index exists,
// creating it from the declared mapping when missing.
func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		log:     log.With("service", "OpenSearchClient"),
		cfg:     cfg,
		baseURL: fmt.Sprintf("%s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port),
		http:    &http.Client{Timeout: cfg.Timeout},
	}

	if err := c.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	c.log.Info(
		"opensearch index ready",
		"url", c.baseURL,
		"index", cfg.Index,
		"text_vector_dim", cfg.TextVectorDim,
		"image_vector_dim", cfg.ImageVectorDim,
	)
	return c, nil
}

func (c *Client) Index() string { return c.cfg.Index }

// EnsureIndex creates the index with its mapping if it does not exist yet.
// Creation is idempotent; an index that already exists is left untouched.
func (c *Client) EnsureIndex(ctx context.Context) error {
	const op = "ensure_index"

	exists, err := c.indexExists(ctx, op)
	if err != nil {
		return err
	}
	if exists {
		c.log.Debug("opensearch index already exists", "index", c.cfg.Index)
		return nil
	}

	c.log.Info("creating opensearch index", "index", c.cfg.Index)
	body := IndexBody(c.cfg.TextVectorDim, c.cfg.ImageVectorDim)
	return c.doJSON(ctx, op, http.MethodPut, "/"+c.cfg.Index, body, nil)
}

func (c *Client) indexExists(ctx context.Context, op string) (bool, error) {
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodHead, c.baseURL+"/"+c.cfg.Index, nil)
	if err != nil {
		return false, opErr(op, OperationErrorTransportFailed, "build exists request failed", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, classifyHTTPCallError(op, "opensearch exists check failed", err)
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("opensearch exists check returned status=%d", resp.StatusCode),
		}
	}
}

// Bulk submits all actions in one request. Any per-item error surfaces as a
// single OperationError; there is no partial per-document retry.
func (c *Client) Bulk(ctx context.Context, actions []Action) error {
	const op = "bulk"
	if len(actions) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, action := range actions {
		if strings.TrimSpace(action.ID) == "" {
			return opErr(op, OperationErrorValidation, "bulk action id is required", nil)
		}
		meta := map[string]any{
			"index": map[string]any{
				"_index":   c.cfg.Index,
				"_id":      action.ID,
				"_routing": action.Routing,
			},
		}
		if err := enc.Encode(meta); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode bulk action meta failed", err)
		}
		if err := enc.Encode(action.Doc); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode bulk document failed", err)
		}
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), http.MethodPost, c.baseURL+"/_bulk", &buf)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build bulk request failed", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "opensearch bulk request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read bulk response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("opensearch bulk status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode bulk response failed", err)
	}
	if !result.Errors {
		c.log.Info("indexed documents", "count", len(actions))
		return nil
	}

	var reasons []string
	for _, item := range result.Items {
		for _, entry := range item {
			if entry.Error == nil {
				continue
			}
			reasons = append(reasons, fmt.Sprintf("%s: %s (%s)", entry.ID, entry.Error.Reason, entry.Error.Type))
			if len(reasons) >= 5 {
				break
			}
		}
		if len(reasons) >= 5 {
			break
		}
	}
	return &OperationError{
		Code:       OperationErrorBulkRejected,
		Operation:  op,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("bulk indexing reported errors: %s", strings.Join(reasons, "; ")),
	}
}

// Search executes a query body against the index.
func (c *Client) Search(ctx context.Context, body map[string]any) (*SearchResponse, error) {
	const op = "search"
	var out SearchResponse
	if err := c.doJSON(ctx, op, http.MethodPost, "/"+c.cfg.Index+"/_search", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "opensearch request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("opensearch http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode response failed", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Username != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
