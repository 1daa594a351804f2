package opensearch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veeky/veeky-backend/internal/platform/logger"
)

func testConfig(t *testing.T, serverURL string) Config {
	t.Helper()
	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)
	return Config{
		Host:           parsed.Hostname(),
		Port:           port,
		Scheme:         "http",
		Index:          "videos",
		TextVectorDim:  4,
		ImageVectorDim: 3,
		Timeout:        5 * time.Second,
	}
}

func TestNewClient_CreatesMissingIndex(t *testing.T) {
	var createdBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/videos":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/videos":
			raw, _ := io.ReadAll(r.Body)
			createdBody = string(raw)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)
	require.Equal(t, "videos", client.Index())
	require.Contains(t, createdBody, "knn_vector")
	require.Contains(t, createdBody, "video_relation")
}

func TestNewClient_ExistingIndexLeftUntouched(t *testing.T) {
	var putCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			putCalls++
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	_, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)
	require.Zero(t, putCalls)
}

func TestBulk_BuildsNDJSONWithRouting(t *testing.T) {
	var bulkBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/_bulk":
			require.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
			raw, _ := io.ReadAll(r.Body)
			bulkBody = string(raw)
			_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)

	err = client.Bulk(context.Background(), []Action{
		{ID: "42", Routing: "42", Doc: map[string]any{"video_id": 42}},
		{ID: "42-segment-0-0", Routing: "42", Doc: map[string]any{"video_id": 42}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(bulkBody), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], `"_routing":"42"`)
	require.Contains(t, lines[0], `"_index":"videos"`)
	require.Contains(t, lines[2], `"_id":"42-segment-0-0"`)
}

func TestBulk_SurfacesItemErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/_bulk":
			_, _ = w.Write([]byte(`{
				"errors": true,
				"items": [
					{"index": {"_id": "42", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad vector"}}}
				]
			}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)

	err = client.Bulk(context.Background(), []Action{{ID: "42", Routing: "42", Doc: map[string]any{}}})
	require.Error(t, err)
	var opError *OperationError
	require.ErrorAs(t, err, &opError)
	require.Equal(t, OperationErrorBulkRejected, opError.Code)
	require.False(t, opError.Unreachable())
	require.Contains(t, opError.Message, "bad vector")
}

func TestBulk_EmptyActionListIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)
	require.NoError(t, client.Bulk(context.Background(), nil))
}

func TestSearch_DecodesHitsAndInnerHits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/videos/_search":
			_, _ = w.Write([]byte(`{
				"hits": {"hits": [
					{"_id": "1", "_score": 0.5, "_source": {"video_id": 1},
					 "inner_hits": {"content_chunk": {"hits": {"hits": [
						{"_id": "1-segment-0-0", "_score": 0.9, "_source": {"video_id": 1}}
					 ]}}}}
				]}
			}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), logger.NewNop(), testConfig(t, server.URL))
	require.NoError(t, err)

	resp, err := client.Search(context.Background(), map[string]any{"query": map[string]any{"match_all": map[string]any{}}})
	require.NoError(t, err)
	require.Len(t, resp.Hits.Hits, 1)
	inner := resp.Hits.Hits[0].InnerHits["content_chunk"]
	require.Len(t, inner.Hits.Hits, 1)
	require.Equal(t, "1-segment-0-0", inner.Hits.Hits[0].ID)
}

func TestSearch_UnreachableEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	cfg := testConfig(t, server.URL)
	client, err := NewClient(context.Background(), logger.NewNop(), cfg)
	require.NoError(t, err)
	server.Close()

	_, err = client.Search(context.Background(), map[string]any{})
	require.Error(t, err)
	var opError *OperationError
	require.ErrorAs(t, err, &opError)
	require.True(t, opError.Unreachable())
}

func TestValidateConfig(t *testing.T) {
	valid := Config{Host: "localhost", Port: 9200, Scheme: "http", Index: "videos", TextVectorDim: 1024, ImageVectorDim: 512}
	require.NoError(t, ValidateConfig(valid))

	bad := valid
	bad.Scheme = "ftp"
	require.Error(t, ValidateConfig(bad))

	bad = valid
	bad.TextVectorDim = 0
	require.Error(t, ValidateConfig(bad))

	bad = valid
	bad.Index = ""
	require.Error(t, ValidateConfig(bad))
}
