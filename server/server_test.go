package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/tienvm/ragdoc/pkg/assistant"
	"github.com/tienvm/ragdoc/pkg/config"
	"github.com/tienvm/ragdoc/server"
)

type hashEmbedder struct {
	dim int
}

func (e hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e hashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,!?")))
		vec[h.Sum32()%uint32(e.dim)]++
	}
	return vec
}

type fakeModel struct {
	response string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *assistant.Assistant, string) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Index: config.IndexConfig{
			Backend:   "local",
			Location:  filepath.Join(dir, "index"),
			BatchSize: 10,
		},
		Splitter: config.SplitterConfig{ChunkSize: 200, ChunkOverlap: 40},
	}

	bot, err := assistant.New(cfg, &fakeModel{response: "The capital of Vietnam is Hanoi."}, hashEmbedder{dim: 64})
	require.NoError(t, err)

	ts := httptest.NewServer(server.New(bot).Handler())
	t.Cleanup(ts.Close)
	return ts, bot, dir
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuery_EmptyQuestionRejected(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/query", map[string]any{"question": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.NotEmpty(t, body["error"])
}

func TestQuery_WrongMethod(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestQuery_BeforeAnyLoad(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/query", map[string]any{"question": "anything"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Answer     string `json:"answer"`
		HasSources bool   `json:"has_sources"`
	}
	decode(t, resp, &body)
	assert.Equal(t, "Please load documents before querying.", body.Answer)
	assert.False(t, body.HasSources)
}

func TestLoadFileThenQuery(t *testing.T) {
	ts, bot, dir := newTestServer(t)

	doc := filepath.Join(dir, "facts.txt")
	require.NoError(t, os.WriteFile(doc, []byte("The capital of Vietnam is Hanoi."), 0o644))

	resp := postJSON(t, ts.URL+"/load-file", map[string]any{"file_path": doc})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var ack struct {
		Success bool `json:"success"`
	}
	decode(t, resp, &ack)
	assert.True(t, ack.Success)

	// The load runs in the background; poll until the index appears.
	require.Eventually(t, bot.HasIndex, 5*time.Second, 10*time.Millisecond)

	statusResp, err := http.Get(ts.URL + "/loading-status")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var status struct {
		IsLoading bool   `json:"is_loading"`
		Processed int    `json:"processed"`
		Message   string `json:"message"`
	}
	decode(t, statusResp, &status)
	assert.False(t, status.IsLoading)
	assert.Equal(t, 1, status.Processed)

	queryResp := postJSON(t, ts.URL+"/query", map[string]any{
		"question":     "What is the capital of Vietnam?",
		"want_sources": true,
	})
	assert.Equal(t, http.StatusOK, queryResp.StatusCode)

	var body struct {
		Answer     string `json:"answer"`
		HasSources bool   `json:"has_sources"`
	}
	decode(t, queryResp, &body)
	assert.Contains(t, body.Answer, "Hanoi")
	assert.True(t, body.HasSources)
}

func TestLoadFile_MissingPathRejected(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/load-file", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearHistory(t *testing.T) {
	ts, bot, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/clear-history", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, bot.HistoryLen())
}

func TestResetDatabase(t *testing.T) {
	ts, bot, _ := newTestServer(t)

	_, err := bot.Ingest(context.Background(), nil, false)
	require.NoError(t, err)

	resp := postJSON(t, ts.URL+"/reset-database", map[string]any{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, bot.HasIndex())
}
