package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGeminiClient(GeminiConfig{
		APIKey:             "test-key",
		BaseURL:            srv.URL,
		Model:              "gemini-test",
		EmbeddingModel:     "embed-test",
		RateLimitPerMinute: 6000,
	}, testLogger())
}

func textResponse(text string) string {
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{{
			"content": map[string]interface{}{
				"role":  "model",
				"parts": []map[string]interface{}{{"text": text}},
			},
			"finishReason": "STOP",
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestComplete(t *testing.T) {
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		io.WriteString(w, textResponse("hello there"))
	})

	out, err := client.Complete(context.Background(), "be brief", "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	require.NotNil(t, gotReq.SystemInstruction)
	assert.Equal(t, "be brief", gotReq.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "say hello", gotReq.Contents[0].Parts[0].Text)
}

func TestCompleteJSONSetsSchema(t *testing.T) {
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		io.WriteString(w, textResponse(`{"ok":true}`))
	})

	schema := map[string]interface{}{"type": "object"}
	out, err := client.CompleteJSON(context.Background(), "", "give json", schema)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, out)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMimeType)
	assert.Equal(t, "object", gotReq.GenerationConfig.ResponseSchema["type"])
}

func TestDescribeImageSendsInlineData(t *testing.T) {
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		io.WriteString(w, textResponse(`{"transactions":[]}`))
	})

	_, err := client.DescribeImage(context.Background(), "", "extract", "image/png", []byte{1, 2, 3}, nil)
	require.NoError(t, err)

	parts := gotReq.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.NotEmpty(t, parts[0].InlineData.Data)
	assert.Equal(t, "extract", parts[1].Text)
}

func TestChatParsesToolCalls(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{{
						"functionCall": map[string]interface{}{
							"name": "search_transactions",
							"args": map[string]interface{}{"query": "coffee"},
						},
					}},
				},
				"finishReason": "STOP",
			}},
		}
		json.NewEncoder(w).Encode(resp)
	})

	tools := []ToolDefinition{{Name: "search_transactions", Description: "search"}}
	out, err := client.Chat(context.Background(), "sys", []Content{UserContent("hi")}, tools)
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "search_transactions", out.ToolCalls[0].Name)
	assert.Equal(t, "coffee", out.ToolCalls[0].Args["query"])
	assert.Equal(t, "model", out.Content.Role)
}

func TestRetriesOnRateLimit(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, textResponse("recovered"))
	})

	out, err := client.Complete(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 2, calls)
}

func TestNoRetryOnBadRequest(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"bad schema"}}`)
	})

	_, err := client.Complete(context.Background(), "", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)
}

func TestEmbed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "embed-test:embedContent")

		var req embedContentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, EmbeddingDimensions, req.OutputDimensionality)

		io.WriteString(w, `{"embedding":{"values":[0.1,0.2,0.3]}}`)
	})

	vec, err := client.Embed(context.Background(), "coffee shop")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "batchEmbedContents"))
		io.WriteString(w, `{"embeddings":[{"values":[0.1]},{"values":[0.2]}]}`)
	})

	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{0.2}, vecs[1])
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"embeddings":[{"values":[0.1]}]}`)
	})

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}
