package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/pennypilot/pkg/metrics"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultTemperature = 0.2
	maxOutputTokens    = 8192
	maxRetries         = 3

	// EmbeddingDimensions is the pgvector column width.
	EmbeddingDimensions = 768
)

var tracer = otel.Tracer("pennypilot/llm")

// GeminiConfig configures the raw HTTP client.
type GeminiConfig struct {
	APIKey             string
	BaseURL            string
	Model              string
	EmbeddingModel     string
	RateLimitPerMinute int
	Timeout            time.Duration
}

// GeminiClient implements Client and Embedder against the Gemini REST API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

var (
	_ Client   = (*GeminiClient)(nil)
	_ Embedder = (*GeminiClient)(nil)
)

func NewGeminiClient(cfg GeminiConfig, logger *slog.Logger) *GeminiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rpm := cfg.RateLimitPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &GeminiClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		embedModel: cfg.EmbeddingModel,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		logger:     logger,
	}
}

func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := &generateRequest{
		Contents: []Content{UserContent(userPrompt)},
		GenerationConfig: generationConfig{
			Temperature:     defaultTemperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}

	resp, err := c.generate(ctx, "complete", req)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (c *GeminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error) {
	req := &generateRequest{
		Contents: []Content{UserContent(userPrompt)},
		GenerationConfig: generationConfig{
			Temperature:      defaultTemperature,
			MaxOutputTokens:  maxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}

	resp, err := c.generate(ctx, "complete_json", req)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (c *GeminiClient) DescribeImage(ctx context.Context, systemPrompt, userPrompt, mimeType string, image []byte, schema map[string]interface{}) (string, error) {
	req := &generateRequest{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{InlineData: &InlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: userPrompt},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:      defaultTemperature,
			MaxOutputTokens:  maxOutputTokens,
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}

	resp, err := c.generate(ctx, "describe_image", req)
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

func (c *GeminiClient) Chat(ctx context.Context, systemPrompt string, contents []Content, tools []ToolDefinition) (*ChatResponse, error) {
	req := &generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     defaultTemperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}
	if len(tools) > 0 {
		decls := make([]functionDeclaration, len(tools))
		for i, t := range tools {
			decls[i] = functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
		req.Tools = []wireTool{{FunctionDeclarations: decls}}
	}

	resp, err := c.generate(ctx, "chat", req)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	cand := resp.Candidates[0]
	out := &ChatResponse{
		StopReason: cand.FinishReason,
		Content:    cand.Content,
	}

	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		}
	}
	out.Text = strings.TrimSpace(text.String())

	return out, nil
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body := embedContentRequest{
		Content:              Content{Parts: []Part{{Text: text}}},
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: EmbeddingDimensions,
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, c.embedModel, c.apiKey)

	var resp embedContentResponse
	if err := c.post(ctx, "embed", url, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("embed API error: %s", resp.Error.Message)
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embedding.Values, nil
}

func (c *GeminiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqs := make([]embedContentRequest, len(texts))
	for i, t := range texts {
		reqs[i] = embedContentRequest{
			Model:                "models/" + c.embedModel,
			Content:              Content{Parts: []Part{{Text: t}}},
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: EmbeddingDimensions,
		}
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents?key=%s", c.baseURL, c.embedModel, c.apiKey)

	var resp batchEmbedResponse
	if err := c.post(ctx, "embed_batch", url, batchEmbedRequest{Requests: reqs}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("embed API error: %s", resp.Error.Message)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *GeminiClient) Dimensions() int {
	return EmbeddingDimensions
}

func (c *GeminiClient) generate(ctx context.Context, operation string, req *generateRequest) (*generateResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var resp generateResponse
	if err := c.post(ctx, operation, url, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s", resp.Error.Message)
	}
	return &resp, nil
}

// post sends a JSON request with rate limiting and exponential backoff on
// 429 and 5xx responses.
func (c *GeminiClient) post(ctx context.Context, operation, url string, body, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "llm."+operation, trace.WithAttributes(
		attribute.String("llm.model", c.model),
	))
	defer span.End()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			c.logger.Warn("retrying LLM request",
				slog.String("operation", operation),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
			return fmt.Errorf("parsing response: %w", err)
		}

		metrics.LLMRequestsTotal.WithLabelValues(operation, "ok").Inc()
		metrics.LLMRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		c.logger.Debug("LLM request completed",
			slog.String("operation", operation),
			slog.Duration("elapsed", time.Since(start)))
		return nil
	}

	metrics.LLMRequestsTotal.WithLabelValues(operation, "error").Inc()
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func responseText(resp *generateResponse) (string, error) {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no completion returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
