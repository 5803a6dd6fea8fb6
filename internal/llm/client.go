// Package llm talks to the Gemini API over plain HTTP: chat completions,
// schema-constrained JSON output, function calling and embeddings.
package llm

import "context"

// Client is the chat completion surface used by the enhancer, the CSV
// analyzer, the image importer and the recommendation agent.
type Client interface {
	// Complete sends a single user prompt with an optional system prompt.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteJSON forces a JSON response conforming to the given schema.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, schema map[string]interface{}) (string, error)

	// DescribeImage sends inline image bytes with a prompt and forces a JSON
	// response conforming to the given schema.
	DescribeImage(ctx context.Context, systemPrompt, userPrompt, mimeType string, image []byte, schema map[string]interface{}) (string, error)

	// Chat runs one turn of a tool-calling conversation. Callers own the
	// contents slice and append the returned Content plus their function
	// responses before the next turn.
	Chat(ctx context.Context, systemPrompt string, contents []Content, tools []ToolDefinition) (*ChatResponse, error)
}

// Embedder produces vector embeddings for transaction descriptions.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// UserContent builds a single-part user turn.
func UserContent(text string) Content {
	return Content{Role: "user", Parts: []Part{{Text: text}}}
}

// FunctionContent builds the function-role turn carrying tool results.
func FunctionContent(results []FunctionResponse) Content {
	parts := make([]Part, len(results))
	for i := range results {
		parts[i] = Part{FunctionResponse: &results[i]}
	}
	return Content{Role: "function", Parts: parts}
}
