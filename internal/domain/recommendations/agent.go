package recommendations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/llm"
)

// maxIterations bounds the tool-calling loop. The agent gets this many
// model turns to investigate before it must answer.
const maxIterations = 5

const agentSystemPrompt = `You are a personal finance advisor analyzing a user's transaction history.
Use the available tools to investigate their spending before making recommendations:
look at category spending for the last and previous months, and search for notable
merchants or recurring charges. Then produce 2 to 5 specific, actionable savings
recommendations grounded in what you found. Each needs a short title, a message that
cites concrete numbers from the data, a priority (low, medium or high) and, when it
concerns one category, that category's slug.

When you are done investigating, respond with JSON only:
{"recommendations":[{"title":"...","message":"...","priority":"medium","category":"groceries"}]}`

// Draft is one recommendation proposed by the agent before persistence.
type Draft struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
	Category string `json:"category,omitempty"`
}

// Agent runs the bounded tool-calling loop that turns transaction history
// into recommendations. A failed run returns no drafts, never an error to
// the HTTP caller.
type Agent struct {
	client llm.Client
	reader TransactionReader
	logger *slog.Logger
}

func NewAgent(client llm.Client, reader TransactionReader, logger *slog.Logger) *Agent {
	return &Agent{client: client, reader: reader, logger: logger.With("component", "recommendation_agent")}
}

// Run executes the agent for one user and returns its drafts.
func (a *Agent) Run(ctx context.Context, userID uuid.UUID) ([]Draft, error) {
	registry := newToolRegistry(a.reader, userID)
	tools := toolDefinitions()

	today := time.Now().Format("2006-01-02")
	contents := []llm.Content{
		llm.UserContent(fmt.Sprintf("Today is %s. Analyze my recent spending and recommend ways to save.", today)),
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		resp, err := a.client.Chat(ctx, agentSystemPrompt, contents, tools)
		if err != nil {
			return nil, fmt.Errorf("agent turn %d: %w", iteration+1, err)
		}

		if len(resp.ToolCalls) == 0 {
			drafts, err := parseDrafts(resp.Text)
			if err != nil {
				return nil, fmt.Errorf("agent turn %d: %w", iteration+1, err)
			}
			return drafts, nil
		}

		results := make([]llm.FunctionResponse, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			a.logger.Debug("tool call", "tool", call.Name, "iteration", iteration+1)
			results = append(results, registry.execute(ctx, call))
		}

		contents = append(contents, resp.Content)
		contents = append(contents, llm.FunctionContent(results))
	}

	// Out of turns. Force a final answer without tools.
	contents = append(contents, llm.UserContent(
		"You have used all your investigation turns. Respond now with the recommendations JSON."))
	resp, err := a.client.Chat(ctx, agentSystemPrompt, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("agent final turn: %w", err)
	}
	return parseDrafts(resp.Text)
}

func parseDrafts(text string) ([]Draft, error) {
	var parsed struct {
		Recommendations []Draft `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSON(text)), &parsed); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}

	drafts := parsed.Recommendations[:0]
	for _, d := range parsed.Recommendations {
		if d.Title == "" || d.Message == "" {
			continue
		}
		switch d.Priority {
		case "low", "medium", "high":
		default:
			d.Priority = "medium"
		}
		drafts = append(drafts, d)
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("no usable recommendations in response")
	}
	return drafts, nil
}
