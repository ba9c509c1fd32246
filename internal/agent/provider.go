package agent

import (
	"context"
	"encoding/json"

	"github.com/bookday/concierge/pkg/models"
)

// ModelProvider is the narrow surface the loop needs from an LLM backend.
// One call, one completion; streaming is an implementation detail of the
// provider.
type ModelProvider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
	Name() string
}

// CompletionRequest is a provider-neutral model invocation.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []*models.Message
	Tools     []ToolSpec
	MaxTokens int
}

// ToolSpec is the model-facing description of one tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Completion is the model's response to one request.
type Completion struct {
	Content    string
	ToolCalls  []models.ToolCall
	StopReason string
	Usage      Usage
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
