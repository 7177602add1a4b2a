package oracle

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one entry of the caller/assistant transcript handed to the
// oracle. System entries carry the per-task instructions.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a single NLU extraction request. Oracle tasks are short and
// deterministic, so call sites keep MaxTokens small and Temperature at zero.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LLMResponse carries the raw completion text. The Oracle layer is
// responsible for parsing it into a typed answer and falling back to a
// heuristic when the shape is wrong.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient abstracts the completion provider so the Oracle can run against
// OpenAI, Bedrock, or the provider-fallback wrapper interchangeably.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
