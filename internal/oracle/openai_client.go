package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIChatAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient implements LLMClient against the OpenAI chat-completions API
// (or any OpenAI-compatible endpoint via a base URL override).
type OpenAIClient struct {
	chat         openAIChatAPI
	defaultModel string
}

func NewOpenAIClient(apiKey, baseURL, defaultModel string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	cli := openai.NewClient(opts...)
	return &OpenAIClient{chat: &cli.Chat.Completions, defaultModel: defaultModel}
}

func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return LLMResponse{}, errors.New("oracle: openai model is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.System)+len(req.Messages))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		messages = append(messages, openai.SystemMessage(block))
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			messages = append(messages, openai.SystemMessage(content))
		case ChatRoleUser:
			messages = append(messages, openai.UserMessage(content))
		case ChatRoleAssistant:
			messages = append(messages, openai.AssistantMessage(content))
		default:
			return LLMResponse{}, fmt.Errorf("oracle: unsupported role %q", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if req.TopP != 0 {
		params.TopP = openai.Float(float64(req.TopP))
	}

	out, err := c.chat.New(ctx, params)
	if err != nil {
		return LLMResponse{}, err
	}
	if out == nil || len(out.Choices) == 0 {
		return LLMResponse{}, errors.New("oracle: openai returned no choices")
	}

	choice := out.Choices[0]
	resp := LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
		Usage: TokenUsage{
			InputTokens:  int32(out.Usage.PromptTokens),
			OutputTokens: int32(out.Usage.CompletionTokens),
			TotalTokens:  int32(out.Usage.TotalTokens),
		},
	}
	return resp, nil
}
