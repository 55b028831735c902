package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/calprompt/calprompt/internal/config"
	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

var providerBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"gemini":   "https://generativelanguage.googleapis.com/v1beta/openai",
	"deepseek": "https://api.deepseek.com/v1",
	"ollama":   "http://localhost:11434/v1",
}

// OpenAIEngine talks to any chat completions endpoint that speaks the OpenAI tool calling
// protocol.
type OpenAIEngine struct {
	client    *openai.Client
	model     string
	maxTokens int
	timeout   time.Duration
}

func NewOpenAIEngine(cfg config.Engine) (*OpenAIEngine, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		known, ok := providerBaseURLs[cfg.Provider]
		if !ok {
			return nil, fmt.Errorf("unsupported engine provider: %s", cfg.Provider)
		}
		baseURL = known
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("engine model is required")
	}
	if cfg.Provider != "ollama" && cfg.APIKey == "" {
		return nil, fmt.Errorf("engine API key is required for provider %s", cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = baseURL

	return &OpenAIEngine{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

func (e *OpenAIEngine) Generate(ctx context.Context, messages []Message, tools []Tool) (Reply, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: 0,
		Messages:    toChatMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Errorf("chat completion failed after %s: %v", time.Since(start), err)
		if ctx.Err() != nil {
			return Reply{}, fmt.Errorf("%w: %w", ErrEngineUnavailable, ctx.Err())
		}
		return Reply{}, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("%w: empty response", ErrEngineUnavailable)
	}
	log.Debugf("chat completion finished in %s, tokens: %d", time.Since(start), resp.Usage.TotalTokens)

	msg := resp.Choices[0].Message
	reply := Reply{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	// Older endpoints still answer with the deprecated single function call.
	if msg.FunctionCall != nil && len(reply.ToolCalls) == 0 {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		})
	}
	return reply, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func toOpenAITools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
