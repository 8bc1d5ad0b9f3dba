package provider

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIAdapter speaks the OpenAI chat-completions wire format. It is the
// lingua franca default: siliconflow, modelscope, and unknown provider names
// all resolve here with different base URLs.
type OpenAIAdapter struct {
	client *openai.Client
	model  string
	target string
}

func newOpenAIAdapter(cfg Config, defaultBaseURL string) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	target := "https://api.openai.com/v1"
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		target = base
	} else if defaultBaseURL != "" {
		target = defaultBaseURL
	}
	clientCfg.BaseURL = strings.TrimSuffix(target, "/")

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		target: clientCfg.BaseURL,
	}
}

func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) string {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return fmt.Sprintf("Error connecting to AI backend: %v", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Sprintf("Error: Invalid response format from %s", a.target)
	}
	return resp.Choices[0].Message.Content
}
