package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiAdapter speaks Google's Gemini API. System prompts become the model's
// system instruction and assistant turns map to the "model" role.
type GeminiAdapter struct {
	apiKey  string
	model   string
	baseURL string
}

func newGeminiAdapter(cfg Config) *GeminiAdapter {
	return &GeminiAdapter{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSpace(cfg.BaseURL),
	}
}

func (a *GeminiAdapter) Complete(ctx context.Context, req Request) string {
	callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	opts := []option.ClientOption{option.WithAPIKey(a.apiKey)}
	if a.baseURL != "" {
		opts = append(opts, option.WithEndpoint(a.baseURL))
	}
	client, err := genai.NewClient(callCtx, opts...)
	if err != nil {
		return fmt.Sprintf("Error connecting to Gemini: %v", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	system, rest := splitSystem(req.Messages)
	if strings.TrimSpace(system) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}
	if len(rest) == 0 {
		return "Error: Invalid or empty response from Gemini"
	}

	cs := model.StartChat()
	for _, msg := range rest[:len(rest)-1] {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}

	resp, err := cs.SendMessage(callCtx, genai.Text(rest[len(rest)-1].Content))
	if err != nil {
		return fmt.Sprintf("Error connecting to Gemini: %v", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "Error: Invalid or empty response from Gemini"
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out.WriteString(string(text))
		}
	}
	if out.Len() == 0 {
		return "Error: Invalid or empty response from Gemini"
	}
	return out.String()
}
