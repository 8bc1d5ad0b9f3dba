package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
)

// AnthropicAdapter speaks the Anthropic Messages API. The system prompt is
// extracted from the message list into the dedicated system field.
type AnthropicAdapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func newAnthropicAdapter(cfg Config, httpClient *http.Client) *AnthropicAdapter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: generateTimeout}
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = anthropicDefaultURL
	}
	return &AnthropicAdapter{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    baseURL,
	}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	System      string        `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) string {
	system, rest := splitSystem(req.Messages)

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	payload, err := json.Marshal(anthropicRequest{
		Model:       a.model,
		Messages:    rest,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return fmt.Sprintf("Error connecting to Anthropic: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Sprintf("Error connecting to Anthropic: %v", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Sprintf("Error connecting to Anthropic: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("Error connecting to Anthropic: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("Error connecting to Anthropic: unexpected status %d", resp.StatusCode)
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(body, &decoded); err != nil || len(decoded.Content) == 0 {
		return "Error: Invalid response format from Anthropic"
	}
	return decoded.Content[0].Text
}
