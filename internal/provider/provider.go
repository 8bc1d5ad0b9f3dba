// Package provider normalizes heterogeneous AI chat-completion backends
// behind a single Adapter interface.
package provider

import (
	"context"
	"strings"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// generateTimeout bounds a single completion call; lookupTimeout bounds
// lightweight calls such as model listing.
const (
	generateTimeout = 60 * time.Second
	lookupTimeout   = 15 * time.Second
)

// ChatMessage is one role-tagged prompt message. At most one system entry is
// permitted and it must come first; adapters for backends with a dedicated
// system field extract it before building their payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a normalized completion request.
type Request struct {
	Messages    []ChatMessage
	Temperature float32
	MaxTokens   int
}

// Adapter produces a completion for a request. Transport and HTTP failures
// are returned as human-readable text, not as errors: the orchestration
// engine persists whatever comes back as the doctor's statement, so a failed
// provider call surfaces in-line to the end user instead of aborting the
// consultation.
type Adapter interface {
	Complete(ctx context.Context, req Request) string
}

// Config fully identifies one AI backend call target.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// Override carries a participant's optional per-call configuration. Empty
// fields defer to the next resolution tier.
type Override struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// Merge applies an override onto a base config, field by field. Resolution
// chains call this once per tier: participant override onto role config onto
// the global default.
func Merge(base Config, o Override) Config {
	out := base
	if strings.TrimSpace(o.Provider) != "" {
		out.Provider = o.Provider
	}
	if strings.TrimSpace(o.Model) != "" {
		out.Model = o.Model
	}
	if strings.TrimSpace(o.APIKey) != "" {
		out.APIKey = o.APIKey
	}
	if strings.TrimSpace(o.BaseURL) != "" {
		out.BaseURL = o.BaseURL
	}
	return out
}

// splitSystem extracts the leading system message for backends that carry
// system instructions outside the message list.
func splitSystem(messages []ChatMessage) (system string, rest []ChatMessage) {
	for _, m := range messages {
		if m.Role == RoleSystem && system == "" {
			system = m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
