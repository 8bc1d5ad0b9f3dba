// Command providercheck sends one canned clinical prompt through a provider
// adapter and prints the reply. Useful for verifying credentials before
// wiring a provider into the panel settings.
//
// Usage:
//
//	providercheck -provider openai -model gpt-4o [-base-url URL]
//
// The API key is read from PROVIDER_API_KEY.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ocegs/panel/internal/provider"
	"github.com/ocegs/panel/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	providerName := flag.String("provider", "openai", "provider name (openai, anthropic, gemini, bedrock, siliconflow, modelscope)")
	model := flag.String("model", "", "model identifier")
	baseURL := flag.String("base-url", "", "optional API base URL override")
	flag.Parse()

	apiKey := os.Getenv("PROVIDER_API_KEY")
	if apiKey == "" && *providerName != "bedrock" {
		log.Fatal("PROVIDER_API_KEY is required")
	}

	factory := provider.NewFactory(logging.New("warn"))
	adapter := factory.Adapter(provider.Config{
		Provider: *providerName,
		Model:    *model,
		APIKey:   apiKey,
		BaseURL:  *baseURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	reply := adapter.Complete(ctx, provider.Request{
		Messages: []provider.ChatMessage{
			{Role: provider.RoleSystem, Content: "You are a physician on a consultation panel. Answer in one short paragraph."},
			{Role: provider.RoleUser, Content: "A 45-year-old reports two days of mild intermittent chest tightness after exercise. What should they do next?"},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	elapsed := time.Since(start).Round(time.Millisecond)

	fmt.Printf("provider=%s model=%s elapsed=%s\n\n", *providerName, *model, elapsed)
	fmt.Println(reply)
	if provider.IsErrorText(reply) {
		os.Exit(1)
	}
}
