package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockAdapter routes completions through AWS Bedrock's Converse API.
type BedrockAdapter struct {
	api   bedrockConverseAPI
	model string
}

func newBedrockAdapter(api bedrockConverseAPI, model string) *BedrockAdapter {
	return &BedrockAdapter{api: api, model: model}
}

func (a *BedrockAdapter) Complete(ctx context.Context, req Request) string {
	if a.api == nil {
		return "Error connecting to Bedrock: client not configured"
	}
	if strings.TrimSpace(a.model) == "" {
		return "Error connecting to Bedrock: model id is required"
	}

	var systemBlocks []brtypes.SystemContentBlock
	var messages []brtypes.Message
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: content})
		case RoleUser:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case RoleAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		}
	}

	inference := &brtypes.InferenceConfiguration{
		Temperature: aws.Float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}

	callCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	out, err := a.api.Converse(callCtx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(a.model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return fmt.Sprintf("Error connecting to Bedrock: %v", err)
	}

	output, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok || len(output.Value.Content) == 0 {
		return "Error: Invalid response format from Bedrock"
	}
	text, ok := output.Value.Content[0].(*brtypes.ContentBlockMemberText)
	if !ok {
		return "Error: Invalid response format from Bedrock"
	}
	return text.Value
}
