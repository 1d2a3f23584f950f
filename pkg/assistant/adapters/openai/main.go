package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
)

type openaiAdapter struct {
	client openai.Client
	model  string
}

func New(apiKey, model string) adapters.ContractAdapter {
	return &openaiAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *openaiAdapter) Name() string { return "openai" }

// Process implements adapters.ContractAdapter.
func (o *openaiAdapter) Process(ctx context.Context, input adapters.ContractInput, ch adapters.ContractResponseChannel) error {
	model := o.model
	if input.HandlerModel.Name != "" {
		model = input.HandlerModel.Name
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertMsgs(input.Msgs),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	})

	totalTokens := 0
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Usage.TotalTokens > 0 {
			totalTokens = int(chunk.Usage.TotalTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		select {
		case ch <- adapters.ContractResponseDelta{Content: delta, CreatedAt: time.Now()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("openai stream: %w", err)
	}

	select {
	case ch <- adapters.ContractResponseDelta{Done: true, Tokens: totalTokens, CreatedAt: time.Now()}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func convertMsgs(msgs []adapters.ContractMessage) []openai.ChatCompletionMessageParamUnion {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case adapters.ASSISTANT:
			converted = append(converted, openai.AssistantMessage(msg.Content))
		case adapters.SYSTEM:
			converted = append(converted, openai.SystemMessage(msg.Content))
		default:
			converted = append(converted, openai.UserMessage(msg.Content))
		}
	}
	return converted
}
