package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
	olp "github.com/xpanvictor/telly/pkg/assistant/providers/ollama"
)

type ollamaAdapter struct {
	op    olp.OllamaProvider
	model string
}

func New(provider olp.OllamaProvider, model string) adapters.ContractAdapter {
	return &ollamaAdapter{op: provider, model: model}
}

func (o *ollamaAdapter) Name() string { return "ollama" }

// Process implements adapters.ContractAdapter.
func (o *ollamaAdapter) Process(ctx context.Context, input adapters.ContractInput, ch adapters.ContractResponseChannel) error {
	model := o.model
	if input.HandlerModel.Name != "" {
		model = fmt.Sprintf("%s%s", input.HandlerModel.Name, input.HandlerModel.Version)
	}
	stream := true
	req := api.ChatRequest{
		Model:    model,
		Messages: convertMsgs(input.Msgs),
		Stream:   &stream,
	}

	handler := func(cr api.ChatResponse) error {
		delta := adapters.ContractResponseDelta{
			Content:   cr.Message.Content,
			CreatedAt: cr.CreatedAt,
		}
		if cr.Done {
			delta.Done = true
			delta.Tokens = cr.Metrics.PromptEvalCount + cr.Metrics.EvalCount
		}
		select {
		case ch <- delta:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := o.op.Chat(ctx, req, handler); err != nil {
		return fmt.Errorf("ollama stream: %w", err)
	}
	return nil
}

func convertMsgs(msgs []adapters.ContractMessage) []api.Message {
	converted := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		converted = append(converted, api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return converted
}
