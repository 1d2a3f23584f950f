package ollama

import (
	"context"
	"fmt"

	"github.com/ollama/ollama/api"
	"github.com/presbrey/ollamafarm"
	"github.com/xpanvictor/telly/pkg/Logger"
)

// OllamaProvider pools one or more ollama servers behind a farm and picks
// the first live one per request.
type OllamaProvider struct {
	farm *ollamafarm.Farm
}

func New(serverURLs []string, logger *Logger.Logger) OllamaProvider {
	farm := ollamafarm.New()
	for _, raw := range serverURLs {
		if err := farm.RegisterURL(raw, nil); err != nil {
			logger.Warnf("skipping ollama server %s: %v", raw, err)
		}
	}
	return OllamaProvider{farm: farm}
}

func (o *OllamaProvider) Chat(
	ctx context.Context,
	req api.ChatRequest,
	fn api.ChatResponseFunc,
) error {
	srv := o.farm.First(&ollamafarm.Where{Offline: false})
	if srv == nil {
		return fmt.Errorf("no ollama server online for model %v", req.Model)
	}
	return srv.Client().Chat(ctx, &req, fn)
}
