package app

import (
	"fmt"

	"github.com/xpanvictor/telly/internal/config"
	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/assistant/adapters"
	"github.com/xpanvictor/telly/pkg/assistant/adapters/ollama"
	"github.com/xpanvictor/telly/pkg/assistant/adapters/openai"
	olp "github.com/xpanvictor/telly/pkg/assistant/providers/ollama"
	"github.com/xpanvictor/telly/pkg/assistant/router"
)

// LLMRouterFactory builds the completion router from settings. Adapters
// are created only for configured providers; the first one becomes the
// default route.
type LLMRouterFactory struct {
	config *config.Settings
	logger *Logger.Logger
}

func NewLLMRouterFactory(cfg *config.Settings, logger *Logger.Logger) *LLMRouterFactory {
	return &LLMRouterFactory{
		config: cfg,
		logger: logger,
	}
}

// CreateRouter creates the completion router with configured providers.
func (f *LLMRouterFactory) CreateRouter() (*router.Mux, error) {
	var ads []adapters.ContractAdapter

	if f.config.OpenAI.APIKey != "" {
		ads = append(ads, openai.New(f.config.OpenAI.APIKey, f.config.OpenAI.Model))
		f.logger.Infof("openai adapter created for model %s", f.config.OpenAI.Model)
	}

	if len(f.config.Ollama.Servers) > 0 {
		provider := olp.New(f.config.Ollama.Servers, f.logger)
		ads = append(ads, ollama.New(provider, f.config.Ollama.Model))
		f.logger.Infof("ollama adapter created for %d server(s), model %s",
			len(f.config.Ollama.Servers), f.config.Ollama.Model)
	}

	if len(ads) == 0 {
		return nil, fmt.Errorf("no LLM adapters configured")
	}

	mux, err := router.New(ads)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM router: %w", err)
	}
	f.logger.Infof("LLM router created with %d adapter(s)", len(ads))
	return mux, nil
}
