package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/crosschema/reconcile-engine/pkg/config"
)

// NewFromConfig creates the LLM client selected by the oracle configuration.
// Returns LLMClient interface to enable dependency injection of mocks.
func NewFromConfig(cfg *config.OracleConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case "openai":
		return NewClient(&ClientConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}
}
