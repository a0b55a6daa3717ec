// File: internal/oracle/factory.go
package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
)

// NewClient is a factory that selects the oracle backend from configuration.
func NewClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini oracle client: %w", err)
		}
		logger.Info("Instantiated oracle client",
			zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model))
		return client, nil
	case config.ProviderScripted:
		logger.Info("Instantiated scripted oracle client")
		return NewScriptedClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider '%s'", cfg.Provider)
	}
}
