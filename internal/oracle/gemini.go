// File: internal/oracle/gemini.go
package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/AmirrezaAsadi/behavorialtestbed-sub000/internal/config"
)

// GeminiClient implements Client against the Gemini API. A single instance is
// shared by every agent in a run, so outbound traffic is rate limited here
// rather than per caller.
type GeminiClient struct {
	logger  *zap.Logger
	client  *genai.Client
	cfg     config.OracleConfig
	limiter *rate.Limiter
}

// NewGeminiClient creates a Gemini-backed oracle client.
func NewGeminiClient(ctx context.Context, cfg config.OracleConfig, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{
		logger:  logger.Named("gemini_oracle"),
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Generate sends the request to the Gemini API and returns the text reply.
func (g *GeminiClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("oracle rate limiter wait aborted: %w", err)
	}

	apiCtx, cancel := context.WithTimeout(ctx, g.cfg.APITimeout)
	defer cancel()

	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = g.cfg.Temperature
	}
	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.cfg.MaxTokens
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}

	g.logger.Debug("Dispatching oracle request",
		zap.String("site", string(req.Site)),
		zap.String("model", g.cfg.Model))

	resp, err := g.client.Models.GenerateContent(apiCtx, g.cfg.Model, genai.Text(req.UserPrompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response for site %s", req.Site)
	}
	return text, nil
}

var _ Client = (*GeminiClient)(nil)
