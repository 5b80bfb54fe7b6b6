package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"event-contract-bot/internal/logger"
	"event-contract-bot/internal/store"
	"event-contract-bot/internal/types"
)

// OpenRouterDecider asks an OpenAI-compatible endpoint for one structured
// trading decision per cycle. Unparseable replies degrade to PASS; only
// transport failures surface as errors.
type OpenRouterDecider struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenRouterDecider(cfg *store.Config) (*OpenRouterDecider, error) {
	if cfg.LLM.APIKey == "" {
		return nil, errors.New("OPENROUTER_API_KEY missing")
	}
	if cfg.LLM.Model == "" {
		return nil, errors.New("llm.model is required for the OPENROUTER provider")
	}

	apiCfg := openai.DefaultConfig(cfg.LLM.APIKey)
	apiCfg.BaseURL = cfg.LLM.BaseURL

	return &OpenRouterDecider{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.LLM.Model,
		temperature: cfg.LLM.Temperature,
		maxTokens:   cfg.LLM.MaxTokens,
	}, nil
}

func (d *OpenRouterDecider) Decide(ctx context.Context, dctx types.DecisionContext) (types.Decision, error) {
	timer := logger.StartOperation(ctx, "llm-decide")
	ctx = timer.Context()

	reqCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := d.api.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(dctx)},
		},
	})
	if err != nil {
		timer.EndWithError(err)
		return types.Decision{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		err := errors.New("empty choices in completion response")
		timer.EndWithError(err)
		return types.Decision{}, err
	}
	timer.End()

	return ParseDecision(resp.Choices[0].Message.Content), nil
}
