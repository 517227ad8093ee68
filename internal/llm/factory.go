package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/config"
)

func NewClient(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	provider := strings.ToLower(cfg.Provider)

	var client LLMClient
	switch provider {
	case "openai":
		client = NewOpenAIClient(cfg)

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client = c

	case "claude":
		client = NewClaudeClient(cfg)

	case "ollama":
		// Ollama speaks the OpenAI wire protocol under /v1.
		oc := cfg
		if !strings.HasSuffix(oc.BaseURL, "/v1") {
			oc.BaseURL = fmt.Sprintf("%s/v1", strings.TrimRight(oc.BaseURL, "/"))
		}
		if oc.APIKey == "" {
			oc.APIKey = "ollama" // ignored by Ollama, required by the client
		}
		client = NewOpenAIClient(oc)

	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported llm provider: %s", provider),
			"use one of openai, gemini, claude, ollama",
		)
	}

	if cfg.RPS > 0 {
		client = NewRateLimited(client, cfg.RPS)
	}
	return client, nil
}
