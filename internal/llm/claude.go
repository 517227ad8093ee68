package llm

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/liushuangls/go-anthropic/v2"

	"github.com/agenthands/canon/internal/config"
)

type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewClaudeClient(cfg config.LLMConfig) *ClaudeClient {
	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeClient{
		client:    anthropic.NewClient(cfg.APIKey, opts...),
		model:     cfg.Model,
		maxTokens: maxTokensOrDefault(cfg.MaxTokens),
	}
}

// Generate returns the first text block of the reply. Claude has no JSON
// response mode, so the instruction carries the format.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:  anthropic.Model(c.model),
		System: systemInstruction,
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(prompt)},
			},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", errors.Wrapf(err, "claude create message (model %s)", c.model)
	}
	for _, block := range resp.Content {
		if block.Text != nil && *block.Text != "" {
			return *block.Text, nil
		}
	}
	return "", errors.Wrapf(ErrEmptyResponse, "claude model %s", c.model)
}
