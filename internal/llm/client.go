package llm

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm returned no text")

// systemInstruction is sent with every oracle prompt. The oracle parses the
// reply as a single JSON object.
const systemInstruction = "You review a catalog of concepts. Answer with one JSON object and nothing else."

// LLMClient is a text-in, text-out completion backend. Implementations are
// asked for JSON output where the provider supports it.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return 4096
	}
	return n
}
