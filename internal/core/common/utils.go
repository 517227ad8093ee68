package common

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseJSON extracts the outermost JSON object from an LLM reply and decodes
// it into T. Markdown fences and prose around the object are ignored.
func ParseJSON[T any](response string) (T, error) {
	var out T

	body := strings.TrimSpace(response)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end < start {
		return out, errors.Newf("no JSON object in reply (%d bytes)", len(response))
	}
	body = body[start : end+1]

	if err := json.Unmarshal([]byte(body), &out); err != nil {
		var zero T
		return zero, errors.Wrapf(err, "decode JSON object (%d bytes)", len(body))
	}
	return out, nil
}
