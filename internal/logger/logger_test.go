package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "run_id", "r1", "MEMGRAPH_PASSWORD", "pw"})
	assert.Equal(t, []interface{}{"api_key", "[REDACTED]", "run_id", "r1", "MEMGRAPH_PASSWORD", "[REDACTED]"}, out)
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"task", "merges", "dangling"})
	assert.Equal(t, []interface{}{"task", "merges", "dangling"}, out)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("run_id", "r1").Info("iteration done", "iteration", 2, "token", "abc")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "r1", fields["run_id"])
	assert.Equal(t, int64(2), fields["iteration"])
	assert.Equal(t, "[REDACTED]", fields["token"])
}
