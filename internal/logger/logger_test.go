package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	log, logs := NewObserved()
	log.Info("dial", "api_key", "sk-123", "to", "+15551234567", "session", "s1")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "[REDACTED]", fields["api_key"])
		assert.True(t, strings.HasPrefix(fields["to"].(string), "hash:"))
		assert.Equal(t, "s1", fields["session"])
	}
}

func TestSanitizeOddKV(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestWithCarriesFields(t *testing.T) {
	log, logs := NewObserved()
	log.With("component", "mutation").Warn("skipped")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "mutation", entries[0].ContextMap()["component"])
	}
}
