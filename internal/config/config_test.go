package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 5, cfg.MutationThreshold)
	assert.Equal(t, 10, cfg.MutationSampleSize)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MUTATION_THRESHOLD", "3")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("DIAL_BLOCKLIST", "+15550000001,+15550000002")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MutationThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.LLMTimeout())
	assert.Equal(t, []string{"+15550000001", "+15550000002"}, cfg.DialBlocklist)
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}
