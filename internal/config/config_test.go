package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SUPABASE_DB_URL", "postgres://localhost/feed")
	t.Setenv("SQS_QUEUE_URL", "https://sqs.us-west-2.amazonaws.com/123/fanout")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "push", cfg.FanoutStrategy)
	assert.Equal(t, int64(50000), cfg.CelebrityThreshold)
	assert.Equal(t, 50, cfg.FetchMaxWorkers)
	assert.Equal(t, 1000, cfg.FanoutBatchSize)
	assert.Equal(t, "postgres://localhost/feed", cfg.PostsDBUrl)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timeline.yaml")
	err := os.WriteFile(path, []byte(`
fanout_strategy: hybrid
celebrity_threshold: 1000
timeline_backend: memory
queue_backend: memory
visibility_timeout: 45s
consumer_workers: 4
`), 0o600)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CELEBRITY_THRESHOLD", "2500")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "hybrid", cfg.FanoutStrategy)
	assert.Equal(t, int64(2500), cfg.CelebrityThreshold)
	assert.Equal(t, BackendMemory, cfg.TimelineBackend)
	assert.Equal(t, 45*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, 4, cfg.ConsumerWorkers)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectedError bool
	}{
		{
			name:   "memory backends need no urls",
			mutate: func(c *Config) { c.TimelineBackend = BackendMemory; c.QueueBackend = BackendMemory },
		},
		{
			name:          "unknown timeline backend",
			mutate:        func(c *Config) { c.TimelineBackend = "redis"; c.QueueBackend = BackendMemory },
			expectedError: true,
		},
		{
			name:          "sqs without url",
			mutate:        func(c *Config) { c.TimelineBackend = BackendMemory },
			expectedError: true,
		},
		{
			name: "zero threshold",
			mutate: func(c *Config) {
				c.TimelineBackend = BackendMemory
				c.QueueBackend = BackendMemory
				c.CelebrityThreshold = 0
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigSocialGraph(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TIMELINE_BACKEND", BackendMemory)
	t.Setenv("QUEUE_BACKEND", BackendMemory)
	t.Setenv("SOCIAL_GRAPH_URL", "http://social-graph:8085")
	t.Setenv("SOCIAL_GRAPH_TIMEOUT", "2s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://social-graph:8085", cfg.SocialGraphURL)
	assert.Equal(t, 2*time.Second, cfg.SocialGraphTimeout)
}

func TestValidateMessagesNameTheMissingVariable(t *testing.T) {
	cfg := defaults()
	cfg.TimelineBackend = BackendMemory
	assert.EqualError(t, cfg.Validate(), "SQS_QUEUE_URL is required for the sqs queue backend")

	cfg = defaults()
	cfg.QueueBackend = BackendMemory
	assert.EqualError(t, cfg.Validate(), "SUPABASE_DB_URL is required for the postgres timeline backend")
}
