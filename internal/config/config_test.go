// Package config_test tests the configuration loading for the voicefx-service.
package config_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/voicefx-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlData = `
[server]
port = 9000
cors_origins = ["http://localhost:3000"]
max_upload_mb = 10

[processing]
max_concurrent = 4
prefilter_reduce = 0.3

[paths]
output_dir = "/srv/out"

[nats]
enabled = true
url = "nats://nats:4222"
job_subject = "jobs.voice"

[speech]
tts_url = "http://tts:8000"
whisper_model = "whisper-large"
`

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestParse_OverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(tomlData), env(nil))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, int64(4), cfg.Processing.MaxConcurrent)
	assert.InEpsilon(t, 0.3, cfg.Processing.PrefilterReduce, 1e-9)
	assert.Equal(t, "/srv/out", cfg.Paths.OutputDir)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "jobs.voice", cfg.NATS.JobSubject)
	assert.Equal(t, "http://tts:8000", cfg.Speech.TTSURL)
	assert.Equal(t, "whisper-large", cfg.Speech.WhisperModel)

	// Untouched keys keep their defaults.
	assert.Equal(t, "raw_audio", cfg.Paths.RawDir)
	assert.Equal(t, "VOICEFX_AUDIO", cfg.NATS.ObjectStoreBucket)
	assert.Equal(t, 60*time.Second, cfg.Speech.Timeout())
	require.NoError(t, cfg.Validate())
}

func TestParse_Environment(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(tomlData), env(map[string]string{
		config.EnvOpenAIAPIKey:     "sk-test",
		config.EnvElevenLabsAPIKey: "xi-test",
		config.EnvNATSURL:          "nats://other:4222",
		config.EnvPort:             "8123",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Speech.OpenAIAPIKey)
	assert.Equal(t, "xi-test", cfg.Speech.ElevenLabsAPIKey)
	assert.Empty(t, cfg.Speech.TranslateAPIKey)
	assert.Equal(t, "nats://other:4222", cfg.NATS.URL)
	assert.Equal(t, "0.0.0.0:8123", cfg.Server.Addr())
}

func TestParse_SecretsIgnoredInFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte("[speech]\nOpenAIAPIKey = \"leak\"\n"), env(nil))
	require.NoError(t, err)
	assert.Empty(t, cfg.Speech.OpenAIAPIKey)
}

func TestParse_InvalidTOML(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte("[server\nport = "), env(nil))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "voicefx.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, config.Default().Validate())

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "port", mutate: func(c *config.Config) { c.Server.Port = 0 }},
		{name: "rate", mutate: func(c *config.Config) { c.Server.RateLimitRPS = 0 }},
		{name: "burst", mutate: func(c *config.Config) { c.Server.RateLimitBurst = -1 }},
		{name: "upload", mutate: func(c *config.Config) { c.Server.MaxUploadMB = 0 }},
		{name: "concurrency", mutate: func(c *config.Config) { c.Processing.MaxConcurrent = -2 }},
		{name: "prefilter", mutate: func(c *config.Config) { c.Processing.PrefilterReduce = 1.5 }},
		{name: "negative delay", mutate: func(c *config.Config) { c.Processing.DefaultDelaySeconds = -0.5 }},
		{name: "long delay", mutate: func(c *config.Config) { c.Processing.DefaultDelaySeconds = 60 }},
		{name: "nan delay", mutate: func(c *config.Config) { c.Processing.DefaultDelaySeconds = math.NaN() }},
		{name: "zero repeat", mutate: func(c *config.Config) { c.Processing.DefaultRepeat = 0 }},
		{name: "many repeats", mutate: func(c *config.Config) { c.Processing.DefaultRepeat = 500 }},
		{name: "paths", mutate: func(c *config.Config) { c.Paths.OutputDir = "" }},
		{name: "nats", mutate: func(c *config.Config) { c.NATS.Enabled = true; c.NATS.JobSubject = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			tc.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}
}
