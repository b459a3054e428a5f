// Package config provides the configuration structure for the voicefx-service.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/voicefx-service/internal/effects"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Environment variables read on top of the TOML file. Secrets are never
// read from TOML.
const (
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvElevenLabsAPIKey = "ELEVENLABS_API_KEY"
	EnvTranslateAPIKey  = "LIBRETRANSLATE_API_KEY"
	EnvNATSURL          = "NATS_URL"
	EnvPort             = "PORT"
)

const errFmtField = "%w: %s %s"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host                     string   `toml:"host"`
	Port                     int      `toml:"port"`
	CORSOrigins              []string `toml:"cors_origins"`
	RateLimitRPS             float64  `toml:"rate_limit_rps"`
	RateLimitBurst           int      `toml:"rate_limit_burst"`
	MaxUploadMB              int64    `toml:"max_upload_mb"`
	ReadHeaderTimeoutSeconds int      `toml:"read_header_timeout_seconds"`
}

// ProcessingConfig holds the pipeline settings.
type ProcessingConfig struct {
	MaxConcurrent       int64   `toml:"max_concurrent"`
	PrefilterReduce     float64 `toml:"prefilter_reduce"`
	DefaultDelaySeconds float64 `toml:"default_delay_seconds"`
	DefaultRepeat       int     `toml:"default_repeat"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
	RawDir      string `toml:"raw_dir"`
}

// NATSConfig holds the configuration for the optional job worker.
type NATSConfig struct {
	Enabled           bool   `toml:"enabled"`
	URL               string `toml:"url"`
	JobSubject        string `toml:"job_subject"`
	QueueGroup        string `toml:"queue_group"`
	ObjectStoreBucket string `toml:"object_store_bucket"`
}

// SpeechConfig holds the remote speech service endpoints.
type SpeechConfig struct {
	TTSURL                 string `toml:"tts_url"`
	TimeoutSeconds         int    `toml:"tts_timeout_seconds"`
	TranslateURL           string `toml:"translate_url"`
	WhisperURL             string `toml:"whisper_url"`
	WhisperModel           string `toml:"whisper_model"`
	ElevenLabsURL          string `toml:"elevenlabs_url"`
	ElevenLabsDefaultVoice string `toml:"elevenlabs_default_voice"`
	ElevenLabsModel        string `toml:"elevenlabs_model"`

	OpenAIAPIKey     string `toml:"-"`
	ElevenLabsAPIKey string `toml:"-"`
	TranslateAPIKey  string `toml:"-"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Processing ProcessingConfig `toml:"processing"`
	Paths      PathsConfig      `toml:"paths"`
	NATS       NATSConfig       `toml:"nats"`
	Speech     SpeechConfig     `toml:"speech"`
}

// Default returns a configuration that runs locally without a config file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     8000,
			CORSOrigins:              []string{"*"},
			RateLimitRPS:             10,
			RateLimitBurst:           20,
			MaxUploadMB:              50,
			ReadHeaderTimeoutSeconds: 10,
		},
		Processing: ProcessingConfig{
			PrefilterReduce:     0.5,
			DefaultDelaySeconds: 0.2,
			DefaultRepeat:       3,
		},
		Paths: PathsConfig{
			BaseLogsDir: "logs",
			OutputDir:   "outputs",
			RawDir:      "raw_audio",
		},
		NATS: NATSConfig{
			URL:               "nats://127.0.0.1:4222",
			JobSubject:        "voicefx.jobs.transform",
			QueueGroup:        "voicefx-workers",
			ObjectStoreBucket: "VOICEFX_AUDIO",
		},
		Speech: SpeechConfig{
			TimeoutSeconds:  60,
			TranslateURL:    "http://127.0.0.1:5000",
			WhisperModel:    "whisper-1",
			ElevenLabsModel: "eleven_multilingual_v2",
		},
	}
}

// Load reads the project configuration through configurator on top of the
// defaults, then applies the environment.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)

	return cfg, nil
}

// LoadFile reads a local TOML file on top of the defaults, then applies the
// environment.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, os.Getenv)
}

// Parse decodes TOML on top of the defaults and applies getenv.
func Parse(data []byte, getenv func(string) string) (*Config, error) {
	cfg := Default()

	err := toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyEnv(getenv)

	return cfg, nil
}

// ApplyEnv copies secrets and the deployment overrides from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.Speech.OpenAIAPIKey = getenv(EnvOpenAIAPIKey)
	c.Speech.ElevenLabsAPIKey = getenv(EnvElevenLabsAPIKey)
	c.Speech.TranslateAPIKey = getenv(EnvTranslateAPIKey)

	url := getenv(EnvNATSURL)
	if url != "" {
		c.NATS.URL = url
	}

	port, err := strconv.Atoi(getenv(EnvPort))
	if err == nil {
		c.Server.Port = port
	}
}

// Validate checks the values the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "server.port", "must be in 1..65535")
	case c.Server.RateLimitRPS <= 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "server.rate_limit_rps", "must be positive")
	case c.Server.RateLimitBurst <= 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "server.rate_limit_burst", "must be positive")
	case c.Server.MaxUploadMB <= 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "server.max_upload_mb", "must be positive")
	case c.Processing.MaxConcurrent < 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "processing.max_concurrent", "cannot be negative")
	case c.Processing.PrefilterReduce < 0 || c.Processing.PrefilterReduce > 1:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "processing.prefilter_reduce", "must be in 0..1")
	case !(c.Processing.DefaultDelaySeconds >= 0 && c.Processing.DefaultDelaySeconds <= effects.MaxDelaySeconds):
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "processing.default_delay_seconds",
			fmt.Sprintf("must be in 0..%g", effects.MaxDelaySeconds))
	case c.Processing.DefaultRepeat < 1 || c.Processing.DefaultRepeat > effects.MaxRepeat:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "processing.default_repeat",
			fmt.Sprintf("must be in 1..%d", effects.MaxRepeat))
	case c.Paths.OutputDir == "" || c.Paths.RawDir == "":
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "paths", "output_dir and raw_dir are required")
	case c.NATS.Enabled && (c.NATS.URL == "" || c.NATS.JobSubject == "" || c.NATS.ObjectStoreBucket == ""):
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "nats", "url, job_subject and object_store_bucket are required when enabled")
	}

	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// MaxUploadBytes is the multipart body limit.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// ReadHeaderTimeout is the header read deadline.
func (s ServerConfig) ReadHeaderTimeout() time.Duration {
	return time.Duration(s.ReadHeaderTimeoutSeconds) * time.Second
}

// Timeout is the per-call deadline for the remote speech services.
func (s SpeechConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}
