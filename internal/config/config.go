// Package config loads service configuration from an optional YAML file with
// environment variable overrides (INTERVIEWD_* keys).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     Server     `yaml:"server"`
	Session    Session    `yaml:"session"`
	Dispatch   Dispatch   `yaml:"dispatch"`
	LLM        LLM        `yaml:"llm"`
	Audio      Audio      `yaml:"audio"`
	Auth       Auth       `yaml:"auth"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
	LogLevel   string     `yaml:"log_level"`
}

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Session struct {
	TTL time.Duration `yaml:"ttl"`
}

type Dispatch struct {
	Workers        int           `yaml:"workers"` // per queue class
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	HardLimit      time.Duration `yaml:"hard_limit"`
	ResultTTL      time.Duration `yaml:"result_ttl"`
	TranscribeWait time.Duration `yaml:"transcribe_wait"`
}

type LLM struct {
	Provider    string  `yaml:"provider"` // googleai or fake
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
}

type Audio struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	Voice         string `yaml:"voice"`
	Engine        string `yaml:"engine"`
	SpeechRate    string `yaml:"speech_rate"`
	CartesiaURL   string `yaml:"cartesia_url"`
	CartesiaKey   string `yaml:"cartesia_key"`
	CartesiaModel string `yaml:"cartesia_model"`
}

type Auth struct {
	Secret string `yaml:"secret"`
}

type Checkpoint struct {
	Dir string        `yaml:"dir"` // empty selects the in-memory store
	TTL time.Duration `yaml:"ttl"`
}

func Default() Config {
	return Config{
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 15 * time.Second,
		},
		Session: Session{TTL: time.Hour},
		Dispatch: Dispatch{
			Workers:        4,
			MaxAttempts:    3,
			BackoffBase:    500 * time.Millisecond,
			BackoffCap:     30 * time.Second,
			HardLimit:      2 * time.Minute,
			ResultTTL:      time.Hour,
			TranscribeWait: 30 * time.Second,
		},
		LLM: LLM{
			Provider:    "googleai",
			Model:       "gemini-2.0-flash",
			Temperature: 0.3,
		},
		Audio: Audio{
			Region:        "us-east-1",
			Voice:         "Joanna",
			Engine:        "neural",
			SpeechRate:    "92%",
			CartesiaModel: "ink-whisper",
		},
		Checkpoint: Checkpoint{TTL: time.Hour},
		LogLevel:   "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults only
		case err != nil:
			return cfg, errors.Wrapf(err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Dispatch.Workers < 1 {
		cfg.Dispatch.Workers = 1
	}
	if cfg.Dispatch.MaxAttempts < 1 {
		cfg.Dispatch.MaxAttempts = 1
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("INTERVIEWD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INTERVIEWD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("INTERVIEWD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INTERVIEWD_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("INTERVIEWD_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("INTERVIEWD_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Audio.Region = v
	}
	if v := os.Getenv("CARTESIA_API_KEY"); v != "" {
		cfg.Audio.CartesiaKey = v
	}
	if v := os.Getenv("INTERVIEWD_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("INTERVIEWD_CHECKPOINT_DIR"); v != "" {
		cfg.Checkpoint.Dir = v
	}
}
