// Package config resolves runtime configuration for both binaries:
// defaults, then an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTPAddr string

	DatabaseURL string
	RedisURL    string

	ParamPrefix string

	OpenAIModel      string
	OpenAISecretName string
	SendGridSecret   string
	TwilioAccountSID string
	TwilioSecretName string
	PlatformBaseURL  string
	PlatformTokenURL string

	WorkerPoll      time.Duration
	ScanInterval    time.Duration
	ShutdownTimeout time.Duration
}

// configFile mirrors the YAML schema of configs/default.yaml.
type configFile struct {
	Service struct {
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		ParamPrefix string `yaml:"param_prefix"`
	} `yaml:"dependencies"`
	OpenAI struct {
		Model  string `yaml:"model"`
		Secret string `yaml:"secret"`
	} `yaml:"openai"`
	Twilio struct {
		AccountSID string `yaml:"account_sid"`
		Secret     string `yaml:"secret"`
	} `yaml:"twilio"`
	SendGrid struct {
		Secret string `yaml:"secret"`
	} `yaml:"sendgrid"`
	Platform struct {
		BaseURL  string `yaml:"base_url"`
		TokenURL string `yaml:"token_url"`
	} `yaml:"platform"`
}

// Load resolves configuration in priority order: defaults, file, env.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPAddr:         ":8080",
		ParamPrefix:      "/recruit-agent",
		OpenAIModel:      "gpt-4o-mini",
		OpenAISecretName: "openai/api_key",
		SendGridSecret:   "sendgrid/api_key",
		TwilioSecretName: "twilio/auth_token",
		WorkerPoll:       time.Second,
		ScanInterval:     24 * time.Hour,
		ShutdownTimeout:  15 * time.Second,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, unmarshalErr)
		}
		if f.Service.HTTPAddr != "" {
			cfg.HTTPAddr = f.Service.HTTPAddr
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.ParamPrefix != "" {
			cfg.ParamPrefix = f.Dependencies.ParamPrefix
		}
		if f.OpenAI.Model != "" {
			cfg.OpenAIModel = f.OpenAI.Model
		}
		if f.OpenAI.Secret != "" {
			cfg.OpenAISecretName = f.OpenAI.Secret
		}
		if f.Twilio.AccountSID != "" {
			cfg.TwilioAccountSID = f.Twilio.AccountSID
		}
		if f.Twilio.Secret != "" {
			cfg.TwilioSecretName = f.Twilio.Secret
		}
		if f.SendGrid.Secret != "" {
			cfg.SendGridSecret = f.SendGrid.Secret
		}
		if f.Platform.BaseURL != "" {
			cfg.PlatformBaseURL = f.Platform.BaseURL
		}
		if f.Platform.TokenURL != "" {
			cfg.PlatformTokenURL = f.Platform.TokenURL
		}
	}

	cfg.HTTPAddr = envOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ParamPrefix = envOrDefault("PARAM_PREFIX", cfg.ParamPrefix)
	cfg.OpenAIModel = envOrDefault("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.OpenAISecretName = envOrDefault("OPENAI_SECRET", cfg.OpenAISecretName)
	cfg.SendGridSecret = envOrDefault("SENDGRID_SECRET", cfg.SendGridSecret)
	cfg.TwilioAccountSID = envOrDefault("TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID)
	cfg.TwilioSecretName = envOrDefault("TWILIO_SECRET", cfg.TwilioSecretName)
	cfg.PlatformBaseURL = envOrDefault("PLATFORM_BASE_URL", cfg.PlatformBaseURL)
	cfg.PlatformTokenURL = envOrDefault("PLATFORM_TOKEN_URL", cfg.PlatformTokenURL)
	cfg.WorkerPoll = time.Duration(envInt("WORKER_POLL_SECONDS", int(cfg.WorkerPoll.Seconds()))) * time.Second
	cfg.ScanInterval = time.Duration(envInt("SCAN_INTERVAL_HOURS", int(cfg.ScanInterval.Hours()))) * time.Hour
	cfg.ShutdownTimeout = time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", int(cfg.ShutdownTimeout.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("config: missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("config: missing REDIS_URL")
	}
	if cfg.PlatformBaseURL == "" {
		return Config{}, fmt.Errorf("config: missing PLATFORM_BASE_URL")
	}
	if cfg.PlatformTokenURL == "" {
		return Config{}, fmt.Errorf("config: missing PLATFORM_TOKEN_URL")
	}
	if cfg.TwilioAccountSID == "" {
		return Config{}, fmt.Errorf("config: missing TWILIO_ACCOUNT_SID")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty or invalid
// values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
