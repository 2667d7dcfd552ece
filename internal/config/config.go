package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no provider credential is configured.
// The server must not start without one.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY not found in environment or .env file")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Addr        string
	TurnTimeout time.Duration // zero means no timeout
	LogLevel    string
}

var envKeys = map[string]string{
	"api_key":      "GROQ_API_KEY",
	"base_url":     "GROQ_BASE_URL",
	"model":        "GROQ_MODEL",
	"addr":         "CHAT_ADDR",
	"turn_timeout": "CHAT_TURN_TIMEOUT",
	"log_level":    "LOG_LEVEL",
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables that are already set, then resolves the config from
// the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetDefault("base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("model", "llama-3.1-8b-instant")
	v.SetDefault("addr", "127.0.0.1:8000")
	v.SetDefault("turn_timeout", "0s")
	v.SetDefault("log_level", "info")
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	timeout, err := time.ParseDuration(v.GetString("turn_timeout"))
	if err != nil {
		return nil, fmt.Errorf("parsing CHAT_TURN_TIMEOUT: %w", err)
	}

	cfg := &Config{
		APIKey:      v.GetString("api_key"),
		BaseURL:     v.GetString("base_url"),
		Model:       v.GetString("model"),
		Addr:        v.GetString("addr"),
		TurnTimeout: timeout,
		LogLevel:    v.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("CHAT_TURN_TIMEOUT must not be negative, got %s", c.TurnTimeout)
	}
	return nil
}
