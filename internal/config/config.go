package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadConfig reads an optional .env file from the working directory and
// then parses the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, ErrConfig(err.Error())
	}
	if cfg.VoiceConnectTimeout <= 0 {
		return nil, ErrConfig("VOICE_CONNECT_TIMEOUT must be positive")
	}
	if cfg.CommandRate <= 0 || cfg.CommandBurst < 1 {
		return nil, ErrConfig("COMMAND_RATE and COMMAND_BURST must be positive")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
