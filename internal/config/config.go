package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   Server
	Postgres Postgres
	Redis    Redis
	Deals    Deals
	Benefits Benefits
	Bot      Bot
}

type Bot struct {
	Enabled bool   `env:"BOT_ENABLED" envDefault:"false"`
	Token   string `env:"BOT_TOKEN"`
	ChatID  int64  `env:"BOT_CHAT_ID"`
}

type Benefits struct {
	BaseURL string `env:"BENEFITS_BASE_URL,notEmpty"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	return config, nil
}
