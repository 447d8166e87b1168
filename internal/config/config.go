// Package config содержит логику чтения конфигурации бота DEALHUNTER.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultTelegramAPIURL = "https://api.telegram.org"
	defaultDisplayLimit   = 3
	defaultEnvironment    = "development"
)

var (
	// ErrMissingToken возвращается, если не задан токен бота.
	ErrMissingToken = errors.New("telegram bot token is required")
	// ErrInvalidDisplayLimit возвращается при неположительном лимите выдачи.
	ErrInvalidDisplayLimit = errors.New("deal display limit must be positive")
)

// Config содержит параметры конфигурации бота.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	BotUsername    string `env:"BOT_USERNAME"`
	CatalogPath    string `env:"CATALOG_PATH"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RedisURL       string `env:"REDIS_URL"`
	DisplayLimit   int    `env:"DEAL_DISPLAY_LIMIT"`
	Environment    string `env:"APP_ENV"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	fromEnv := &Config{}
	if err := env.Parse(fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.TelegramToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.TelegramAPIURL, "api", defaultTelegramAPIURL, "telegram bot API base URL")
	flag.StringVar(&cfg.WebhookURL, "w", "", "public webhook URL to register on startup")
	flag.StringVar(&cfg.WebhookSecret, "s", "", "webhook secret token")
	flag.StringVar(&cfg.BotUsername, "u", "", "bot username without @")
	flag.StringVar(&cfg.CatalogPath, "c", "", "path to catalog YAML file")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.RedisURL, "r", "", "redis URL for update deduplication")
	flag.IntVar(&cfg.DisplayLimit, "l", defaultDisplayLimit, "maximum number of deals per reply")
	flag.StringVar(&cfg.Environment, "e", defaultEnvironment, "application environment")

	flag.Parse()

	overrideString(&cfg.RunAddress, fromEnv.RunAddress)
	overrideString(&cfg.TelegramToken, fromEnv.TelegramToken)
	overrideString(&cfg.TelegramAPIURL, fromEnv.TelegramAPIURL)
	overrideString(&cfg.WebhookURL, fromEnv.WebhookURL)
	overrideString(&cfg.WebhookSecret, fromEnv.WebhookSecret)
	overrideString(&cfg.BotUsername, fromEnv.BotUsername)
	overrideString(&cfg.CatalogPath, fromEnv.CatalogPath)
	overrideString(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	overrideString(&cfg.RedisURL, fromEnv.RedisURL)
	overrideString(&cfg.Environment, fromEnv.Environment)
	if fromEnv.DisplayLimit != 0 {
		cfg.DisplayLimit = fromEnv.DisplayLimit
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.TelegramAPIURL == "" {
		cfg.TelegramAPIURL = defaultTelegramAPIURL
	}

	return cfg, nil
}

func overrideString(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

// Validate проверяет обязательные параметры.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return ErrMissingToken
	}
	if c.DisplayLimit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidDisplayLimit, c.DisplayLimit)
	}
	return nil
}

// IsProduction сообщает, запущен ли бот в продакшн-окружении.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
