package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// RelayConfig holds the shell endpoint and bridge settings.
type RelayConfig struct {
	ListenAddr    string
	ShellToken    string
	RetryInterval time.Duration
	DefaultTitle  string
}

// PostgresConfig holds the optional event log settings.
// An empty URL disables the recorder.
type PostgresConfig struct {
	URL string
}

// TelegramConfig holds the optional notification forwarder settings.
// Both fields must be set to enable the forwarder.
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// Config holds all configuration for the application.
type Config struct {
	AppEnv   string
	LogLevel string
	Relay    RelayConfig
	Postgres PostgresConfig
	Telegram TelegramConfig
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {

	// 1. Load .env file into the process environment
	// We check for the error to be sure the file was found.
	if err := godotenv.Load(); err != nil {
		// If the file just doesn't exist, that's fine in prod.
		// But if it's any other error, we should know.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
		// If .env is not found, we just proceed,
		// relying on OS-set env vars.
	}

	// 2. Explicitly bind viper keys to env var names
	bindings := [][2]string{
		{"app.env", "APP_ENV"},
		{"log.level", "LOG_LEVEL"},
		{"relay.listen_addr", "RELAY_LISTEN_ADDR"},
		{"relay.shell_token", "RELAY_SHELL_TOKEN"},
		{"relay.retry_interval", "RELAY_RETRY_INTERVAL"},
		{"relay.default_title", "RELAY_DEFAULT_TITLE"},
		{"postgres.url", "DATABASE_URL"},
		{"telegram.bot_token", "TELEGRAM_BOT_TOKEN"},
		{"telegram.chat_id", "TELEGRAM_CHAT_ID"},
	}
	for _, b := range bindings {
		if err := viper.BindEnv(b[0], b[1]); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", b[0], err)
		}
	}

	// 3. Set defaults
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("relay.listen_addr", "127.0.0.1:17451")
	viper.SetDefault("relay.retry_interval", "1s")

	// 4. Get values directly from viper
	cfg := Config{
		AppEnv:   viper.GetString("app.env"),
		LogLevel: viper.GetString("log.level"),
		Relay: RelayConfig{
			ListenAddr:    viper.GetString("relay.listen_addr"),
			ShellToken:    viper.GetString("relay.shell_token"),
			RetryInterval: viper.GetDuration("relay.retry_interval"),
			DefaultTitle:  viper.GetString("relay.default_title"),
		},
		Postgres: PostgresConfig{
			URL: viper.GetString("postgres.url"),
		},
		Telegram: TelegramConfig{
			BotToken: viper.GetString("telegram.bot_token"),
			ChatID:   viper.GetInt64("telegram.chat_id"),
		},
	}

	// 5. Validation
	if cfg.Relay.ListenAddr == "" {
		return nil, errors.New("RELAY_LISTEN_ADDR must not be empty")
	}
	if cfg.Relay.RetryInterval <= 0 {
		return nil, fmt.Errorf("RELAY_RETRY_INTERVAL must be a positive duration, got %q", viper.GetString("relay.retry_interval"))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == 0 {
		return nil, errors.New("TELEGRAM_CHAT_ID must be set when TELEGRAM_BOT_TOKEN is")
	}
	if cfg.Telegram.BotToken == "" && cfg.Telegram.ChatID != 0 {
		return nil, errors.New("TELEGRAM_BOT_TOKEN must be set when TELEGRAM_CHAT_ID is")
	}

	return &cfg, nil
}
