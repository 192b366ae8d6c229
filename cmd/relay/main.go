package main

import (
	"DeskRelay/internal/adapters/eventhub"
	"DeskRelay/internal/adapters/postgres"
	"DeskRelay/internal/adapters/shellws"
	"DeskRelay/internal/adapters/telegram"
	"DeskRelay/internal/relay"
	"DeskRelay/internal/shared/config"
	"DeskRelay/internal/shared/logger"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	isDevMode := cfg.AppEnv == "dev"
	baseLogger := logger.New(isDevMode, cfg.LogLevel)
	baseLogger.Info().
		Str("app_env", cfg.AppEnv).
		Str("listen_addr", cfg.Relay.ListenAddr).
		Msg("Configuration loaded")

	// 3. Shut down on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Initialize the Event Hub
	hub := eventhub.NewInMemoryHub(&baseLogger)

	// 5. Event recording is optional and rides on Postgres
	var recorder *relay.Recorder
	if cfg.Postgres.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Postgres.URL, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()

		eventLog, err := postgres.NewEventLogRepository(ctx, db, &baseLogger)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize event log repository")
		}

		// Read back once so a broken table fails loudly here instead of
		// at the first flush
		recent, err := eventLog.Recent(ctx, 1)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Event log readback failed")
		}
		baseLogger.Info().Int("entries", len(recent)).Msg("Event log ready")

		recorder = relay.NewRecorder(hub, eventLog, &baseLogger)
	} else {
		baseLogger.Info().Msg("DATABASE_URL not set, event recording disabled")
	}

	// 6. Call and meeting announcements are optional and ride on Telegram
	var forwarder *relay.Forwarder
	if cfg.Telegram.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			baseLogger.Fatal().Err(err).Msg("Failed to initialize Telegram bot API")
		}
		notifier := telegram.NewNotifier(api, cfg.Telegram.ChatID, &baseLogger)
		forwarder = relay.NewForwarder(hub, notifier, &baseLogger)
	} else {
		baseLogger.Info().Msg("TELEGRAM_BOT_TOKEN not set, notifications disabled")
	}

	// 7. Initialize the shell transport and the bridge
	server, err := shellws.NewServer(&cfg.Relay, &baseLogger)
	if err != nil {
		baseLogger.Fatal().Err(err).Msg("Failed to initialize shell endpoint")
	}
	bridge := relay.NewBridge(server, hub, cfg.Relay.RetryInterval, &baseLogger)

	baseLogger.Info().Msg("All services initialized successfully")

	// 8. Run until interrupted
	service := relay.NewService(cfg, server, bridge, recorder, forwarder, &baseLogger)
	if err := service.Run(ctx); err != nil {
		baseLogger.Fatal().Err(err).Msg("Relay service failed")
	}
}
