package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/stripe/stripe-go/v72"
	"github.com/vladimiradmaev/diabetes-companion/internal/api"
	"github.com/vladimiradmaev/diabetes-companion/internal/auth"
	"github.com/vladimiradmaev/diabetes-companion/internal/billing"
	"github.com/vladimiradmaev/diabetes-companion/internal/config"
	"github.com/vladimiradmaev/diabetes-companion/internal/database"
	"github.com/vladimiradmaev/diabetes-companion/internal/entitlement"
	"github.com/vladimiradmaev/diabetes-companion/internal/gate"
	"github.com/vladimiradmaev/diabetes-companion/internal/logger"
	"github.com/vladimiradmaev/diabetes-companion/internal/repository"
	"github.com/vladimiradmaev/diabetes-companion/internal/server"
	"github.com/vladimiradmaev/diabetes-companion/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	log, closer, err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		logger.Fatal("Failed to initialize logger", "error", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	log.Info("Starting Diabetes Companion API...")

	db, err := database.NewPostgresDB(cfg.DB, log)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close(db)

	usage := repository.NewUsageRepository(db)
	subscriptions := repository.NewSubscriptionRepository(db)
	verifier := newVerifier(cfg.Auth)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := entitlement.NewResolver(verifier, subscriptions, usage, log)
	deps := api.Deps{
		Gate:         gate.New(resolver, usage, log),
		Verifier:     verifier,
		Entitlements: resolver,
		Logger:       log,
	}

	var (
		chat   services.ChatProvider
		vision services.VisionProvider
	)
	if cfg.AI.OpenAIAPIKey != "" {
		openai := services.NewOpenAIProvider(cfg.AI.OpenAIAPIKey, "", cfg.AI.ChatModel, cfg.AI.VisionModel)
		chat, vision = openai, openai
	} else {
		log.Warn("OPENAI_API_KEY is not set, /ai-chat will answer config_error")
	}
	if cfg.AI.VisionProvider == "gemini" {
		vision = nil
		if cfg.AI.GeminiAPIKey != "" {
			gemini, err := services.NewGeminiProvider(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
			if err != nil {
				logger.Fatal("Failed to create Gemini client", "error", err)
			}
			defer gemini.Close()
			vision = gemini
		}
	}
	if vision == nil {
		log.Warn("No vision provider configured, /ai-vision will answer config_error",
			"provider", cfg.AI.VisionProvider)
	}

	ai := services.NewAIService(chat, vision)
	if chat != nil {
		deps.Chat = ai
	}
	if vision != nil {
		deps.Vision = ai
	}

	if cfg.Stripe.SecretKey != "" {
		stripe.Key = cfg.Stripe.SecretKey
	}
	deps.Billing = billing.NewProcessor(cfg.Stripe.WebhookSecret, subscriptions, log)

	handlers := api.NewHandlers(deps)
	srv := server.NewServer(cfg.HTTP, api.NewRouter(handlers, cfg.HTTP.AllowedOrigins), log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server stopped with error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
	log.Info("Diabetes Companion API stopped")
}

func newVerifier(c config.AuthConfig) *auth.JWTVerifier {
	return auth.NewJWTVerifier(c.JWTSecret, c.Issuer)
}
