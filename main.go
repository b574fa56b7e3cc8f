package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfolio/config"
	"coinfolio/internal/api"
	"coinfolio/internal/auth"
	"coinfolio/internal/database"
	"coinfolio/internal/events"
	"coinfolio/internal/logging"
	"coinfolio/internal/portfolio"
	"coinfolio/internal/pricing"
	"coinfolio/internal/vault"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", "error", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		Component:  "coinfolio",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logging.SetDefault(logger)

	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Database
	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	repo := database.NewRepository(db)

	// Secrets come from Vault when enabled, local config otherwise
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal("Failed to create vault client", "error", err)
	}
	if !vaultClient.IsEnabled() {
		vaultClient.SeedLocal(vault.ServiceSecrets{
			JWTSecret:        cfg.AuthConfig.JWTSecret,
			MarketDataAPIKey: cfg.PricingConfig.APIKey,
			DBPassword:       cfg.DatabaseConfig.Password,
		})
	}
	secrets, err := vaultClient.ServiceSecrets(ctx)
	if err != nil {
		logger.Fatal("Failed to load service secrets", "error", err)
	}
	if secrets.JWTSecret == "" {
		logger.Fatal("JWT secret is not configured")
	}

	// Authentication
	jwtManager := auth.NewJWTManager(
		secrets.JWTSecret,
		cfg.AuthConfig.AccessTokenDuration,
		cfg.AuthConfig.RefreshTokenDuration,
	)
	passwords := auth.NewPasswordManager(auth.DefaultBcryptCost, cfg.AuthConfig.MinPasswordLength)
	authService := auth.NewService(repo, jwtManager, passwords, zlog)

	// Pricing: market-data adapter behind a TTL cache, with an optional
	// shared Redis tier
	priceClient := pricing.NewClient(pricing.ClientConfig{
		BaseURL:        cfg.PricingConfig.BaseURL,
		APIKey:         secrets.MarketDataAPIKey,
		RequestTimeout: cfg.PricingConfig.RequestTimeout,
		RateLimitDelay: cfg.PricingConfig.RateLimitDelay,
	}, zlog)

	quoteCache := pricing.NewQuoteCache(cfg.PricingConfig.CacheTTL, nil)

	var sharedCache *pricing.RedisQuoteCache
	if cfg.RedisConfig.Enabled {
		sharedCache = pricing.NewRedisQuoteCache(pricing.RedisConfig{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, cfg.PricingConfig.CacheTTL, zlog)
		defer sharedCache.Close()
	}

	priceSource := pricing.NewSource(priceClient, quoteCache, sharedCache, zlog)

	// Portfolio valuation engine
	portfolioService := portfolio.NewService(repo, priceSource, nil, zlog)

	// Events and HTTP API
	eventBus := events.NewEventBus()

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		ProductionMode: cfg.ServerConfig.ProductionMode,
		ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
	}, repo, eventBus, portfolioService, priceSource, authService, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Block until a shutdown signal or server failure
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}

	logger.Info("Service stopped")
}
