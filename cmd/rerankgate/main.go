package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rankbridge/rerankgate/pkg/cache"
	"github.com/rankbridge/rerankgate/pkg/config"
	handlers "github.com/rankbridge/rerankgate/pkg/handlers/http"
	"github.com/rankbridge/rerankgate/pkg/infra/httpx"
	infraLogger "github.com/rankbridge/rerankgate/pkg/infra/logger"
	"github.com/rankbridge/rerankgate/pkg/infra/voyage"
	"github.com/rankbridge/rerankgate/pkg/middleware"
	"github.com/rankbridge/rerankgate/pkg/server"
	"github.com/rankbridge/rerankgate/pkg/version"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	if cfg.Voyage.APIKey == "" {
		// Keep the process usable locally; rerank calls will answer 500
		// until the credential shows up.
		logger.Warn("VOYAGE_API_KEY not set, rerank requests will fail until configured")
	}

	// Response cache. Redis being down only disables caching.
	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		cacheInstance, err := cache.NewCache(cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
		})
		if err != nil {
			logger.Fatalf("Failed to initialize cache: %v", err)
		}
		defer cacheInstance.Close()
		if err := cacheInstance.Ping(context.Background()); err != nil {
			logger.WithError(err).Warn("redis unreachable, response caching disabled")
			responseCache = cache.NewResponseCache(nil, logger, cfg.Cache.TTL, false)
		} else {
			responseCache = cache.NewResponseCache(cacheInstance, logger, cfg.Cache.TTL, true)
		}
	} else {
		responseCache = cache.NewResponseCache(nil, logger, cfg.Cache.TTL, false)
	}

	// Upstream client
	httpClient := httpx.NewFastHTTPClient(
		httpx.WithTimeout(cfg.Voyage.Timeout),
		httpx.WithUserAgent(fmt.Sprintf("%s/%s", version.AppName, version.Version)),
	)
	breaker := httpx.NewCircuitBreaker("voyage", cfg.Breaker.Timeout, cfg.Breaker.MaxFailures, cfg.Breaker.HalfOpenRequests)
	voyageClient := voyage.NewClient(voyage.Config{
		APIKey:          cfg.Voyage.APIKey,
		BaseURL:         cfg.Voyage.BaseURL,
		Timeout:         cfg.Voyage.Timeout,
		DefaultModel:    cfg.Voyage.DefaultModel,
		AllowedModels:   cfg.Voyage.AllowedModels,
		ReturnDocuments: cfg.Voyage.ReturnDocuments,
		Options:         cfg.Voyage.Options,
	}, httpClient, breaker, logger)

	// middleware
	middlewareTransport := middleware.Transport{
		AuthMiddleware:    middleware.NewAuthMiddleware(logger, cfg.Auth.ServiceKeys),
		MetricsMiddleware: middleware.NewMetricsMiddleware(logger),
		RecoverMiddleware: middleware.NewPanicRecoverMiddleware(logger),
	}

	// Handler Transport
	handlerTransport := handlers.HandlerTransport{
		RerankHandler: handlers.NewRerankHandler(
			logger, voyageClient, responseCache, cfg.Voyage.DefaultModel, cfg.Voyage.AllowedModels,
		),
		ListModelsHandler: handlers.NewListModelsHandler(logger, cfg.Voyage.DefaultModel, cfg.Voyage.AllowedModels),
		GetVersionHandler: handlers.NewGetVersionHandler(logger),
	}

	srv := server.NewGatewayServer(server.GatewayServerDI{
		Config:              cfg,
		Logger:              logger,
		MiddlewareTransport: middlewareTransport,
		HandlerTransport:    handlerTransport,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	fmt.Println("shutting down server...")
	if err := srv.Shutdown(); err != nil {
		fmt.Println("error shutting down server:", err)
		os.Exit(1)
	}
	fmt.Println("server gracefully stopped")
}
