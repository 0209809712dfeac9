package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zatekoja/radreference/internal/adapters/cache"
	"github.com/zatekoja/radreference/internal/adapters/database"
	"github.com/zatekoja/radreference/internal/adapters/events"
	"github.com/zatekoja/radreference/internal/adapters/search"
	"github.com/zatekoja/radreference/internal/aihelper"
	"github.com/zatekoja/radreference/internal/api/handlers"
	"github.com/zatekoja/radreference/internal/api/middleware"
	"github.com/zatekoja/radreference/internal/api/routes"
	"github.com/zatekoja/radreference/internal/domain/providers"
	"github.com/zatekoja/radreference/internal/domain/repositories"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/gemini"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/openai"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/qubrid"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/redis"
	"github.com/zatekoja/radreference/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/radreference/internal/infrastructure/observability"
	"github.com/zatekoja/radreference/pkg/config"
	"github.com/zatekoja/radreference/pkg/secrets"
)

func main() {

	// Pull provider credentials from Vault into the environment before the
	// config layer reads it. Vault is opt-in via VAULT_ENABLED.
	vaultCtx, vaultCancel := context.WithTimeout(context.Background(), 10*time.Second)
	vaultResult, err := secrets.ApplyVaultSecrets(vaultCtx, secrets.LoadVaultConfigFromEnv(""))
	vaultCancel()
	if err != nil {
		log.Printf("Warning: Failed to load Vault secrets: %v", err)
	} else if vaultResult.Enabled {
		log.Printf("Vault secrets loaded from %s (%d loaded, %d skipped)", vaultResult.Path, vaultResult.Loaded, vaultResult.Skipped)
	}

	// Load configuration

	cfg, err := config.Load()

	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logging
	observability.InitLogger(cfg.OTEL.ServiceName, os.Getenv("APP_ENV"))

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - the application can work without caching
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
		typesenseClient = nil
	} else {
		log.Println("Typesense client initialized successfully")
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for real-time card updates
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize adapters

	userAdapter := database.NewUserAdapter(pgClient)

	baseCardAdapter := database.NewHelperCardAdapter(pgClient)
	var cardAdapter repositories.HelperCardRepository
	if cacheProvider != nil {
		cardAdapter = database.NewCachedHelperCardAdapter(baseCardAdapter, cacheProvider)
		log.Println("Helper card adapter wrapped with caching layer")
	} else {
		cardAdapter = baseCardAdapter
		log.Println("Helper card adapter running without cache (Redis unavailable)")
	}

	var cardIndexer *search.CardIndexAdapter
	if typesenseClient != nil {
		cardIndexer = search.NewCardIndexAdapter(typesenseClient)
		if err := cardIndexer.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}
	}

	// Initialize AI providers. Each backend registers only when its
	// credential is present; the pipeline falls back across whatever is
	// available.
	registry := make(map[string]providers.AIProvider)
	if cfg.AI.OpenAIAPIKey != "" {
		client, err := openai.NewClient(&cfg.AI)
		if err != nil {
			log.Printf("Warning: Failed to initialize OpenAI client: %v", err)
		} else {
			registry[client.Name()] = client
		}
	}
	if cfg.AI.GeminiAPIKey != "" {
		client, err := gemini.NewClient(&cfg.AI)
		if err != nil {
			log.Printf("Warning: Failed to initialize Gemini client: %v", err)
		} else {
			registry[client.Name()] = client
		}
	}
	if cfg.AI.QubridAPIKey != "" {
		client, err := qubrid.NewClient(&cfg.AI)
		if err != nil {
			log.Printf("Warning: Failed to initialize Qubrid client: %v", err)
		} else {
			registry[client.Name()] = client
		}
	}
	if len(registry) == 0 {
		log.Println("Warning: no AI provider credentials configured; card generation will be unavailable")
	}

	// Initialize services

	quotaManager := aihelper.NewQuotaManager(userAdapter, &cfg.AI)

	var indexer aihelper.CardIndexer
	if cardIndexer != nil {
		indexer = cardIndexer
	}
	cardService := aihelper.NewService(cardAdapter, quotaManager, registry, eventBus, indexer, &cfg.AI)

	// Initialize handlers

	var cardSearcher handlers.CardSearcher
	if cardIndexer != nil {
		cardSearcher = cardIndexer
	}
	helperCardHandler := handlers.NewHelperCardHandler(cardService, userAdapter, cardAdapter, cardSearcher)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
		log.Println("Cache middleware initialized successfully")
	}

	// Set up router

	router := routes.NewRouter(
		helperCardHandler,
		sseHandler,
		cacheMiddleware,
		metrics,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Server stopped")
}
