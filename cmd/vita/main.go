package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/config"
	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/handler"
	"github.com/halvorsen/vita-assistant-go/internal/infra/cache"
	"github.com/halvorsen/vita-assistant-go/internal/infra/llm"
	"github.com/halvorsen/vita-assistant-go/internal/infra/nutrition"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/infra/resilience"
	"github.com/halvorsen/vita-assistant-go/internal/infra/sqlite"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"go.uber.org/zap"
)

// seedRestaurants populates the recommendation table on an empty database.
var seedRestaurants = []domain.Restaurant{
	{Name: "Trattoria Roma", CuisineType: "italian", PriceLevel: "$$", Rating: 4.6,
		Address: "12 Via Appia", Description: "Handmade pasta and wood-fired pizza.",
		Highlights: []string{"fresh pasta", "wood-fired oven", "outdoor seating"}},
	{Name: "Sakura House", CuisineType: "japanese", PriceLevel: "$$$", Rating: 4.8,
		Address: "88 Cherry Blossom Ln", Description: "Omakase sushi and seasonal small plates.",
		Highlights: []string{"omakase", "sake pairing"}},
	{Name: "El Fuego", CuisineType: "mexican", PriceLevel: "$", Rating: 4.3,
		Address: "5 Agave St", Description: "Street tacos and house-made salsas.",
		Highlights: []string{"al pastor tacos", "fresh salsa bar"}},
	{Name: "Green Bowl", CuisineType: "healthy", PriceLevel: "$$", Rating: 4.5,
		Address: "201 Garden Ave", Description: "Grain bowls, salads, and cold-pressed juices.",
		Highlights: []string{"macro-friendly bowls", "vegan options"}},
	{Name: "Spice Route", CuisineType: "indian", PriceLevel: "$$", Rating: 4.4,
		Address: "47 Saffron Rd", Description: "North Indian curries and tandoor grill.",
		Highlights: []string{"butter chicken", "fresh naan"}},
	{Name: "Golden Dragon", CuisineType: "chinese", PriceLevel: "$$", Rating: 4.2,
		Address: "300 Lantern Way", Description: "Dim sum and Sichuan classics.",
		Highlights: []string{"dim sum cart", "mapo tofu"}},
	{Name: "Le Petit Bistro", CuisineType: "french", PriceLevel: "$$$", Rating: 4.7,
		Address: "9 Rue des Fleurs", Description: "Classic bistro fare with a seasonal menu.",
		Highlights: []string{"duck confit", "wine list"}},
	{Name: "Souvlaki Corner", CuisineType: "greek", PriceLevel: "$", Rating: 4.1,
		Address: "63 Olive St", Description: "Grilled skewers, gyros, and village salads.",
		Highlights: []string{"lamb souvlaki", "house tzatziki"}},
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.String("anthropic_model", cfg.AnthropicModel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "vita-assistant")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Storage ---
	store, err := sqlite.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer store.Close()

	if err := store.SeedRestaurants(context.Background(), seedRestaurants); err != nil {
		logger.Warn("could not seed restaurants", zap.Error(err))
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	llmBreaker := resilience.NewCircuitBreaker("anthropic")
	nutritionBreaker := resilience.NewCircuitBreaker("nutrition-api")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	completer := llm.NewAnthropicClient(
		cfg.AnthropicAPIKey,
		cfg.AnthropicModel,
		int64(cfg.MaxTokens),
		llmBreaker,
		resilienceCfg,
		metrics,
		logger,
	)

	nutritionClient, err := nutrition.New(
		httpClient,
		cfg.NutritionAPIURL,
		cfg.NutritionAPIKey,
		nutritionBreaker,
		resilienceCfg,
		metrics,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to create nutrition client", zap.Error(err))
	}

	// --- Caches ---
	prefsCache := cache.New[*domain.UserPreferences](cfg.CacheTTL)

	// --- Services ---
	classifier := service.NewClassifier(completer, metrics, logger)
	guard := service.NewDuplicateGuard(store, metrics, logger)

	budgetSvc := service.NewBudgetService(store, completer, classifier, guard, metrics, logger)
	calorieSvc := service.NewCalorieService(store, completer, nutritionClient, guard, metrics, logger)
	restaurantSvc := service.NewRestaurantService(store, completer, metrics, logger)
	chatSvc := service.NewChatService(store, completer, budgetSvc, calorieSvc, restaurantSvc, metrics, logger)
	analyzerSvc := service.NewAnalyzerService(store, store, completer, metrics, logger)
	userSvc := service.NewUserService(store, prefsCache, logger)

	// --- Router ---
	router := handler.NewRouter(
		chatSvc, budgetSvc, calorieSvc, restaurantSvc, analyzerSvc, userSvc,
		store, metrics, logger, cfg.JWTSecret, cfg.CORSOrigins,
	)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
