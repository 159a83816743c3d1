package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the backing store is reachable. Satisfied by the
// sqlite store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	chatSvc *service.ChatService,
	budgetSvc *service.BudgetService,
	calorieSvc *service.CalorieService,
	restaurantSvc *service.RestaurantService,
	analyzerSvc *service.AnalyzerService,
	userSvc *service.UserService,
	db Pinger,
	metrics *observability.Metrics,
	logger *zap.Logger,
	jwtSecret string,
	corsOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(db, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 (bearer-token protected) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		// Chat
		r.Post("/chat", chatHandler(chatSvc, userSvc, logger))
		r.Get("/chat/history", chatHistoryHandler(chatSvc, logger))
		r.Delete("/chat/history", chatHistoryClearHandler(chatSvc, logger))
		r.Get("/chat/conversations/{conversationID}", chatConversationHandler(chatSvc, logger))

		// Budget
		r.Post("/budget/transactions", createTransactionHandler(budgetSvc, logger))
		r.Get("/budget/transactions", listTransactionsHandler(budgetSvc, logger))
		r.Put("/budget/transactions/{id}", updateTransactionHandler(budgetSvc, logger))
		r.Delete("/budget/transactions/{id}", deleteTransactionHandler(budgetSvc, logger))
		r.Get("/budget/summary", budgetSummaryHandler(budgetSvc, logger))
		r.Get("/budget/analysis", budgetAnalysisHandler(analyzerSvc, logger))

		// Calories
		r.Post("/calories/entries", createCalorieEntryHandler(calorieSvc, logger))
		r.Get("/calories/entries", listCalorieEntriesHandler(calorieSvc, logger))
		r.Put("/calories/entries/{id}", updateCalorieEntryHandler(calorieSvc, logger))
		r.Delete("/calories/entries/{id}", deleteCalorieEntryHandler(calorieSvc, logger))
		r.Get("/calories/summary", caloriesSummaryHandler(calorieSvc, logger))

		// Restaurants
		r.Get("/restaurants", listRestaurantsHandler(restaurantSvc, logger))
		r.Get("/restaurants/search", searchRestaurantsHandler(restaurantSvc, logger))

		// Users
		r.Get("/users/preferences", getPreferencesHandler(userSvc, logger))
		r.Put("/users/preferences", upsertPreferencesHandler(userSvc, logger))

		// Usage metrics snapshot
		r.Get("/metrics/assistant", assistantMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"service":   "vita-assistant",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func readyzHandler(db Pinger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logger.Error("readiness check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	}
}

func assistantMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAssistantSnapshot())
	}
}
