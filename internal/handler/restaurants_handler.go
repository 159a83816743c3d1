package handler

import (
	"net/http"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Restaurants — browsing and search
// ============================================================

func listRestaurantsHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/restaurants")
		defer span.End()

		cuisine := r.URL.Query().Get("cuisine")
		priceLevel := r.URL.Query().Get("price_level")
		limit := parseLimit(r, 0)

		restaurants, err := svc.List(ctx, cuisine, priceLevel, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if restaurants == nil {
			restaurants = []domain.Restaurant{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"restaurants": restaurants})
	}
}

func searchRestaurantsHandler(svc *service.RestaurantService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/restaurants/search")
		defer span.End()

		query := r.URL.Query().Get("q")
		limit := parseLimit(r, 0)

		restaurants, err := svc.Search(ctx, query, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if restaurants == nil {
			restaurants = []domain.Restaurant{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"restaurants": restaurants})
	}
}
