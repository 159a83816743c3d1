package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Calories — food entries and nutrition summary
// ============================================================

func createCalorieEntryHandler(svc *service.CalorieService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/calories/entries")
		defer span.End()

		userID := UserIDFromContext(ctx)

		var req struct {
			FoodItem  string  `json:"food_item"`
			Calories  int     `json:"calories,omitempty"`
			CarbsG    float64 `json:"carbs,omitempty"`
			ProteinG  float64 `json:"protein,omitempty"`
			FatG      float64 `json:"fat,omitempty"`
			Quantity  float64 `json:"quantity,omitempty"`
			Unit      string  `json:"unit,omitempty"`
			Timestamp string  `json:"timestamp,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		item := &domain.ConsumedItem{
			FoodItem: req.FoodItem,
			Calories: req.Calories,
			CarbsG:   req.CarbsG,
			ProteinG: req.ProteinG,
			FatG:     req.FatG,
			Quantity: req.Quantity,
			Unit:     req.Unit,
		}
		if req.Timestamp != "" {
			t, err := time.Parse(time.RFC3339, req.Timestamp)
			if err != nil {
				writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
				return
			}
			item.Timestamp = t
		}

		result, err := svc.LogEntry(ctx, userID, item)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// A suppressed duplicate returns the existing entry, nothing created.
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
	}
}

func listCalorieEntriesHandler(svc *service.CalorieService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/calories/entries")
		defer span.End()

		userID := UserIDFromContext(ctx)
		period, monthSpec := parsePeriod(r)

		entries, err := svc.ListEntries(ctx, userID, period, monthSpec, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if entries == nil {
			entries = []domain.ConsumedItem{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func updateCalorieEntryHandler(svc *service.CalorieService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/calories/entries/{id}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id, err := parseIDParam(r, "id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var patch domain.ConsumedItemPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateEntry(ctx, userID, id, patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "entry updated"})
	}
}

func deleteCalorieEntryHandler(svc *service.CalorieService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/calories/entries/{id}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id, err := parseIDParam(r, "id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.DeleteEntry(ctx, userID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func caloriesSummaryHandler(svc *service.CalorieService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/calories/summary")
		defer span.End()

		userID := UserIDFromContext(ctx)
		period, monthSpec := parsePeriod(r)

		summary, err := svc.Summary(ctx, userID, period, monthSpec, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}
