package handler

import (
	"encoding/json"
	"net/http"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Users — preferences
// ============================================================

func getPreferencesHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/preferences")
		defer span.End()

		userID := UserIDFromContext(ctx)
		prefs, err := svc.GetPreferences(ctx, userID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}

func upsertPreferencesHandler(svc *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/preferences")
		defer span.End()

		userID := UserIDFromContext(ctx)

		var prefs domain.UserPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if _, err := svc.Ensure(ctx, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		updated, err := svc.UpsertPreferences(ctx, userID, &prefs)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}
