package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/halvorsen/vita-assistant-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePeriod reads the period and month query parameters. A month parameter
// without an explicit period implies a specific-month window; anything
// unrecognized falls back to monthly.
func parsePeriod(r *http.Request) (domain.Period, string) {
	period := domain.Period(r.URL.Query().Get("period"))
	monthSpec := r.URL.Query().Get("month")

	switch period {
	case domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly,
		domain.PeriodYearly, domain.PeriodSpecificMonth:
	case "":
		if monthSpec != "" {
			period = domain.PeriodSpecificMonth
		} else {
			period = domain.PeriodMonthly
		}
	default:
		period = domain.PeriodMonthly
	}
	return period, monthSpec
}

// parseIDParam reads a numeric URL parameter.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ErrValidation{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func parseLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var validation *domain.ErrValidation
	var storage *domain.ErrStorageUnavailable
	var classification *domain.ErrClassificationUnavailable
	var external *domain.ErrExternalService
	var timeout *domain.ErrTimeout
	var circuitOpen *domain.ErrCircuitOpen
	var unauthorized *domain.ErrUnauthorized

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &storage):
		logger.Error("storage unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &classification):
		logger.Error("classification unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
