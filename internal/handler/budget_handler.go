package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Budget — transactions, summary, allocation analysis
// ============================================================

func createTransactionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/budget/transactions")
		defer span.End()

		userID := UserIDFromContext(ctx)

		var req struct {
			Amount      float64 `json:"amount"`
			Category    string  `json:"category,omitempty"`
			Description string  `json:"description"`
			Timestamp   string  `json:"timestamp,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		expense := &domain.Expense{
			Amount:      req.Amount,
			Category:    req.Category,
			Description: req.Description,
		}
		if req.Timestamp != "" {
			t, err := time.Parse(time.RFC3339, req.Timestamp)
			if err != nil {
				writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
				return
			}
			expense.Timestamp = t
		}

		saved, err := svc.LogExpense(ctx, userID, expense)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func listTransactionsHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/transactions")
		defer span.End()

		userID := UserIDFromContext(ctx)
		period, monthSpec := parsePeriod(r)

		expenses, err := svc.ListExpenses(ctx, userID, period, monthSpec, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if expenses == nil {
			expenses = []domain.Expense{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": expenses})
	}
}

func updateTransactionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budget/transactions/{id}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id, err := parseIDParam(r, "id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var patch domain.ExpensePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := svc.UpdateExpense(ctx, userID, id, patch); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "transaction updated"})
	}
}

func deleteTransactionHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/budget/transactions/{id}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		id, err := parseIDParam(r, "id")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := svc.DeleteExpense(ctx, userID, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func budgetSummaryHandler(svc *service.BudgetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/summary")
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

func budgetAnalysisHandler(svc *service.AnalyzerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budget/analysis")
		defer span.End()

		userID := UserIDFromContext(ctx)
		monthSpec := r.URL.Query().Get("month")

		var income float64
		if v := r.URL.Query().Get("income"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "income must be a non-negative number")
				return
			}
			income = parsed
		}

		analysis, err := svc.Analyze(ctx, userID, monthSpec, income, time.Now())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	}
}
