package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/handler"
	"github.com/halvorsen/vita-assistant-go/internal/infra/cache"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/infra/sqlite"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "router-test-secret"

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	return s.reply, s.err
}

type stubNutrition struct{}

func (stubNutrition) Lookup(_ context.Context, foodItem string, quantity float64, _ string) (*domain.NutritionFacts, error) {
	return &domain.NutritionFacts{
		FoodItem: foodItem,
		Calories: 200 * quantity,
		CarbsG:   20 * quantity,
		ProteinG: 10 * quantity,
		FatG:     8 * quantity,
	}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	store, err := sqlite.Open(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	metrics := observability.NewMetrics()
	completer := &stubCompleter{reply: "other"}

	classifier := service.NewClassifier(completer, metrics, logger)
	guard := service.NewDuplicateGuard(store, metrics, logger)
	budgetSvc := service.NewBudgetService(store, completer, classifier, guard, metrics, logger)
	calorieSvc := service.NewCalorieService(store, completer, stubNutrition{}, guard, metrics, logger)
	restaurantSvc := service.NewRestaurantService(store, completer, metrics, logger)
	chatSvc := service.NewChatService(store, completer, budgetSvc, calorieSvc, restaurantSvc, metrics, logger)
	analyzerSvc := service.NewAnalyzerService(store, store, completer, metrics, logger)
	userSvc := service.NewUserService(store, cache.New[*domain.UserPreferences](time.Minute), logger)

	return handler.NewRouter(
		chatSvc, budgetSvc, calorieSvc, restaurantSvc, analyzerSvc, userSvc,
		store, metrics, logger, testSecret, []string{"*"},
	)
}

func signToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/budget/transactions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRejectBadToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/budget/transactions", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodPost, "/v1/budget/transactions", token, map[string]any{
		"amount":      42.50,
		"category":    "dining",
		"description": "sushi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == 0 || created.Category != "dining" {
		t.Errorf("unexpected created expense: %+v", created)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/budget/transactions?period=daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listResp struct {
		Transactions []domain.Expense `json:"transactions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listResp.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(listResp.Transactions))
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/budget/summary?period=daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	var summary domain.SpendingSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary response: %v", err)
	}
	if summary.Total != 42.50 {
		t.Errorf("expected total 42.50, got %.2f", summary.Total)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/budget/transactions/1", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", rec.Code)
	}
}

func TestTransactionOwnershipIsScoped(t *testing.T) {
	router := newTestRouter(t)
	owner := signToken(t, "owner")
	other := signToken(t, "other")

	rec := doJSON(t, router, http.MethodPost, "/v1/budget/transactions", owner, map[string]any{
		"amount":      10,
		"category":    "groceries",
		"description": "milk",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodDelete, "/v1/budget/transactions/1", other, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user delete: expected 404, got %d", rec.Code)
	}
}

func TestCreateTransactionRejectsNonPositiveAmount(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodPost, "/v1/budget/transactions", token, map[string]any{
		"amount":      0,
		"description": "nothing",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCalorieEntryDuplicateSuppression(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	body := map[string]any{"food_item": "burger"}

	rec := doJSON(t, router, http.MethodPost, "/v1/calories/entries", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/calories/entries", token, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate create: expected 200, got %d", rec.Code)
	}
	var result struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode duplicate response: %v", err)
	}
	if !result.Duplicate {
		t.Error("expected duplicate flag on second identical entry")
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/calories/summary?period=daily", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	var summary domain.CalorieSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalCalories != 200 {
		t.Errorf("expected 200 calories after suppression, got %d", summary.TotalCalories)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	income := 4200.0
	rec := doJSON(t, router, http.MethodPut, "/v1/users/preferences", token, map[string]any{
		"monthly_income": income,
		"weight_goal":    "lose",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/users/preferences", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var prefs domain.UserPreferences
	if err := json.Unmarshal(rec.Body.Bytes(), &prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if prefs.MonthlyIncome == nil || *prefs.MonthlyIncome != income {
		t.Errorf("expected monthly income %.0f, got %+v", income, prefs.MonthlyIncome)
	}
	if prefs.WeightGoal != domain.WeightGoalLose {
		t.Errorf("expected weight goal lose, got %q", prefs.WeightGoal)
	}
}

func TestPreferencesRejectUnknownWeightGoal(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodPut, "/v1/users/preferences", token, map[string]any{
		"weight_goal": "bulk",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestBudgetAnalysisDefaults(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodPost, "/v1/budget/transactions", token, map[string]any{
		"amount":      500,
		"category":    "groceries",
		"description": "monthly shop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/budget/analysis", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var analysis domain.BudgetAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.MonthlyIncome != 3000 {
		t.Errorf("expected default income 3000, got %.0f", analysis.MonthlyIncome)
	}
	if analysis.TotalSpent != 500 {
		t.Errorf("expected total spent 500, got %.0f", analysis.TotalSpent)
	}
}

func TestRestaurantSearchRequiresQuery(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodGet, "/v1/restaurants/search", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestChatHistoryClear(t *testing.T) {
	router := newTestRouter(t)
	token := signToken(t, "user-1")

	rec := doJSON(t, router, http.MethodDelete, "/v1/chat/history", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/chat/history", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Messages) != 0 {
		t.Errorf("expected empty history, got %d messages", len(resp.Messages))
	}
}
