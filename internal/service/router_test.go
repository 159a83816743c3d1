package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/service"
)

// chatFixture wires a full chat service over in-memory stores.
type chatFixture struct {
	svc     *service.ChatService
	ledger  *memLedger
	history *memHistory
	metrics *observability.Metrics
}

func newChatFixture(completer *mockCompleter) *chatFixture {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	ledger := &memLedger{}
	history := &memHistory{}

	classifier := service.NewClassifier(completer, metrics, logger)
	guard := service.NewDuplicateGuard(ledger, metrics, logger)
	budget := service.NewBudgetService(ledger, completer, classifier, guard, metrics, logger)
	calories := service.NewCalorieService(ledger, completer, &mockNutrition{}, guard, metrics, logger)
	restaurants := service.NewRestaurantService(&memRestaurants{}, completer, metrics, logger)

	return &chatFixture{
		svc:     service.NewChatService(history, completer, budget, calories, restaurants, metrics, logger),
		ledger:  ledger,
		history: history,
		metrics: metrics,
	}
}

// scriptedCompleter answers by matching a marker in the system prompt.
func scriptedCompleter(replies map[string]string) *mockCompleter {
	return &mockCompleter{fn: func(system, _ string) (string, error) {
		for marker, reply := range replies {
			if strings.Contains(system, marker) {
				return reply, nil
			}
		}
		return "", errors.New("no scripted reply for system prompt")
	}}
}

func TestChatHandle_SingleBudgetIntent(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":      `{"tool": "budget", "action": "log"}`,
		"Extract ALL":         `[]`,
		"extracts expense":    `[{"amount": 15, "category": "dining", "description": "lunch"}]`,
		"categorizes expense": "dining",
	})
	f := newChatFixture(completer)

	now := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	result := f.svc.Handle(context.Background(), "user-1", "spent some money at lunch", "", now)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if len(f.ledger.expenses) != 1 {
		t.Fatalf("expected 1 expense routed to the budget handler, got %d", len(f.ledger.expenses))
	}
	if result.ExpenseInfo == nil {
		t.Error("expected an expense payload")
	}
}

func TestChatHandle_MultiIntentMergesPayloads(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":   `{"tool": "budget", "action": "log"}`,
		"Extract ALL":      `[{"tool": "budget", "action": "log"}, {"tool": "calories", "action": "log"}]`,
		"extracts expense": `[{"amount": 10, "category": "dining", "description": "burger"}]`,
		"food logging":     `[{"food_item": "burger", "quantity": 1, "unit": "serving"}]`,
	})
	f := newChatFixture(completer)

	now := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	result := f.svc.Handle(context.Background(), "user-1", "I spent $10 on a burger", "", now)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if result.ExpenseInfo == nil {
		t.Error("expected merged expense payload")
	}
	if result.CalorieInfo == nil {
		t.Error("expected merged calorie payload")
	}
	if result.ConversationContext != "multiple_actions" {
		t.Errorf("expected multiple_actions context, got %q", result.ConversationContext)
	}
	if !strings.Contains(result.Response, " \n\n") {
		t.Errorf("expected fragments joined with separator, got %q", result.Response)
	}
	if len(f.ledger.expenses) != 1 || len(f.ledger.items) != 1 {
		t.Errorf("expected one expense and one food item, got %d/%d",
			len(f.ledger.expenses), len(f.ledger.items))
	}
}

func TestChatHandle_IntentDetailsReachToolHandlers(t *testing.T) {
	// Expense extraction finds nothing; the logging must come from the
	// details the intent classifier attached.
	completer := scriptedCompleter(map[string]string{
		"Possible tools":   `{"tool": "budget", "action": "log"}`,
		"Extract ALL":      `[{"tool": "budget", "action": "log", "details": {"amount": 7, "category": "dining"}}]`,
		"extracts expense": `[]`,
	})
	f := newChatFixture(completer)

	result := f.svc.Handle(context.Background(), "user-1", "grabbed a quick bite downtown", "", time.Now())

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if len(f.ledger.expenses) != 1 {
		t.Fatalf("expected the detail-sourced expense stored, got %d", len(f.ledger.expenses))
	}
	e := f.ledger.expenses[0]
	if e.Amount != 7 || e.Category != domain.CategoryDining {
		t.Errorf("stored expense = $%.2f %s, want $7.00 dining", e.Amount, e.Category)
	}
}

func TestChatHandle_DuplicateToolsRunOnce(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":   `{"tool": "budget", "action": "log"}`,
		"Extract ALL":      `[{"tool": "budget", "action": "log"}, {"tool": "budget", "action": "log"}]`,
		"extracts expense": `[{"amount": 10, "category": "dining", "description": "lunch"}]`,
	})
	f := newChatFixture(completer)

	f.svc.Handle(context.Background(), "user-1", "spent ten on lunch twice over", "", time.Now())

	if len(f.ledger.expenses) != 1 {
		t.Errorf("duplicate tool intents must dispatch once, got %d expenses", len(f.ledger.expenses))
	}
}

func TestChatHandle_FallsBackToConversation(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":     `this is not json at all`,
		"Extract ALL":        `[]`,
		"friendly assistant": "Hello! How can I help you today?",
	})
	f := newChatFixture(completer)

	result := f.svc.Handle(context.Background(), "user-1", "hey there", "", time.Now())

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if result.Response != "Hello! How can I help you today?" {
		t.Errorf("unexpected reply %q", result.Response)
	}
	if result.ConversationContext != "conversation" {
		t.Errorf("expected conversation context, got %q", result.ConversationContext)
	}
}

func TestChatHandle_PersistsBothSidesOfExchange(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":     `{"tool": "conversation", "action": "chat"}`,
		"Extract ALL":        `[]`,
		"friendly assistant": "Sure thing.",
	})
	f := newChatFixture(completer)

	result := f.svc.Handle(context.Background(), "user-1", "thanks", "conv-9", time.Now())

	if len(f.history.messages) != 2 {
		t.Fatalf("expected user and assistant messages saved, got %d", len(f.history.messages))
	}
	if !f.history.messages[0].IsUser || f.history.messages[1].IsUser {
		t.Error("expected user message first, assistant second")
	}
	if f.history.messages[0].ConversationID != "conv-9" || f.history.messages[1].ConversationID != "conv-9" {
		t.Error("expected both messages tagged with the conversation id")
	}
	if len(result.Messages) != 2 {
		t.Errorf("expected both saved messages echoed in the result, got %d", len(result.Messages))
	}
}

func TestChatHandle_HistoryFailureDoesNotBlockResponse(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":     `{"tool": "conversation", "action": "chat"}`,
		"Extract ALL":        `[]`,
		"friendly assistant": "Still here.",
	})
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	ledger := &memLedger{}
	history := &memHistory{saveErr: errors.New("disk full")}

	classifier := service.NewClassifier(completer, metrics, logger)
	guard := service.NewDuplicateGuard(ledger, metrics, logger)
	budget := service.NewBudgetService(ledger, completer, classifier, guard, metrics, logger)
	calories := service.NewCalorieService(ledger, completer, &mockNutrition{}, guard, metrics, logger)
	restaurants := service.NewRestaurantService(&memRestaurants{}, completer, metrics, logger)
	svc := service.NewChatService(history, completer, budget, calories, restaurants, metrics, logger)

	result := svc.Handle(context.Background(), "user-1", "hello", "", time.Now())

	if !result.Success {
		t.Fatalf("history failure must not fail the chat, got %q", result.Response)
	}
	if len(result.Messages) != 0 {
		t.Errorf("expected no echoed messages when saves fail, got %d", len(result.Messages))
	}
}

func TestChatHandle_UpdatesUsageSnapshot(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":     `{"tool": "conversation", "action": "chat"}`,
		"Extract ALL":        `[]`,
		"friendly assistant": "Hi!",
	})
	f := newChatFixture(completer)

	before := f.metrics.GetAssistantSnapshot()
	if before.TotalRequests != 0 {
		t.Fatalf("fresh registry must report zero requests, got %d", before.TotalRequests)
	}

	result := f.svc.Handle(context.Background(), "user-1", "hello", "", time.Now())
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}

	after := f.metrics.GetAssistantSnapshot()
	if after.TotalRequests != 1 {
		t.Errorf("expected 1 handled request in the snapshot, got %d", after.TotalRequests)
	}
	if after.ErrorRate != 0 {
		t.Errorf("successful request must not raise the error rate, got %v", after.ErrorRate)
	}
}

func TestChatHandle_CountsFailedRequests(t *testing.T) {
	// No scripted conversation reply, so the fallback completion fails too.
	completer := scriptedCompleter(map[string]string{
		"Possible tools": `{"tool": "conversation", "action": "chat"}`,
		"Extract ALL":    `[]`,
	})
	f := newChatFixture(completer)

	result := f.svc.Handle(context.Background(), "user-1", "hello", "", time.Now())
	if result.Success {
		t.Fatal("expected a failed conversation completion")
	}

	snap := f.metrics.GetAssistantSnapshot()
	if snap.TotalRequests != 1 {
		t.Errorf("expected the failed request counted, got %d", snap.TotalRequests)
	}
	if snap.ErrorRate != 1 {
		t.Errorf("expected error rate 1 for a single failed request, got %v", snap.ErrorRate)
	}
}

func TestChatHandle_RestaurantIntent(t *testing.T) {
	completer := scriptedCompleter(map[string]string{
		"Possible tools":         `{"tool": "restaurant", "action": "query"}`,
		"Extract ALL":            `[]`,
		"cuisine preferences":    "italian",
		"restaurant recommender": "Try Trattoria Roma, the pasta is excellent.",
	})
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	ledger := &memLedger{}
	history := &memHistory{}
	catalog := &memRestaurants{restaurants: []domain.Restaurant{
		{ID: 1, Name: "Trattoria Roma", CuisineType: "italian", PriceLevel: "$$", Rating: 4.6, Highlights: []string{"carbonara"}},
	}}

	classifier := service.NewClassifier(completer, metrics, logger)
	guard := service.NewDuplicateGuard(ledger, metrics, logger)
	budget := service.NewBudgetService(ledger, completer, classifier, guard, metrics, logger)
	calories := service.NewCalorieService(ledger, completer, &mockNutrition{}, guard, metrics, logger)
	restaurants := service.NewRestaurantService(catalog, completer, metrics, logger)
	svc := service.NewChatService(history, completer, budget, calories, restaurants, metrics, logger)

	result := svc.Handle(context.Background(), "user-1", "recommend me an italian restaurant", "", time.Now())

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if len(result.RestaurantSuggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(result.RestaurantSuggestions))
	}
	if result.RestaurantSuggestions[0].Name != "Trattoria Roma" {
		t.Errorf("unexpected suggestion %+v", result.RestaurantSuggestions[0])
	}
}
