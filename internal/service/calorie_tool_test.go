package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/service"
)

func newCalorieService(ledger *memLedger, completer *mockCompleter) *service.CalorieService {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	guard := service.NewDuplicateGuard(ledger, metrics, logger)
	return service.NewCalorieService(ledger, completer, &mockNutrition{}, guard, metrics, logger)
}

func TestCalorieHandleMessage_LogsExtractedFoods(t *testing.T) {
	ledger := &memLedger{}
	completer := staticCompleter(`[{"food_item": "burger", "quantity": 1, "unit": "serving"}, {"food_item": "banana", "quantity": 2, "unit": "piece"}]`)
	svc := newCalorieService(ledger, completer)

	now := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	result := svc.HandleMessage(context.Background(), "user-1", "I ate a burger and two bananas", now, nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if len(ledger.items) != 2 {
		t.Fatalf("expected 2 stored items, got %d", len(ledger.items))
	}
	if ledger.items[0].Calories != 350 {
		t.Errorf("burger calories = %d, want 350", ledger.items[0].Calories)
	}
	if ledger.items[1].Calories != 210 {
		t.Errorf("2 bananas calories = %d, want 210", ledger.items[1].Calories)
	}
	if !strings.HasPrefix(result.Response, "Logged: ") {
		t.Errorf("unexpected response %q", result.Response)
	}
	if !strings.Contains(result.Response, "Total: 560 calories") {
		t.Errorf("response missing combined total: %q", result.Response)
	}
	if result.CalorieInfo == nil || result.CalorieInfo.ActionsLogged != 2 {
		t.Errorf("expected 2 actions logged, got %+v", result.CalorieInfo)
	}
}

func TestCalorieHandleMessage_NoFoodFound(t *testing.T) {
	svc := newCalorieService(&memLedger{}, staticCompleter(`[]`))

	result := svc.HandleMessage(context.Background(), "user-1", "just saying hi", time.Now(), nil)

	if result.Success {
		t.Error("expected failure when nothing is extracted")
	}
	if !strings.Contains(result.Response, "couldn't identify any food items") {
		t.Errorf("unexpected response %q", result.Response)
	}
}

func TestCalorieHandleMessage_ClassifierFoodBacksUpEmptyExtraction(t *testing.T) {
	ledger := &memLedger{}
	svc := newCalorieService(ledger, staticCompleter(`[]`))

	now := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	hint := &domain.CalorieDetails{Food: "burger"}
	result := svc.HandleMessage(context.Background(), "user-1", "grabbed the usual", now, hint)

	if !result.Success {
		t.Fatalf("expected the classifier food to carry the logging, got %q", result.Response)
	}
	if len(ledger.items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(ledger.items))
	}
	it := ledger.items[0]
	if it.FoodItem != "burger" || it.Quantity != 1 || it.Unit != "serving" {
		t.Errorf("stored item = %+v, want one serving of burger", it)
	}
	if it.Calories != 350 {
		t.Errorf("calories = %d, want 350 from the lookup", it.Calories)
	}
}

func TestCalorieHandleMessage_SuppressesSameDayDuplicate(t *testing.T) {
	now := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	ledger := &memLedger{}
	ledger.AppendConsumedItem(context.Background(), &domain.ConsumedItem{
		UserID: "user-1", FoodItem: "burger", Calories: 350, Timestamp: now.Add(-2 * time.Hour),
	})
	completer := staticCompleter(`[{"food_item": "burger", "quantity": 1, "unit": "serving"}]`)
	svc := newCalorieService(ledger, completer)

	result := svc.HandleMessage(context.Background(), "user-1", "had a burger", now, nil)

	if len(ledger.items) != 1 {
		t.Fatalf("duplicate should not be stored twice, have %d items", len(ledger.items))
	}
	if result.Success {
		t.Error("expected unsuccessful result when everything was a duplicate")
	}
}

func TestCalorieHandleMessage_QuerySummary(t *testing.T) {
	now := time.Date(2025, 3, 12, 20, 0, 0, 0, time.UTC)
	ledger := &memLedger{}
	ledger.AppendConsumedItem(context.Background(), &domain.ConsumedItem{
		UserID: "user-1", FoodItem: "burger", Calories: 350, CarbsG: 30, ProteinG: 20, FatG: 17, Timestamp: now.Add(-time.Hour),
	})
	ledger.AppendConsumedItem(context.Background(), &domain.ConsumedItem{
		UserID: "user-1", FoodItem: "banana", Calories: 105, CarbsG: 27, ProteinG: 1.3, FatG: 0.4, Timestamp: now.Add(-2 * time.Hour),
	})
	svc := newCalorieService(ledger, staticCompleter("unused"))

	result := svc.HandleMessage(context.Background(), "user-1", "how many calories did I eat today", now, nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if !strings.Contains(result.Response, "Today's nutrition summary:") {
		t.Errorf("missing header: %q", result.Response)
	}
	if !strings.Contains(result.Response, "• Total: 455 calories") {
		t.Errorf("missing total: %q", result.Response)
	}
	if !strings.Contains(result.Response, "Food breakdown:") {
		t.Errorf("missing breakdown: %q", result.Response)
	}
	if !strings.Contains(result.Response, "350 cal from burger") {
		t.Errorf("missing burger line: %q", result.Response)
	}
	if result.CalorieInfo == nil || !result.CalorieInfo.IsQueryResponse {
		t.Fatal("expected a query-flagged payload")
	}
	// Macro calories: carbs 57*4, protein 21.3*4, fat 17.4*9.
	if result.CalorieInfo.CarbsPercent+result.CalorieInfo.ProteinPercent+result.CalorieInfo.FatPercent < 99 {
		t.Errorf("macro percents should sum to ~100, got %d/%d/%d",
			result.CalorieInfo.CarbsPercent, result.CalorieInfo.ProteinPercent, result.CalorieInfo.FatPercent)
	}
}

func TestCalorieHandleMessage_QueryEmpty(t *testing.T) {
	svc := newCalorieService(&memLedger{}, staticCompleter("unused"))

	result := svc.HandleMessage(context.Background(), "user-1", "how many calories today", time.Now(), nil)

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Response)
	}
	if result.Response != "You haven't logged any calories today." {
		t.Errorf("unexpected response %q", result.Response)
	}
}

func TestLogEntry_StructuredCreateWithLookup(t *testing.T) {
	ledger := &memLedger{}
	svc := newCalorieService(ledger, staticCompleter("unused"))

	res, err := svc.LogEntry(context.Background(), "user-1", &domain.ConsumedItem{FoodItem: "pizza"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Duplicate {
		t.Error("first entry should not be a duplicate")
	}
	if res.Entry.Calories != 300 {
		t.Errorf("expected looked-up calories 300, got %d", res.Entry.Calories)
	}
	if res.Summary == nil || res.Summary.TotalCalories != 300 {
		t.Errorf("expected daily summary total 300, got %+v", res.Summary)
	}
}

func TestLogEntry_DuplicateReturnsExisting(t *testing.T) {
	ledger := &memLedger{}
	svc := newCalorieService(ledger, staticCompleter("unused"))

	first, err := svc.LogEntry(context.Background(), "user-1", &domain.ConsumedItem{FoodItem: "pizza"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := svc.LogEntry(context.Background(), "user-1", &domain.ConsumedItem{FoodItem: "pizza"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("expected duplicate flag on repeat entry")
	}
	if second.Entry.ID != first.Entry.ID {
		t.Errorf("duplicate should return the stored entry, got id %d want %d", second.Entry.ID, first.Entry.ID)
	}
	if len(ledger.items) != 1 {
		t.Errorf("expected 1 stored item, got %d", len(ledger.items))
	}
}
