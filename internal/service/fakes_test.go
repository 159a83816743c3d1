package service_test

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// --- Mocks ---

// mockCompleter routes each call through fn so tests can script replies per
// prompt.
type mockCompleter struct {
	fn    func(system, prompt string) (string, error)
	calls int
}

func (m *mockCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	m.calls++
	return m.fn(system, prompt)
}

func staticCompleter(reply string) *mockCompleter {
	return &mockCompleter{fn: func(_, _ string) (string, error) { return reply, nil }}
}

// memLedger is an in-memory LedgerStore good enough for service tests.
type memLedger struct {
	nextID   int64
	expenses []domain.Expense
	items    []domain.ConsumedItem

	appendErr error
	listErr   error
}

func (m *memLedger) AppendExpense(_ context.Context, e *domain.Expense) (*domain.Expense, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.nextID++
	e.ID = m.nextID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	m.expenses = append(m.expenses, *e)
	return e, nil
}

func (m *memLedger) ListExpenses(_ context.Context, userID string, from, to time.Time) ([]domain.Expense, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Expense
	for _, e := range m.expenses {
		if e.UserID == userID && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) UpdateExpense(_ context.Context, userID string, id int64, patch domain.ExpensePatch) (bool, error) {
	for i := range m.expenses {
		if m.expenses[i].ID == id && m.expenses[i].UserID == userID {
			if patch.Amount != nil {
				m.expenses[i].Amount = *patch.Amount
			}
			if patch.Category != nil {
				m.expenses[i].Category = *patch.Category
			}
			if patch.Description != nil {
				m.expenses[i].Description = *patch.Description
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) DeleteExpense(_ context.Context, userID string, id int64) (bool, error) {
	for i := range m.expenses {
		if m.expenses[i].ID == id && m.expenses[i].UserID == userID {
			m.expenses = append(m.expenses[:i], m.expenses[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) SumExpensesByCategory(_ context.Context, userID string, from, to time.Time) (*domain.SpendingSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	summary := &domain.SpendingSummary{Categories: map[string]float64{}}
	for _, e := range m.expenses {
		if e.UserID == userID && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			summary.Categories[e.Category] += e.Amount
			summary.Total += e.Amount
		}
	}
	return summary, nil
}

func (m *memLedger) SumCategory(_ context.Context, userID, category string, from, to time.Time) (float64, error) {
	var total float64
	for _, e := range m.expenses {
		if e.UserID == userID && e.Category == category && !e.Timestamp.Before(from) && !e.Timestamp.After(to) {
			total += e.Amount
		}
	}
	return total, nil
}

func (m *memLedger) AppendConsumedItem(_ context.Context, item *domain.ConsumedItem) (*domain.ConsumedItem, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.nextID++
	item.ID = m.nextID
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	m.items = append(m.items, *item)
	return item, nil
}

func (m *memLedger) ListConsumedItems(_ context.Context, userID string, from, to time.Time) ([]domain.ConsumedItem, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.ConsumedItem
	for _, it := range m.items {
		if it.UserID == userID && !it.Timestamp.Before(from) && !it.Timestamp.After(to) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memLedger) UpdateConsumedItem(_ context.Context, userID string, id int64, patch domain.ConsumedItemPatch) (bool, error) {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			if patch.FoodItem != nil {
				m.items[i].FoodItem = *patch.FoodItem
			}
			if patch.Calories != nil {
				m.items[i].Calories = *patch.Calories
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) DeleteConsumedItem(_ context.Context, userID string, id int64) (bool, error) {
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memLedger) SummarizeCalories(_ context.Context, userID string, from, to time.Time) (*domain.CalorieSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	summary := &domain.CalorieSummary{}
	byFood := map[string]*domain.FoodBreakdown{}
	for _, it := range m.items {
		if it.UserID != userID || it.Timestamp.Before(from) || it.Timestamp.After(to) {
			continue
		}
		summary.TotalCalories += it.Calories
		summary.TotalCarbsG += it.CarbsG
		summary.TotalProteinG += it.ProteinG
		summary.TotalFatG += it.FatG
		key := strings.ToLower(it.FoodItem)
		if byFood[key] == nil {
			byFood[key] = &domain.FoodBreakdown{FoodItem: key}
		}
		byFood[key].Calories += it.Calories
		byFood[key].Count++
	}
	for _, b := range byFood {
		summary.Breakdown = append(summary.Breakdown, *b)
	}
	sort.Slice(summary.Breakdown, func(i, j int) bool {
		return summary.Breakdown[i].Calories > summary.Breakdown[j].Calories
	})
	return summary, nil
}

// memHistory is an in-memory ChatHistoryStore.
type memHistory struct {
	nextID   int64
	messages []domain.ChatMessage
	saveErr  error
}

func (m *memHistory) SaveMessage(_ context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.nextID++
	msg.ID = m.nextID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages = append(m.messages, *msg)
	return msg, nil
}

func (m *memHistory) ListMessages(_ context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memHistory) ListConversation(_ context.Context, userID, conversationID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.UserID == userID && msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memHistory) ClearMessages(_ context.Context, userID string) error {
	var kept []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.UserID != userID {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
	return nil
}

// memUsers is an in-memory UserStore.
type memUsers struct {
	prefs map[string]*domain.UserPreferences
}

func (m *memUsers) GetUser(_ context.Context, userID string) (*domain.User, error) {
	return &domain.User{ID: userID}, nil
}

func (m *memUsers) EnsureUser(_ context.Context, userID string) (*domain.User, error) {
	return &domain.User{ID: userID}, nil
}

func (m *memUsers) GetPreferences(_ context.Context, userID string) (*domain.UserPreferences, error) {
	if p, ok := m.prefs[userID]; ok {
		return p, nil
	}
	return &domain.UserPreferences{}, nil
}

func (m *memUsers) UpsertPreferences(_ context.Context, userID string, prefs *domain.UserPreferences) (*domain.UserPreferences, error) {
	if m.prefs == nil {
		m.prefs = map[string]*domain.UserPreferences{}
	}
	m.prefs[userID] = prefs
	return prefs, nil
}

// memRestaurants is an in-memory RestaurantStore.
type memRestaurants struct {
	restaurants []domain.Restaurant
}

func (m *memRestaurants) ListRestaurants(_ context.Context, cuisine, priceLevel string, limit int) ([]domain.Restaurant, error) {
	var out []domain.Restaurant
	for _, r := range m.restaurants {
		if cuisine != "" && !strings.EqualFold(r.CuisineType, cuisine) {
			continue
		}
		if priceLevel != "" && r.PriceLevel != priceLevel {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRestaurants) SearchRestaurants(_ context.Context, query string, limit int) ([]domain.Restaurant, error) {
	q := strings.ToLower(query)
	var out []domain.Restaurant
	for _, r := range m.restaurants {
		if !strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(r.CuisineType), q) &&
			!strings.Contains(strings.ToLower(r.Description), q) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRestaurants) SeedRestaurants(_ context.Context, restaurants []domain.Restaurant) error {
	m.restaurants = append(m.restaurants, restaurants...)
	return nil
}

// mockNutrition serves facts from a fixed table, scaled by quantity.
type mockNutrition struct {
	err error
}

func (m *mockNutrition) Lookup(_ context.Context, foodItem string, quantity float64, _ string) (*domain.NutritionFacts, error) {
	if m.err != nil {
		return nil, m.err
	}
	base := map[string]domain.NutritionFacts{
		"burger": {Calories: 350, CarbsG: 30, ProteinG: 20, FatG: 17},
		"banana": {Calories: 105, CarbsG: 27, ProteinG: 1.3, FatG: 0.4},
		"pizza":  {Calories: 300, CarbsG: 36, ProteinG: 12, FatG: 14},
	}
	facts, ok := base[strings.ToLower(foodItem)]
	if !ok {
		facts = domain.NutritionFacts{Calories: 150, CarbsG: 20, ProteinG: 5, FatG: 5}
	}
	facts.FoodItem = foodItem
	facts.Calories *= quantity
	facts.CarbsG *= quantity
	facts.ProteinG *= quantity
	facts.FatG *= quantity
	return &facts, nil
}
