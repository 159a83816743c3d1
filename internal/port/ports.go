// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// Completer is the single language-model dependency. Prompts go in,
// completion text comes out; callers own all parsing and all fallbacks.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NutritionLookup resolves macros for a food portion. Implementations may
// consult an external API, a cache, or a built-in table.
type NutritionLookup interface {
	Lookup(ctx context.Context, foodItem string, quantity float64, unit string) (*domain.NutritionFacts, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LedgerStore defines all data operations for expense and food ledgers.
// Implemented by the SQLite adapter (or any other persistence layer).
type LedgerStore interface {
	// Expenses
	AppendExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, userID string, from, to time.Time) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, userID string, id int64, patch domain.ExpensePatch) (bool, error)
	DeleteExpense(ctx context.Context, userID string, id int64) (bool, error)
	SumExpensesByCategory(ctx context.Context, userID string, from, to time.Time) (*domain.SpendingSummary, error)
	SumCategory(ctx context.Context, userID, category string, from, to time.Time) (float64, error)

	// Consumed food
	AppendConsumedItem(ctx context.Context, item *domain.ConsumedItem) (*domain.ConsumedItem, error)
	ListConsumedItems(ctx context.Context, userID string, from, to time.Time) ([]domain.ConsumedItem, error)
	UpdateConsumedItem(ctx context.Context, userID string, id int64, patch domain.ConsumedItemPatch) (bool, error)
	DeleteConsumedItem(ctx context.Context, userID string, id int64) (bool, error)
	SummarizeCalories(ctx context.Context, userID string, from, to time.Time) (*domain.CalorieSummary, error)
}

// ChatHistoryStore persists conversation history, append-only apart from a
// full per-user clear.
type ChatHistoryStore interface {
	SaveMessage(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	ListMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error)
	ListConversation(ctx context.Context, userID, conversationID string) ([]domain.ChatMessage, error)
	ClearMessages(ctx context.Context, userID string) error
}

// UserStore handles user records and preferences.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	EnsureUser(ctx context.Context, userID string) (*domain.User, error)
	GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error)
	UpsertPreferences(ctx context.Context, userID string, prefs *domain.UserPreferences) (*domain.UserPreferences, error)
}

// RestaurantStore serves restaurant records for recommendations.
type RestaurantStore interface {
	ListRestaurants(ctx context.Context, cuisine, priceLevel string, limit int) ([]domain.Restaurant, error)
	SearchRestaurants(ctx context.Context, query string, limit int) ([]domain.Restaurant, error)
	SeedRestaurants(ctx context.Context, restaurants []domain.Restaurant) error
}
