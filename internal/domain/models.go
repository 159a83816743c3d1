package domain

import (
	"strings"
	"time"
)

// ============================================================
// Users & preferences
// ============================================================

// User is an authenticated owner of ledger entries. Created on first contact.
type User struct {
	ID          string           `json:"id"`
	Email       string           `json:"email,omitempty"`
	Name        string           `json:"name,omitempty"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
	Preferences *UserPreferences `json:"preferences,omitempty"`
}

// WeightGoal is the user's stated direction for body weight.
type WeightGoal string

const (
	WeightGoalLose     WeightGoal = "lose"
	WeightGoalMaintain WeightGoal = "maintain"
	WeightGoalGain     WeightGoal = "gain"
)

// ValidWeightGoal reports whether g is a known weight goal.
func ValidWeightGoal(g WeightGoal) bool {
	switch g {
	case WeightGoalLose, WeightGoalMaintain, WeightGoalGain:
		return true
	}
	return false
}

// UserPreferences holds optional numeric preferences, mutated idempotently
// (upsert) by the owning user only. All fields are optional; nil means unset.
type UserPreferences struct {
	MonthlyIncome      *float64   `json:"monthly_income,omitempty"`
	DailyCalorieTarget *int       `json:"daily_calorie_target,omitempty"`
	WeightGoal         WeightGoal `json:"weight_goal,omitempty"`
	CurrentWeight      *float64   `json:"current_weight,omitempty"`
	TargetWeight       *float64   `json:"target_weight,omitempty"`
	PreferredName      string     `json:"preferred_name,omitempty"`
}

// ============================================================
// Ledger entries
// ============================================================

// Expense categories form a closed set. CategoryIncome is accepted on
// structured writes only, so the analyzer can estimate income from the ledger.
const (
	CategoryGroceries     = "groceries"
	CategoryDining        = "dining"
	CategoryTransport     = "transport"
	CategoryEntertainment = "entertainment"
	CategoryShopping      = "shopping"
	CategoryHousing       = "housing"
	CategorySavings       = "savings"
	CategoryInvestment    = "investment"
	CategoryOther         = "other"
	CategoryIncome        = "income"
)

// ExpenseCategories lists the closed category set for free-text classification.
var ExpenseCategories = []string{
	CategoryGroceries, CategoryDining, CategoryTransport,
	CategoryEntertainment, CategoryShopping, CategoryHousing,
	CategorySavings, CategoryInvestment, CategoryOther,
}

// ValidCategory reports whether c is in the closed expense category set
// (income included, for structured writes).
func ValidCategory(c string) bool {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range ExpenseCategories {
		if c == known {
			return true
		}
	}
	return c == CategoryIncome
}

// Expense is a single monetary ledger entry. Identity is assigned by the
// store; Amount keeps full precision internally and is rounded to two places
// at presentation time only.
type Expense struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExpensePatch is a sparse update: only non-nil fields are written.
type ExpensePatch struct {
	Amount      *float64 `json:"amount,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil && p.Category == nil && p.Description == nil
}

// ConsumedItem is a single food ledger entry with calories and macros.
// Calories are whole units; macro grams carry one-decimal precision at
// aggregation time.
type ConsumedItem struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	FoodItem  string    `json:"food_item"`
	Calories  int       `json:"calories"`
	CarbsG    float64   `json:"carbs"`
	ProteinG  float64   `json:"protein"`
	FatG      float64   `json:"fat"`
	Quantity  float64   `json:"quantity"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// ConsumedItemPatch is a sparse update for a consumed-food entry.
type ConsumedItemPatch struct {
	FoodItem *string  `json:"food_item,omitempty"`
	Calories *int     `json:"calories,omitempty"`
	CarbsG   *float64 `json:"carbs,omitempty"`
	ProteinG *float64 `json:"protein,omitempty"`
	FatG     *float64 `json:"fat,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ConsumedItemPatch) IsEmpty() bool {
	return p.FoodItem == nil && p.Calories == nil && p.CarbsG == nil &&
		p.ProteinG == nil && p.FatG == nil && p.Quantity == nil && p.Unit == nil
}

// ============================================================
// Aggregates (derived, never persisted)
// ============================================================

// SpendingSummary maps category to summed amount for one user and window.
type SpendingSummary struct {
	Total      float64            `json:"total"`
	Categories map[string]float64 `json:"categories"`
}

// FoodBreakdown is one food item's contribution to a CalorieSummary.
type FoodBreakdown struct {
	FoodItem string `json:"food_item"`
	Calories int    `json:"calories"`
	Count    int    `json:"count"`
}

// CalorieSummary totals calories and macros for one user and window, with a
// per-food-item breakdown sorted by calories descending.
type CalorieSummary struct {
	TotalCalories int             `json:"total_calories"`
	TotalCarbsG   float64         `json:"total_carbs"`
	TotalProteinG float64         `json:"total_protein"`
	TotalFatG     float64         `json:"total_fat"`
	Breakdown     []FoodBreakdown `json:"breakdown"`
}

// ============================================================
// Conversation history
// ============================================================

// ChatMessage is a single conversation-history record, append-only.
type ChatMessage struct {
	ID             int64         `json:"id"`
	UserID         string        `json:"user_id"`
	Content        string        `json:"content"`
	IsUser         bool          `json:"is_user"`
	Timestamp      time.Time     `json:"timestamp"`
	ToolUsed       string        `json:"tool_used,omitempty"`
	ToolResponse   *ToolResponse `json:"tool_response,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// ToolResponse is the structured payload recorded next to an assistant reply.
type ToolResponse struct {
	ExpenseInfo           *ExpenseInfo           `json:"expense_info,omitempty"`
	CalorieInfo           *CalorieInfo           `json:"calorie_info,omitempty"`
	RestaurantSuggestions []RestaurantSuggestion `json:"restaurant_suggestions,omitempty"`
}

// ============================================================
// Handler results — the uniform response shape
// ============================================================

// ChatResult is the uniform shape every handler returns, even on failure, so
// the transport layer can always render something.
type ChatResult struct {
	Response              string                 `json:"response"`
	Success               bool                   `json:"success"`
	ConversationContext   string                 `json:"conversation_context,omitempty"`
	ExpenseInfo           *ExpenseInfo           `json:"expense_info,omitempty"`
	CalorieInfo           *CalorieInfo           `json:"calorie_info,omitempty"`
	RestaurantSuggestions []RestaurantSuggestion `json:"restaurant_suggestions,omitempty"`
	Messages              []ChatMessage          `json:"messages,omitempty"`
}

// ExpenseInfo is the structured payload of a budget handler result.
type ExpenseInfo struct {
	IsQueryResponse bool               `json:"is_query_response,omitempty"`
	ActionsLogged   int                `json:"actions_logged"`
	TotalAmount     float64            `json:"total_amount"`
	Categories      map[string]float64 `json:"categories"`
}

// CalorieInfo is the structured payload of a nutrition handler result.
type CalorieInfo struct {
	IsQueryResponse bool            `json:"is_query_response,omitempty"`
	ActionsLogged   int             `json:"actions_logged,omitempty"`
	TotalCalories   int             `json:"total_calories"`
	TotalCarbsG     float64         `json:"total_carbs"`
	TotalProteinG   float64         `json:"total_protein"`
	TotalFatG       float64         `json:"total_fat"`
	CarbsPercent    int             `json:"carbs_percent,omitempty"`
	ProteinPercent  int             `json:"protein_percent,omitempty"`
	FatPercent      int             `json:"fat_percent,omitempty"`
	Items           []FoodBreakdown `json:"items,omitempty"`
}

// ============================================================
// Restaurants
// ============================================================

// Restaurant is a stored restaurant record used for recommendations.
type Restaurant struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	CuisineType string   `json:"cuisine_type"`
	PriceLevel  string   `json:"price_level"`
	Rating      float64  `json:"rating,omitempty"`
	Address     string   `json:"address,omitempty"`
	Description string   `json:"description,omitempty"`
	Highlights  []string `json:"highlights,omitempty"`
}

// RestaurantSuggestion is one recommendation in a handler result.
type RestaurantSuggestion struct {
	Name        string   `json:"name"`
	CuisineType string   `json:"cuisine_type"`
	PriceLevel  string   `json:"price_level"`
	Highlights  []string `json:"highlights,omitempty"`
}

// ============================================================
// Nutrition lookup
// ============================================================

// NutritionFacts are per-portion macros returned by the nutrition collaborator.
type NutritionFacts struct {
	FoodItem string  `json:"food_item"`
	Calories float64 `json:"calories"`
	CarbsG   float64 `json:"carbs"`
	ProteinG float64 `json:"protein"`
	FatG     float64 `json:"fat"`
}

// SuccessResponse is a minimal message envelope for mutation endpoints.
type SuccessResponse struct {
	Message string `json:"message"`
}
