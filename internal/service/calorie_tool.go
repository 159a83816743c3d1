package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

var calorieTracer = otel.Tracer("service/calories")

var calorieQueryPhrases = []string{
	"how many", "total calories", "calorie count", "did i consume", "calories today",
}

const extractFoodsSystem = "You are a helpful assistant that extracts food logging information."

const extractFoodsPrompt = `Extract food items from the following message and identify their quantities and units:

"%s"

For each food item mentioned, provide:
1. Food item name (be specific, include preparation method if mentioned)
2. Quantity (number)
3. Unit of measurement

Return a JSON array of objects with these fields:
- food_item: The name of the food item (e.g., "grilled chicken breast", "medium apple", "slice of pepperoni pizza")
- quantity: Amount of food (number, default 1)
- unit: Unit of measurement (e.g., "serving", "piece", "slice", "cup", "grams", default "serving")

Do NOT estimate calories or nutritional values - just identify the food items, quantities, and units.

If multiple food items are part of the same meal, list them separately unless they form a single dish name.

If no food items are mentioned, return an empty array.`

// CalorieService logs and reports food intake, from both free-text chat and
// the structured calorie endpoints. Nutrition numbers come from the lookup
// collaborator; the model only identifies what was eaten.
type CalorieService struct {
	store     port.LedgerStore
	completer port.Completer
	nutrition port.NutritionLookup
	guard     *DuplicateGuard
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewCalorieService creates the calorie service with all dependencies injected.
func NewCalorieService(store port.LedgerStore, completer port.Completer, nutrition port.NutritionLookup, guard *DuplicateGuard, metrics *observability.Metrics, logger *zap.Logger) *CalorieService {
	return &CalorieService{
		store:     store,
		completer: completer,
		nutrition: nutrition,
		guard:     guard,
		metrics:   metrics,
		logger:    logger,
	}
}

// IsQuery reports whether a nutrition message asks about intake instead of
// logging it.
func (s *CalorieService) IsQuery(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range calorieQueryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// HandleMessage routes a nutrition chat message to query or logging handling.
// It always returns a renderable result. hint, when non-nil, names the food
// the intent classifier already spotted in the message.
func (s *CalorieService) HandleMessage(ctx context.Context, userID, message string, now time.Time, hint *domain.CalorieDetails) *domain.ChatResult {
	ctx, span := calorieTracer.Start(ctx, "CalorieService.HandleMessage")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.IsQuery(message) {
		return s.handleQuery(ctx, userID, message, now)
	}
	return s.handleLogging(ctx, userID, message, now, hint)
}

func (s *CalorieService) handleLogging(ctx context.Context, userID, message string, now time.Time, hint *domain.CalorieDetails) *domain.ChatResult {
	items := s.extractFoodItems(ctx, message, now)
	if len(items) == 0 && hint != nil && strings.TrimSpace(hint.Food) != "" {
		items = []*domain.ConsumedItem{s.itemFromFood(ctx, strings.TrimSpace(hint.Food))}
	}
	if len(items) == 0 {
		return &domain.ChatResult{
			Response: "I couldn't identify any food items in your message. Please try again with a clearer description.",
			Success:  false,
		}
	}

	var fragments []string
	var duplicates []string
	logged := 0
	var totalCalories int
	var totalCarbs, totalProtein, totalFat float64

	for _, it := range items {
		it.UserID = userID
		it.Timestamp = now

		if s.guard.FindDuplicate(ctx, userID, it) != nil {
			duplicates = append(duplicates, it.FoodItem)
			continue
		}

		if _, err := s.store.AppendConsumedItem(ctx, it); err != nil {
			s.logger.Error("failed to save food entry",
				zap.String("user_id", userID),
				zap.String("food_item", it.FoodItem),
				zap.Error(err))
			continue
		}
		logged++
		totalCalories += it.Calories
		totalCarbs += it.CarbsG
		totalProtein += it.ProteinG
		totalFat += it.FatG

		quantityText := fmt.Sprintf("%s %s", trimFloat(it.Quantity), it.Unit)
		if it.Unit == "serving" && it.Quantity == 1 {
			quantityText = ""
		}
		description := it.FoodItem
		if quantityText != "" {
			description = fmt.Sprintf("%s (%s)", it.FoodItem, quantityText)
		}
		fragments = append(fragments, fmt.Sprintf("%d calories (%sg carbs, %sg protein, %sg fat) for %s",
			it.Calories, trimFloat(it.CarbsG), trimFloat(it.ProteinG), trimFloat(it.FatG), description))
	}

	if logged == 0 && len(duplicates) > 0 {
		return &domain.ChatResult{
			Response: fmt.Sprintf("It looks like you already logged %s today, so I didn't log it again.",
				strings.Join(duplicates, " and ")),
			Success: false,
		}
	}
	if len(fragments) == 0 {
		return &domain.ChatResult{
			Response: "Sorry, I couldn't log your calories. Please try again with a clearer description of what you ate.",
			Success:  false,
		}
	}

	response := fmt.Sprintf("Logged: %s. Total: %d calories (%sg carbs, %sg protein, %sg fat)",
		strings.Join(fragments, ", "), totalCalories,
		trimFloat(round1(totalCarbs)), trimFloat(round1(totalProtein)), trimFloat(round1(totalFat)))
	if len(duplicates) > 0 {
		response += fmt.Sprintf(" (skipped %s, already logged today)", strings.Join(duplicates, " and "))
	}

	return &domain.ChatResult{
		Response: response,
		Success:  true,
		CalorieInfo: &domain.CalorieInfo{
			ActionsLogged: logged,
			TotalCalories: totalCalories,
			TotalCarbsG:   round1(totalCarbs),
			TotalProteinG: round1(totalProtein),
			TotalFatG:     round1(totalFat),
		},
	}
}

func (s *CalorieService) handleQuery(ctx context.Context, userID, message string, now time.Time) *domain.ChatResult {
	period, monthSpec := determineQueryScope(message)
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in calorie query, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}

	summary, err := s.store.SummarizeCalories(ctx, userID, window.Start, window.End)
	if err != nil {
		s.logger.Error("calorie query failed", zap.String("user_id", userID), zap.Error(err))
		return &domain.ChatResult{
			Response:    "Sorry, I couldn't retrieve your calories.",
			Success:     false,
			CalorieInfo: &domain.CalorieInfo{IsQueryResponse: true},
		}
	}

	possessive := window.Label + "'s"
	if summary.TotalCalories == 0 && len(summary.Breakdown) == 0 {
		return &domain.ChatResult{
			Response:    fmt.Sprintf("You haven't logged any calories %s.", strings.ToLower(window.Label)),
			Success:     true,
			CalorieInfo: &domain.CalorieInfo{IsQueryResponse: true},
		}
	}

	carbsPct, proteinPct, fatPct := macroPercents(summary.TotalCarbsG, summary.TotalProteinG, summary.TotalFatG)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s nutrition summary:\n", possessive)
	fmt.Fprintf(&sb, "• Total: %d calories\n", summary.TotalCalories)
	fmt.Fprintf(&sb, "• Carbs: %sg (%d%%)\n", trimFloat(summary.TotalCarbsG), carbsPct)
	fmt.Fprintf(&sb, "• Protein: %sg (%d%%)\n", trimFloat(summary.TotalProteinG), proteinPct)
	fmt.Fprintf(&sb, "• Fat: %sg (%d%%)", trimFloat(summary.TotalFatG), fatPct)

	if len(summary.Breakdown) > 0 {
		sb.WriteString("\n\nFood breakdown:")
		for _, b := range summary.Breakdown {
			fmt.Fprintf(&sb, "\n• %d cal from %s", b.Calories, b.FoodItem)
		}
	}

	return &domain.ChatResult{
		Response: sb.String(),
		Success:  true,
		CalorieInfo: &domain.CalorieInfo{
			IsQueryResponse: true,
			TotalCalories:   summary.TotalCalories,
			TotalCarbsG:     summary.TotalCarbsG,
			TotalProteinG:   summary.TotalProteinG,
			TotalFatG:       summary.TotalFatG,
			CarbsPercent:    carbsPct,
			ProteinPercent:  proteinPct,
			FatPercent:      fatPct,
			Items:           summary.Breakdown,
		},
	}
}

// LogEntryResult is the structured create outcome. When the entry is a
// duplicate, Entry is the previously stored item and nothing new is written.
type LogEntryResult struct {
	Entry     *domain.ConsumedItem   `json:"entry"`
	Duplicate bool                   `json:"duplicate"`
	Summary   *domain.CalorieSummary `json:"summary"`
}

// LogEntry is the structured write path. Missing macros are resolved via the
// nutrition collaborator, and near duplicates within the same day are
// suppressed rather than double counted.
func (s *CalorieService) LogEntry(ctx context.Context, userID string, item *domain.ConsumedItem) (*LogEntryResult, error) {
	if strings.TrimSpace(item.FoodItem) == "" {
		return nil, &domain.ErrValidation{Field: "food_item", Message: "must not be empty"}
	}
	item.UserID = userID
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.Unit == "" {
		item.Unit = "serving"
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	if item.Calories == 0 {
		facts, err := s.nutrition.Lookup(ctx, item.FoodItem, item.Quantity, item.Unit)
		if err != nil {
			s.logger.Warn("nutrition lookup failed for structured entry",
				zap.String("food_item", item.FoodItem), zap.Error(err))
		} else {
			item.Calories = int(facts.Calories)
			item.CarbsG = round1(facts.CarbsG)
			item.ProteinG = round1(facts.ProteinG)
			item.FatG = round1(facts.FatG)
		}
	}

	if existing := s.guard.FindDuplicate(ctx, userID, item); existing != nil {
		summary := s.dailySummary(ctx, userID, item.Timestamp)
		return &LogEntryResult{Entry: existing, Duplicate: true, Summary: summary}, nil
	}

	saved, err := s.store.AppendConsumedItem(ctx, item)
	if err != nil {
		return nil, err
	}
	summary := s.dailySummary(ctx, userID, saved.Timestamp)
	return &LogEntryResult{Entry: saved, Summary: summary}, nil
}

// ListEntries returns the food entries inside the resolved period window,
// newest first.
func (s *CalorieService) ListEntries(ctx context.Context, userID string, period domain.Period, monthSpec string, now time.Time) ([]domain.ConsumedItem, error) {
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in entry list, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}
	return s.store.ListConsumedItems(ctx, userID, window.Start, window.End)
}

// UpdateEntry applies a sparse patch. A miss, including another user's
// entry, surfaces as not found.
func (s *CalorieService) UpdateEntry(ctx context.Context, userID string, id int64, patch domain.ConsumedItemPatch) error {
	if patch.Calories != nil && *patch.Calories < 0 {
		return &domain.ErrValidation{Field: "calories", Message: "must not be negative"}
	}
	ok, err := s.store.UpdateConsumedItem(ctx, userID, id, patch)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: "calorie entry", ID: id}
	}
	return nil
}

// DeleteEntry removes a food entry owned by the caller.
func (s *CalorieService) DeleteEntry(ctx context.Context, userID string, id int64) error {
	ok, err := s.store.DeleteConsumedItem(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: "calorie entry", ID: id}
	}
	return nil
}

// Summary aggregates calories and macros over the resolved period window.
func (s *CalorieService) Summary(ctx context.Context, userID string, period domain.Period, monthSpec string, now time.Time) (*domain.CalorieSummary, error) {
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in calorie summary, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}
	return s.store.SummarizeCalories(ctx, userID, window.Start, window.End)
}

// dailySummary is best effort; a failed aggregation returns nil.
func (s *CalorieService) dailySummary(ctx context.Context, userID string, ref time.Time) *domain.CalorieSummary {
	window, _ := domain.ResolvePeriod(domain.PeriodDaily, ref, "")
	summary, err := s.store.SummarizeCalories(ctx, userID, window.Start, window.End)
	if err != nil {
		s.logger.Warn("daily summary unavailable after logging", zap.Error(err))
		return nil
	}
	return summary
}

// extractFoodItems identifies foods in free text via the model and resolves
// their macros via the nutrition collaborator. Extraction failures yield an
// empty slice, never an error.
func (s *CalorieService) extractFoodItems(ctx context.Context, message string, now time.Time) []*domain.ConsumedItem {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	reply, err := s.completer.Complete(ctx, extractFoodsSystem, fmt.Sprintf(extractFoodsPrompt, message))
	if err != nil {
		s.logger.Warn("food extraction failed", zap.Error(err))
		return nil
	}

	actions := decodeFoodArray(reply)

	var items []*domain.ConsumedItem
	for _, raw := range actions {
		foodItem, ok := raw["food_item"].(string)
		if !ok || strings.TrimSpace(foodItem) == "" {
			continue
		}
		quantity, ok := numericField(raw, "quantity")
		if !ok || quantity <= 0 {
			quantity = 1
		}
		unit, _ := raw["unit"].(string)
		if unit == "" {
			unit = "serving"
		}
		unit = strings.ToLower(unit)

		// Strip a leading unit the model sometimes folds into the name.
		if unit != "serving" && strings.HasPrefix(strings.ToLower(foodItem), unit) {
			foodItem = strings.TrimSpace(foodItem[len(unit):])
		}

		item := &domain.ConsumedItem{
			FoodItem: foodItem,
			Quantity: quantity,
			Unit:     unit,
		}

		facts, err := s.nutrition.Lookup(ctx, foodItem, quantity, unit)
		if err != nil {
			s.logger.Warn("nutrition lookup failed, logging with zero macros",
				zap.String("food_item", foodItem), zap.Error(err))
		} else {
			item.Calories = int(facts.Calories)
			item.CarbsG = round1(facts.CarbsG)
			item.ProteinG = round1(facts.ProteinG)
			item.FatG = round1(facts.FatG)
		}
		items = append(items, item)
	}
	return items
}

// itemFromFood builds a single-serving entry for a classifier-named food.
func (s *CalorieService) itemFromFood(ctx context.Context, food string) *domain.ConsumedItem {
	item := &domain.ConsumedItem{
		FoodItem: food,
		Quantity: 1,
		Unit:     "serving",
	}
	facts, err := s.nutrition.Lookup(ctx, food, 1, "serving")
	if err != nil {
		s.logger.Warn("nutrition lookup failed, logging with zero macros",
			zap.String("food_item", food), zap.Error(err))
		return item
	}
	item.Calories = int(facts.Calories)
	item.CarbsG = round1(facts.CarbsG)
	item.ProteinG = round1(facts.ProteinG)
	item.FatG = round1(facts.FatG)
	return item
}

// decodeFoodArray prefers an embedded JSON array; failing that it decodes the
// whole reply as an array.
func decodeFoodArray(content string) []map[string]any {
	content = strings.TrimSpace(content)

	var actions []map[string]any
	if m := arrayPattern.FindString(content); m != "" {
		if err := json.Unmarshal([]byte(m), &actions); err == nil {
			return actions
		}
	}
	if err := json.Unmarshal([]byte(content), &actions); err == nil {
		return actions
	}
	return nil
}

// macroPercents converts macro grams to percentages of macro-derived
// calories: 4 kcal/g for carbs and protein, 9 kcal/g for fat.
func macroPercents(carbsG, proteinG, fatG float64) (int, int, int) {
	total := carbsG*4 + proteinG*4 + fatG*9
	if total <= 0 {
		return 0, 0, 0
	}
	return int(math.Round(carbsG * 4 / total * 100)),
		int(math.Round(proteinG * 4 / total * 100)),
		int(math.Round(fatG * 9 / total * 100))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// trimFloat formats a float without a trailing ".0" so "27g" reads naturally.
func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
