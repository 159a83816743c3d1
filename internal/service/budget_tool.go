package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

var budgetTracer = otel.Tracer("service/budget")

// Simple spending phrasings are matched directly so the common case never
// needs a model call.
var simpleExpensePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:spent|spend|pay|paid|bought|buy)\s+\$?(\d+(?:\.\d+)?)\s+(?:in|at|on)\s+(?:a\s+|an\s+|the\s+)?(.+)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s+(?:dollars|bucks)\s+(?:on|for)\s+(.+)`),
	regexp.MustCompile(`(?i)(?:spent|spend|pay|paid|bought|buy)\s+\$?(\d+(?:\.\d+)?)(?:\s+(\w+))?`),
}

// arrayPattern grabs an embedded JSON array from model output that wraps it
// in prose or markdown.
var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

var budgetQueryPhrases = []string{
	"how much", "what is the total", "what's the total", "show me",
	"tell me", "check my", "view my", "display my",
}

var monthNumbers = map[string]string{
	"january": "1", "february": "2", "march": "3", "april": "4",
	"may": "5", "june": "6", "july": "7", "august": "8",
	"september": "9", "october": "10", "november": "11", "december": "12",
}

const extractExpensesSystem = "You are a helpful assistant that extracts expense information."

const extractExpensesPrompt = `Extract all financial transaction actions (spending or saving) from the following message and output them as a JSON array. Each action should be a JSON object with the following keys:
  - amount: a number representing the amount spent or saved (in dollars),
  - category: one of groceries, dining, transport, entertainment, shopping, housing, savings, investment, or other,
  - description: a short description (optional).
Include actions that represent a financial transaction, regardless of whether it indicates spending or saving. If the person says investing, put it in the savings category. If ambiguous, interpret it as a financial transaction logging event.

Message: "%s"

Return ONLY the JSON array, no markdown formatting.`

// expenseAction is one extracted transaction before persistence.
type expenseAction struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
}

// BudgetService logs and reports spending, from both free-text chat and the
// structured ledger endpoints.
type BudgetService struct {
	store      port.LedgerStore
	completer  port.Completer
	classifier *Classifier
	guard      *DuplicateGuard
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBudgetService creates the budget service with all dependencies injected.
func NewBudgetService(store port.LedgerStore, completer port.Completer, classifier *Classifier, guard *DuplicateGuard, metrics *observability.Metrics, logger *zap.Logger) *BudgetService {
	return &BudgetService{
		store:      store,
		completer:  completer,
		classifier: classifier,
		guard:      guard,
		metrics:    metrics,
		logger:     logger,
	}
}

// IsQuery reports whether a budget message asks about spending instead of
// logging it.
func (s *BudgetService) IsQuery(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range budgetQueryPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// HandleMessage routes a budget chat message to query or logging handling.
// It always returns a renderable result. hint, when non-nil, is the expense
// the intent classifier already extracted from the message.
func (s *BudgetService) HandleMessage(ctx context.Context, userID, message string, now time.Time, hint *domain.BudgetDetails) *domain.ChatResult {
	ctx, span := budgetTracer.Start(ctx, "BudgetService.HandleMessage")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if s.IsQuery(message) {
		return s.handleQuery(ctx, userID, message, now)
	}
	return s.handleLogging(ctx, userID, message, now, hint)
}

func (s *BudgetService) handleLogging(ctx context.Context, userID, message string, now time.Time, hint *domain.BudgetDetails) *domain.ChatResult {
	actions := s.extractExpenseActions(ctx, message)
	if len(actions) == 0 && hint != nil && hint.Amount > 0 {
		category := strings.ToLower(strings.TrimSpace(hint.Category))
		if !domain.ValidCategory(category) {
			category = repairCategory(category)
		}
		actions = []expenseAction{{Amount: hint.Amount, Category: category, Description: message}}
	}
	if len(actions) == 0 {
		return &domain.ChatResult{
			Response:    "I couldn't identify any financial transactions to log.",
			Success:     false,
			ExpenseInfo: &domain.ExpenseInfo{Categories: map[string]float64{}},
		}
	}

	var logged []string
	var duplicates []string
	loggedCount := 0
	sessionTotals := map[string]float64{}
	for _, action := range actions {
		expense := &domain.Expense{
			UserID:      userID,
			Amount:      action.Amount,
			Category:    action.Category,
			Description: action.Description,
			Timestamp:   now,
		}

		if s.guard.FindDuplicateExpense(ctx, userID, expense) != nil {
			duplicates = append(duplicates, action.Description)
			continue
		}

		if _, err := s.store.AppendExpense(ctx, expense); err != nil {
			s.logger.Error("failed to save expense",
				zap.String("user_id", userID),
				zap.Float64("amount", action.Amount),
				zap.Error(err))
			continue
		}
		loggedCount++
		sessionTotals[action.Category] += action.Amount
		logged = append(logged, fmt.Sprintf("$%.2f for %s (%s)", action.Amount, action.Category, action.Description))
	}

	if loggedCount == 0 && len(duplicates) > 0 {
		return &domain.ChatResult{
			Response: fmt.Sprintf("It looks like you already logged %s today, so I didn't log it again.",
				strings.Join(duplicates, " and ")),
			Success:     false,
			ExpenseInfo: &domain.ExpenseInfo{Categories: map[string]float64{}},
		}
	}
	if loggedCount == 0 {
		return &domain.ChatResult{
			Response:    "I couldn't process any of the transactions.",
			Success:     false,
			ExpenseInfo: &domain.ExpenseInfo{Categories: map[string]float64{}},
		}
	}

	// Prefer reporting the full daily total over just this session's.
	window, _ := domain.ResolvePeriod(domain.PeriodDaily, now, "")
	summary, err := s.store.SumExpensesByCategory(ctx, userID, window.Start, window.End)
	if err != nil {
		s.logger.Warn("daily total unavailable after logging", zap.Error(err))
		var sessionTotal float64
		for _, v := range sessionTotals {
			sessionTotal += v
		}
		return &domain.ChatResult{
			Response: fmt.Sprintf("Logged: %s. Total: $%.2f", strings.Join(logged, ", "), sessionTotal),
			Success:  true,
			ExpenseInfo: &domain.ExpenseInfo{
				ActionsLogged: loggedCount,
				TotalAmount:   sessionTotal,
				Categories:    sessionTotals,
			},
		}
	}

	return &domain.ChatResult{
		Response: fmt.Sprintf("Logged: %s. Total spent today: $%.2f", strings.Join(logged, ", "), summary.Total),
		Success:  true,
		ExpenseInfo: &domain.ExpenseInfo{
			ActionsLogged: loggedCount,
			TotalAmount:   summary.Total,
			Categories:    summary.Categories,
		},
	}
}

func (s *BudgetService) handleQuery(ctx context.Context, userID, message string, now time.Time) *domain.ChatResult {
	period, monthSpec := determineQueryScope(message)
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in query, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}

	summary, err := s.store.SumExpensesByCategory(ctx, userID, window.Start, window.End)
	if err != nil {
		s.logger.Error("spending query failed", zap.String("user_id", userID), zap.Error(err))
		return &domain.ChatResult{
			Response:    "Sorry, I couldn't retrieve your transactions.",
			Success:     false,
			ExpenseInfo: &domain.ExpenseInfo{IsQueryResponse: true, Categories: map[string]float64{}},
		}
	}

	if len(summary.Categories) == 0 {
		return &domain.ChatResult{
			Response:    fmt.Sprintf("You haven't logged any transactions %s.", strings.ToLower(window.Label)),
			Success:     true,
			ExpenseInfo: &domain.ExpenseInfo{IsQueryResponse: true, Categories: map[string]float64{}},
		}
	}

	categories := make([]string, 0, len(summary.Categories))
	for category := range summary.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	details := make([]string, 0, len(categories))
	for _, category := range categories {
		details = append(details, fmt.Sprintf("$%.2f on %s", summary.Categories[category], category))
	}

	return &domain.ChatResult{
		Response: fmt.Sprintf("%s you've spent $%.2f total (%s)", window.Label, summary.Total, strings.Join(details, ", ")),
		Success:  true,
		ExpenseInfo: &domain.ExpenseInfo{
			IsQueryResponse: true,
			TotalAmount:     summary.Total,
			Categories:      summary.Categories,
		},
	}
}

// LogExpense is the structured write path, bypassing extraction. The
// category is normalized; an unknown one is repaired or reclassified from the
// description.
func (s *BudgetService) LogExpense(ctx context.Context, userID string, e *domain.Expense) (*domain.Expense, error) {
	if e.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	e.UserID = userID
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))
	if !domain.ValidCategory(e.Category) {
		if e.Category != "" {
			e.Category = repairCategory(e.Category)
		} else if e.Description != "" {
			e.Category = s.classifier.Categorize(ctx, e.Description)
		} else {
			e.Category = domain.CategoryOther
		}
	}
	return s.store.AppendExpense(ctx, e)
}

// ListExpenses returns the entries inside the resolved period window,
// newest first.
func (s *BudgetService) ListExpenses(ctx context.Context, userID string, period domain.Period, monthSpec string, now time.Time) ([]domain.Expense, error) {
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in expense list, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}
	return s.store.ListExpenses(ctx, userID, window.Start, window.End)
}

// UpdateExpense applies a sparse patch. A miss, including another user's
// entry, surfaces as not found.
func (s *BudgetService) UpdateExpense(ctx context.Context, userID string, id int64, patch domain.ExpensePatch) error {
	if patch.Amount != nil && *patch.Amount <= 0 {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if patch.Category != nil {
		normalized := strings.ToLower(strings.TrimSpace(*patch.Category))
		if !domain.ValidCategory(normalized) {
			normalized = repairCategory(normalized)
		}
		patch.Category = &normalized
	}
	ok, err := s.store.UpdateExpense(ctx, userID, id, patch)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return nil
}

// DeleteExpense removes an entry owned by the caller.
func (s *BudgetService) DeleteExpense(ctx context.Context, userID string, id int64) error {
	ok, err := s.store.DeleteExpense(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return &domain.ErrNotFound{Resource: "expense", ID: id}
	}
	return nil
}

// Summary aggregates spending by category over the resolved period window.
func (s *BudgetService) Summary(ctx context.Context, userID string, period domain.Period, monthSpec string, now time.Time) (*domain.SpendingSummary, error) {
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in spending summary, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}
	return s.store.SumExpensesByCategory(ctx, userID, window.Start, window.End)
}

// extractExpenseActions pulls transactions out of free text. Regex handles
// simple phrasings; everything else goes to the model with a tolerant JSON
// decode. Failures yield an empty slice, never an error.
func (s *BudgetService) extractExpenseActions(ctx context.Context, message string) []expenseAction {
	if strings.TrimSpace(message) == "" {
		return nil
	}

	for _, pattern := range simpleExpensePatterns {
		m := pattern.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		var amount float64
		fmt.Sscanf(m[1], "%f", &amount)
		description := ""
		if len(m) > 2 {
			description = strings.TrimSpace(m[2])
		}
		category := domain.CategoryOther
		if description != "" {
			category = s.classifier.Categorize(ctx, description)
		}
		return []expenseAction{{Amount: amount, Category: category, Description: description}}
	}

	reply, err := s.completer.Complete(ctx, extractExpensesSystem, fmt.Sprintf(extractExpensesPrompt, message))
	if err != nil {
		s.logger.Warn("expense extraction failed", zap.Error(err))
		return nil
	}

	actions := decodeActionArray(reply)

	validated := make([]expenseAction, 0, len(actions))
	for _, raw := range actions {
		amount, ok := numericField(raw, "amount")
		if !ok {
			continue
		}
		action := expenseAction{Amount: amount}
		if d, ok := raw["description"].(string); ok {
			action.Description = d
		}
		if c, ok := raw["category"].(string); ok && c != "" {
			action.Category = repairCategory(strings.ToLower(strings.TrimSpace(c)))
		} else if action.Description != "" {
			action.Category = s.classifier.Categorize(ctx, action.Description)
		} else {
			action.Category = domain.CategoryOther
		}
		validated = append(validated, action)
	}
	return validated
}

// decodeActionArray accepts a bare array, an object wrapping an array under a
// known (or any) key, or an array buried in surrounding prose.
func decodeActionArray(content string) []map[string]any {
	content = strings.TrimSpace(content)

	var asArray []map[string]any
	if err := json.Unmarshal([]byte(content), &asArray); err == nil {
		return asArray
	}

	var asObject map[string]any
	if err := json.Unmarshal([]byte(content), &asObject); err == nil {
		for _, key := range []string{"transactions", "expenses", "actions", "items"} {
			if arr := mapSlice(asObject[key]); arr != nil {
				return arr
			}
		}
		for _, value := range asObject {
			if arr := mapSlice(value); arr != nil {
				return arr
			}
		}
		return []map[string]any{asObject}
	}

	if m := arrayPattern.FindString(content); m != "" {
		if err := json.Unmarshal([]byte(m), &asArray); err == nil {
			return asArray
		}
	}
	return nil
}

func mapSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func numericField(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

// determineQueryScope maps query wording to a reporting period. Month names
// win over everything else; the default is today.
func determineQueryScope(message string) (domain.Period, string) {
	lower := strings.ToLower(message)

	for name, num := range monthNumbers {
		if strings.Contains(lower, name) {
			return domain.PeriodSpecificMonth, num
		}
	}

	switch {
	case containsAny(lower, "today", "now", "current"):
		return domain.PeriodDaily, ""
	case containsAny(lower, "week", "weekly", "7 days"):
		return domain.PeriodWeekly, ""
	case containsAny(lower, "year", "yearly", "this year"):
		return domain.PeriodYearly, ""
	case containsAny(lower, "month", "monthly"):
		return domain.PeriodMonthly, ""
	}
	return domain.PeriodDaily, ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
