package service

import (
	"context"
	"encoding/json"
	"fmt"
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

var analyzerTracer = otel.Tracer("service/analyzer")

const (
	defaultMonthlyIncome = 3000.0
	incomeLookbackDays   = 90
	overspendThreshold   = 5.0
	maxEnrichedRecs      = 4
)

const analyzerSystem = "You are a financial advisor specializing in personal budgeting using the 50/30/20 rule."

// AnalyzerService compares actual spending against a 50/30/20 allocation of
// monthly income and produces recommendations. The rule tier always runs; the
// model enrichment tier is optional and its failures are silent.
type AnalyzerService struct {
	ledger    port.LedgerStore
	users     port.UserStore
	completer port.Completer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAnalyzerService creates the budget analyzer.
func NewAnalyzerService(ledger port.LedgerStore, users port.UserStore, completer port.Completer, metrics *observability.Metrics, logger *zap.Logger) *AnalyzerService {
	return &AnalyzerService{
		ledger:    ledger,
		users:     users,
		completer: completer,
		metrics:   metrics,
		logger:    logger,
	}
}

// Analyze runs the allocation analysis for one user and month. A zero income
// argument triggers estimation from preferences or income history.
func (s *AnalyzerService) Analyze(ctx context.Context, userID, monthSpec string, income float64, now time.Time) (*domain.BudgetAnalysis, error) {
	ctx, span := analyzerTracer.Start(ctx, "AnalyzerService.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if income <= 0 {
		income = s.estimateMonthlyIncome(ctx, userID, now)
	}

	period := domain.PeriodMonthly
	if monthSpec != "" {
		period = domain.PeriodSpecificMonth
	}
	window, err := domain.ResolvePeriod(period, now, monthSpec)
	if err != nil {
		s.logger.Warn("bad month in analysis request, using current month",
			zap.String("month_spec", monthSpec), zap.Error(err))
	}

	summary, err := s.ledger.SumExpensesByCategory(ctx, userID, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	actual := domain.BucketTotals{}
	total := 0.0
	for category, amount := range summary.Categories {
		if category == domain.CategoryIncome {
			continue
		}
		total += amount
		switch domain.BucketForCategory(category) {
		case domain.BucketNeeds:
			actual.Needs += amount
		case domain.BucketSavings:
			actual.Savings += amount
		default:
			actual.Wants += amount
		}
	}

	analysis := &domain.BudgetAnalysis{
		MonthlyIncome:  income,
		TotalSpent:     total,
		Categories:     summary.Categories,
		Actual:         actual,
		ActualPercents: percentsOfIncome(actual, income),
		IdealPercents: domain.BucketTotals{
			Needs:   domain.IdealNeedsPercent,
			Wants:   domain.IdealWantsPercent,
			Savings: domain.IdealSavingsPercent,
		},
	}

	ruleRecs := ruleRecommendations(analysis)
	enriched := s.enrichRecommendations(ctx, analysis)
	analysis.Recommendations = append(enriched, ruleRecs...)

	return analysis, nil
}

// estimateMonthlyIncome prefers the stored preference, then averages income
// entries over the last ninety days, then falls back to a constant.
func (s *AnalyzerService) estimateMonthlyIncome(ctx context.Context, userID string, now time.Time) float64 {
	prefs, err := s.users.GetPreferences(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to read preferences for income estimate", zap.Error(err))
	} else if prefs.MonthlyIncome != nil && *prefs.MonthlyIncome > 0 {
		return *prefs.MonthlyIncome
	}

	from := now.AddDate(0, 0, -incomeLookbackDays)
	earned, err := s.ledger.SumCategory(ctx, userID, domain.CategoryIncome, from, now)
	if err != nil {
		s.logger.Warn("failed to read income entries for estimate", zap.Error(err))
	} else if earned > 0 {
		return earned / 3
	}

	return defaultMonthlyIncome
}

func percentsOfIncome(actual domain.BucketTotals, income float64) domain.BucketTotals {
	if income <= 0 {
		return domain.BucketTotals{}
	}
	return domain.BucketTotals{
		Needs:   actual.Needs / income * 100,
		Wants:   actual.Wants / income * 100,
		Savings: actual.Savings / income * 100,
	}
}

// ruleRecommendations is the deterministic tier. It flags wants overspend and
// savings shortfall beyond five percentage points of the ideal split.
func ruleRecommendations(a *domain.BudgetAnalysis) []domain.Recommendation {
	var recs []domain.Recommendation

	wantsDiff := a.ActualPercents.Wants - a.IdealPercents.Wants
	if wantsDiff > overspendThreshold {
		idealWants := a.MonthlyIncome * domain.IdealWantsPercent / 100
		recs = append(recs, domain.Recommendation{
			Category: domain.BucketWants,
			Type:     domain.RecommendationReduceSpending,
			Message: fmt.Sprintf("Your spending on wants is %.1f%% of your income, which is higher than the recommended %.1f%%.",
				a.ActualPercents.Wants, a.IdealPercents.Wants),
			SuggestedAction:  "Consider reducing discretionary spending.",
			PotentialSavings: a.Actual.Wants - idealWants,
		})
	}

	savingsDiff := a.ActualPercents.Savings - a.IdealPercents.Savings
	if savingsDiff < -overspendThreshold {
		idealSavings := a.MonthlyIncome * domain.IdealSavingsPercent / 100
		recs = append(recs, domain.Recommendation{
			Category: domain.BucketSavings,
			Type:     domain.RecommendationIncreaseSavings,
			Message: fmt.Sprintf("Your savings rate is %.1f%% of your income, which is below the target of %.1f%%.",
				a.ActualPercents.Savings, a.IdealPercents.Savings),
			SuggestedAction:  "Try to increase your monthly savings.",
			PotentialSavings: idealSavings - a.Actual.Savings,
		})
	}

	return recs
}

// enrichRecommendations asks the model for targeted recommendations given
// the per-category breakdown. Failures return nil so the rule tier stands
// alone.
func (s *AnalyzerService) enrichRecommendations(ctx context.Context, a *domain.BudgetAnalysis) []domain.Recommendation {
	reply, err := s.completer.Complete(ctx, analyzerSystem, enrichmentPrompt(a))
	if err != nil {
		s.logger.Warn("recommendation enrichment failed", zap.Error(err))
		return nil
	}

	var recs []domain.Recommendation
	raw := reply
	if m := arrayPattern.FindString(reply); m != "" {
		raw = m
	}
	if err := json.Unmarshal([]byte(raw), &recs); err != nil {
		s.logger.Warn("could not decode enriched recommendations", zap.Error(err))
		return nil
	}
	if len(recs) > maxEnrichedRecs {
		recs = recs[:maxEnrichedRecs]
	}
	return recs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func enrichmentPrompt(a *domain.BudgetAnalysis) string {
	idealNeeds := a.MonthlyIncome * domain.IdealNeedsPercent / 100
	idealWants := a.MonthlyIncome * domain.IdealWantsPercent / 100
	idealSavings := a.MonthlyIncome * domain.IdealSavingsPercent / 100

	type catAmount struct {
		name   string
		amount float64
	}
	categories := make([]catAmount, 0, len(a.Categories))
	for name, amount := range a.Categories {
		categories = append(categories, catAmount{name, amount})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].amount > categories[j].amount })

	var breakdown strings.Builder
	for _, c := range categories {
		pct := 0.0
		if a.MonthlyIncome > 0 {
			pct = c.amount / a.MonthlyIncome * 100
		}
		fmt.Fprintf(&breakdown, "- %s: $%.2f (%.1f%% of income)\n", capitalize(c.name), c.amount, pct)
	}

	return fmt.Sprintf(`My monthly income is $%.2f. According to the 50/30/20 rule, I should spend about $%.2f on needs, $%.2f on wants, and save $%.2f. However, my actual spending is as follows:

- Needs: $%.2f (%.1f%% of income)
- Wants: $%.2f (%.1f%% of income)
- Savings: $%.2f (%.1f%% of income)

Detailed category breakdown:
%s
Identify if any specific category is disproportionately high, and offer targeted recommendations to address the overspending.

Provide 3-4 specific, actionable recommendations to help me optimize my spending in the categories where I'm most over budget or where there's the greatest opportunity for improvement.

Format your response as a JSON array of recommendation objects with these fields:
- category: The specific spending category
- type: The recommendation type (reduce_spending, increase_savings, or insight)
- message: Clear explanation of the issue or opportunity
- suggested_action: Specific actionable advice
- potential_savings: The potential savings amount (if applicable)

Return ONLY the JSON array.`,
		a.MonthlyIncome, idealNeeds, idealWants, idealSavings,
		a.Actual.Needs, a.ActualPercents.Needs,
		a.Actual.Wants, a.ActualPercents.Wants,
		a.Actual.Savings, a.ActualPercents.Savings,
		breakdown.String())
}
