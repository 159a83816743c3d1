package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

var classifierTracer = otel.Tracer("service/classifier")

// classifierOrder is the priority order for keyword matching. The first
// matching category wins, so "sushi bar" is dining even though "bar" also
// appears in other texts.
var classifierOrder = []string{
	domain.CategoryDining,
	domain.CategoryGroceries,
	domain.CategoryTransport,
	domain.CategoryEntertainment,
	domain.CategoryShopping,
	domain.CategoryHousing,
	domain.CategoryInvestment,
	domain.CategorySavings,
}

var categoryPatterns = map[string]*regexp.Regexp{
	domain.CategoryDining:        regexp.MustCompile(`(?i)\b(restaurant|dining|dinning|dine|dinner|lunch|breakfast|eat|eating|ate|food|meal|cafe|bistro|brunch|takeout|take away|food delivery|fast food|pizza|sushi|burger|taco|restaurants|dining out|eat out|bar|pub|tavern|drinks|cocktail|beer|wine)\b`),
	domain.CategoryGroceries:     regexp.MustCompile(`(?i)\b(grocery|supermarket|market|groceries|snacks|produce|dairy|meat|bakery|cereal|pantry|staples|walmart|kroger|trader joe's|whole foods)\b`),
	domain.CategoryTransport:     regexp.MustCompile(`(?i)\b(bus|train|subway|metro|taxi|uber|lyft|car|fuel|car payment|car insurance|auto insurance|vehicle payment|vehicle insurance)\b`),
	domain.CategoryEntertainment: regexp.MustCompile(`(?i)\b(movie|theatre|concert|show|game|entertainment|netflix|subscription)\b`),
	domain.CategoryShopping:      regexp.MustCompile(`(?i)\b(clothes|shoes|shopping|amazon|online|store|mall)\b`),
	domain.CategoryHousing:       regexp.MustCompile(`(?i)\b(rent|mortgage|utilities|electricity|water|internet|housing|gas bill|phone|cell phone|mobile plan|phone bill|insurance)\b`),
	domain.CategoryInvestment:    regexp.MustCompile(`(?i)\b(investment|invest|stock|bond|401k|ira)\b`),
	domain.CategorySavings:       regexp.MustCompile(`(?i)\b(save|saving)\b`),
}

const categorizeSystemPrompt = "You are a helpful assistant that categorizes expenses."

const categorizePromptTemplate = `Categorize the following expense description into one of these categories:
- dining (restaurants, cafes, bars, food delivery, etc.)
- groceries (supermarket, food stores, etc.)
- transport (bus, train, taxi, car expenses, etc.)
- entertainment (movies, shows, games, subscriptions, etc.)
- shopping (clothes, electronics, online shopping, etc.)
- housing (rent, utilities, home expenses, etc.)
- investment (stocks, bonds, etc.)
- savings (money put aside)
- other (if it doesn't fit any category)

Description: "%s"

Return ONLY the category name, nothing else.`

// Classifier maps free-text expense descriptions to the closed category set.
// Keyword matching is deterministic and tried first; the model is consulted
// only when no keyword matches, and any failure there degrades to "other".
type Classifier struct {
	completer port.Completer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewClassifier creates the classifier with all dependencies injected.
func NewClassifier(completer port.Completer, metrics *observability.Metrics, logger *zap.Logger) *Classifier {
	return &Classifier{completer: completer, metrics: metrics, logger: logger}
}

// Categorize returns the category for a description. It never fails; inputs
// nothing can place land in "other".
func (c *Classifier) Categorize(ctx context.Context, description string) string {
	if strings.TrimSpace(description) == "" {
		return domain.CategoryOther
	}

	description = strings.ToLower(description)
	for _, category := range classifierOrder {
		if categoryPatterns[category].MatchString(description) {
			return category
		}
	}

	ctx, span := classifierTracer.Start(ctx, "Classifier.Categorize")
	defer span.End()
	c.metrics.IncrClassifierFallback()

	reply, err := c.completer.Complete(ctx, categorizeSystemPrompt,
		fmt.Sprintf(categorizePromptTemplate, description))
	if err != nil {
		c.logger.Warn("category fallback failed", zap.String("description", description), zap.Error(err))
		return domain.CategoryOther
	}

	return repairCategory(strings.ToLower(strings.TrimSpace(reply)))
}

// repairCategory coerces a model reply to a valid category. A reply outside
// the closed set is matched on substrings before giving up.
func repairCategory(category string) string {
	for _, valid := range domain.ExpenseCategories {
		if category == valid {
			return category
		}
	}

	switch {
	case strings.Contains(category, "food"), strings.Contains(category, "restaurant"),
		strings.Contains(category, "eat"), strings.Contains(category, "bar"):
		return domain.CategoryDining
	case strings.Contains(category, "market"), strings.Contains(category, "grocer"):
		return domain.CategoryGroceries
	case strings.Contains(category, "travel"), strings.Contains(category, "car"),
		strings.Contains(category, "gas"):
		return domain.CategoryTransport
	case strings.Contains(category, "movie"), strings.Contains(category, "game"),
		strings.Contains(category, "fun"):
		return domain.CategoryEntertainment
	case strings.Contains(category, "cloth"), strings.Contains(category, "buy"),
		strings.Contains(category, "purchase"):
		return domain.CategoryShopping
	case strings.Contains(category, "home"), strings.Contains(category, "rent"),
		strings.Contains(category, "bill"):
		return domain.CategoryHousing
	case strings.Contains(category, "invest"), strings.Contains(category, "stock"):
		return domain.CategoryInvestment
	case strings.Contains(category, "save"):
		return domain.CategorySavings
	}
	return domain.CategoryOther
}
