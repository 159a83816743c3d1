package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

// caloriesTolerance is the absolute calorie difference under which two
// similarly named entries count as the same logging event.
const caloriesTolerance = 10

// amountTolerance is the absolute dollar difference under which two similarly
// described expenses count as the same logging event.
const amountTolerance = 0.01

// DuplicateGuard suppresses near-duplicate food log writes. The check is a
// heuristic: its read-then-decide sequence is not isolated from concurrent
// writes by the same user, so two near-simultaneous duplicates can both land.
type DuplicateGuard struct {
	store   port.LedgerStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewDuplicateGuard creates the guard with all dependencies injected.
func NewDuplicateGuard(store port.LedgerStore, metrics *observability.Metrics, logger *zap.Logger) *DuplicateGuard {
	return &DuplicateGuard{store: store, metrics: metrics, logger: logger}
}

// FindDuplicate returns the existing entry the candidate duplicates, or nil.
// The lookback window is the candidate's calendar day. A failing lookup
// admits the write rather than blocking it.
func (g *DuplicateGuard) FindDuplicate(ctx context.Context, userID string, candidate *domain.ConsumedItem) *domain.ConsumedItem {
	ref := candidate.Timestamp
	if ref.IsZero() {
		ref = time.Now()
	}
	window, _ := domain.ResolvePeriod(domain.PeriodDaily, ref, "")

	entries, err := g.store.ListConsumedItems(ctx, userID, window.Start, window.End)
	if err != nil {
		g.logger.Warn("duplicate lookback failed, admitting entry",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	for i := range entries {
		if IsNearDuplicate(candidate, &entries[i]) {
			g.metrics.IncrDuplicateSuppressed()
			return &entries[i]
		}
	}
	return nil
}

// FindDuplicateExpense returns the existing expense the candidate duplicates,
// or nil. Same lookback and failure policy as FindDuplicate.
func (g *DuplicateGuard) FindDuplicateExpense(ctx context.Context, userID string, candidate *domain.Expense) *domain.Expense {
	ref := candidate.Timestamp
	if ref.IsZero() {
		ref = time.Now()
	}
	window, _ := domain.ResolvePeriod(domain.PeriodDaily, ref, "")

	entries, err := g.store.ListExpenses(ctx, userID, window.Start, window.End)
	if err != nil {
		g.logger.Warn("expense duplicate lookback failed, admitting entry",
			zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	for i := range entries {
		if IsNearDuplicateExpense(candidate, &entries[i]) {
			g.metrics.IncrDuplicateSuppressed()
			return &entries[i]
		}
	}
	return nil
}

// IsNearDuplicate reports whether two food entries describe the same logging
// event: names case-insensitively equal or one containing the other, and
// calories within the tolerance. Pure and deterministic.
func IsNearDuplicate(a, b *domain.ConsumedItem) bool {
	if !similarNames(a.FoodItem, b.FoodItem) {
		return false
	}
	diff := a.Calories - b.Calories
	if diff < 0 {
		diff = -diff
	}
	return diff < caloriesTolerance
}

// IsNearDuplicateExpense is the expense counterpart of IsNearDuplicate,
// comparing descriptions and amounts. Pure and deterministic.
func IsNearDuplicateExpense(a, b *domain.Expense) bool {
	if !similarNames(a.Description, b.Description) {
		return false
	}
	diff := a.Amount - b.Amount
	if diff < 0 {
		diff = -diff
	}
	return diff < amountTolerance
}

func similarNames(a, b string) bool {
	nameA := strings.ToLower(strings.TrimSpace(a))
	nameB := strings.ToLower(strings.TrimSpace(b))
	if nameA == "" || nameB == "" {
		return false
	}
	return nameA == nameB ||
		strings.Contains(nameA, nameB) ||
		strings.Contains(nameB, nameA)
}
