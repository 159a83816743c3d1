package sqlite

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// AppendExpense inserts a new expense and returns it with its assigned id.
// A zero timestamp defaults to now.
func (s *Store) AppendExpense(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.Category = strings.ToLower(strings.TrimSpace(e.Category))

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO expenses (user_id, amount, category, description, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.Amount, e.Category, e.Description, e.Timestamp,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "append expense", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "append expense", Err: err}
	}

	out := *e
	out.ID = id
	return &out, nil
}

// ListExpenses returns a user's expenses inside [from, to], newest first.
func (s *Store) ListExpenses(ctx context.Context, userID string, from, to time.Time) ([]domain.Expense, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, amount, category, description, timestamp
		 FROM expenses
		 WHERE user_id = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "list expenses", Err: err}
	}
	defer rows.Close()

	var expenses []domain.Expense
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Timestamp); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan expense", Err: err}
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// UpdateExpense applies a sparse patch to an expense owned by userID.
// Returns false when no row matched; an empty patch succeeds without writing.
func (s *Store) UpdateExpense(ctx context.Context, userID string, id int64, patch domain.ExpensePatch) (bool, error) {
	if patch.IsEmpty() {
		// Nothing to change; report whether the row exists.
		var n int
		err := s.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM expenses WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&n)
		if err != nil {
			return false, &domain.ErrStorageUnavailable{Op: "update expense", Err: err}
		}
		return n > 0, nil
	}

	sets := []string{}
	args := []any{}
	if patch.Amount != nil {
		sets = append(sets, "amount = ?")
		args = append(args, *patch.Amount)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*patch.Category)))
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	args = append(args, id, userID)

	res, err := s.conn.ExecContext(ctx,
		`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "update expense", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "update expense", Err: err}
	}
	return n > 0, nil
}

// DeleteExpense removes an expense owned by userID. Returns false on a miss.
func (s *Store) DeleteExpense(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "delete expense", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "delete expense", Err: err}
	}
	return n > 0, nil
}

// SumExpensesByCategory aggregates a user's spending per category in [from, to].
func (s *Store) SumExpensesByCategory(ctx context.Context, userID string, from, to time.Time) (*domain.SpendingSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT category, SUM(amount)
		 FROM expenses
		 WHERE user_id = ? AND timestamp >= ? AND timestamp <= ?
		 GROUP BY category`,
		userID, from, to,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "sum expenses", Err: err}
	}
	defer rows.Close()

	summary := &domain.SpendingSummary{Categories: make(map[string]float64)}
	for rows.Next() {
		var category string
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan sum", Err: err}
		}
		summary.Categories[category] = total
		summary.Total += total
	}
	return summary, rows.Err()
}

// SumCategory returns a user's total for one category in [from, to].
func (s *Store) SumCategory(ctx context.Context, userID, category string, from, to time.Time) (float64, error) {
	var total float64
	err := s.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0)
		 FROM expenses
		 WHERE user_id = ? AND category = ? AND timestamp >= ? AND timestamp <= ?`,
		userID, category, from, to,
	).Scan(&total)
	if err != nil {
		return 0, &domain.ErrStorageUnavailable{Op: "sum category", Err: err}
	}
	return total, nil
}

// AppendConsumedItem inserts a new food log entry and returns it with its id.
// A zero timestamp defaults to now.
func (s *Store) AppendConsumedItem(ctx context.Context, item *domain.ConsumedItem) (*domain.ConsumedItem, error) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	if item.Unit == "" {
		item.Unit = "serving"
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO consumed_foods (user_id, food_item, calories, carbs, protein, fat, quantity, unit, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.UserID, item.FoodItem, item.Calories, item.CarbsG, item.ProteinG, item.FatG,
		item.Quantity, item.Unit, item.Timestamp,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "append consumed item", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "append consumed item", Err: err}
	}

	out := *item
	out.ID = id
	return &out, nil
}

// ListConsumedItems returns a user's food entries inside [from, to], newest first.
func (s *Store) ListConsumedItems(ctx context.Context, userID string, from, to time.Time) ([]domain.ConsumedItem, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, food_item, calories, carbs, protein, fat, quantity, unit, timestamp
		 FROM consumed_foods
		 WHERE user_id = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp DESC`,
		userID, from, to,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "list consumed items", Err: err}
	}
	defer rows.Close()

	var items []domain.ConsumedItem
	for rows.Next() {
		var it domain.ConsumedItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.FoodItem, &it.Calories, &it.CarbsG,
			&it.ProteinG, &it.FatG, &it.Quantity, &it.Unit, &it.Timestamp); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan consumed item", Err: err}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateConsumedItem applies a sparse patch to a food entry owned by userID.
func (s *Store) UpdateConsumedItem(ctx context.Context, userID string, id int64, patch domain.ConsumedItemPatch) (bool, error) {
	if patch.IsEmpty() {
		var n int
		err := s.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM consumed_foods WHERE id = ? AND user_id = ?`, id, userID,
		).Scan(&n)
		if err != nil {
			return false, &domain.ErrStorageUnavailable{Op: "update consumed item", Err: err}
		}
		return n > 0, nil
	}

	sets := []string{}
	args := []any{}
	if patch.FoodItem != nil {
		sets = append(sets, "food_item = ?")
		args = append(args, *patch.FoodItem)
	}
	if patch.Calories != nil {
		sets = append(sets, "calories = ?")
		args = append(args, *patch.Calories)
	}
	if patch.CarbsG != nil {
		sets = append(sets, "carbs = ?")
		args = append(args, *patch.CarbsG)
	}
	if patch.ProteinG != nil {
		sets = append(sets, "protein = ?")
		args = append(args, *patch.ProteinG)
	}
	if patch.FatG != nil {
		sets = append(sets, "fat = ?")
		args = append(args, *patch.FatG)
	}
	if patch.Quantity != nil {
		sets = append(sets, "quantity = ?")
		args = append(args, *patch.Quantity)
	}
	if patch.Unit != nil {
		sets = append(sets, "unit = ?")
		args = append(args, *patch.Unit)
	}
	args = append(args, id, userID)

	res, err := s.conn.ExecContext(ctx,
		`UPDATE consumed_foods SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "update consumed item", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "update consumed item", Err: err}
	}
	return n > 0, nil
}

// DeleteConsumedItem removes a food entry owned by userID. Returns false on a miss.
func (s *Store) DeleteConsumedItem(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM consumed_foods WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "delete consumed item", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.ErrStorageUnavailable{Op: "delete consumed item", Err: err}
	}
	return n > 0, nil
}

// SummarizeCalories totals a user's calories and macros in [from, to] with a
// per-food breakdown, largest contributor first.
func (s *Store) SummarizeCalories(ctx context.Context, userID string, from, to time.Time) (*domain.CalorieSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT food_item, SUM(calories), SUM(carbs), SUM(protein), SUM(fat), COUNT(*)
		 FROM consumed_foods
		 WHERE user_id = ? AND timestamp >= ? AND timestamp <= ?
		 GROUP BY LOWER(food_item)`,
		userID, from, to,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "summarize calories", Err: err}
	}
	defer rows.Close()

	summary := &domain.CalorieSummary{}
	for rows.Next() {
		var b domain.FoodBreakdown
		var carbs, protein, fat float64
		if err := rows.Scan(&b.FoodItem, &b.Calories, &carbs, &protein, &fat, &b.Count); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan calorie summary", Err: err}
		}
		summary.TotalCalories += b.Calories
		summary.TotalCarbsG += carbs
		summary.TotalProteinG += protein
		summary.TotalFatG += fat
		summary.Breakdown = append(summary.Breakdown, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "summarize calories", Err: err}
	}

	sort.Slice(summary.Breakdown, func(i, j int) bool {
		return summary.Breakdown[i].Calories > summary.Breakdown[j].Calories
	})

	// Macro grams keep one decimal place.
	summary.TotalCarbsG = round1(summary.TotalCarbsG)
	summary.TotalProteinG = round1(summary.TotalProteinG)
	summary.TotalFatG = round1(summary.TotalFatG)

	return summary, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
