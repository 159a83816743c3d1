package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// GetUser returns a user record by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, COALESCE(email, ''), COALESCE(name, ''), created_at
		 FROM users WHERE id = ?`, userID,
	)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.ErrNotFound{Resource: "user", ID: userID}
		}
		return nil, &domain.ErrStorageUnavailable{Op: "get user", Err: err}
	}
	return &u, nil
}

// EnsureUser creates the user row on first contact and returns it.
func (s *Store) EnsureUser(ctx context.Context, userID string) (*domain.User, error) {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, userID,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "ensure user", Err: err}
	}
	return s.GetUser(ctx, userID)
}

// GetPreferences returns a user's preferences, or empty preferences when none
// are stored yet.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT monthly_income, daily_calorie_target, weight_goal, current_weight, target_weight, preferred_name
		 FROM user_preferences WHERE user_id = ?`, userID,
	)

	var p domain.UserPreferences
	var monthlyIncome, currentWeight, targetWeight sql.NullFloat64
	var calorieTarget sql.NullInt64
	var weightGoal, preferredName sql.NullString
	err := row.Scan(&monthlyIncome, &calorieTarget, &weightGoal, &currentWeight, &targetWeight, &preferredName)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.UserPreferences{}, nil
	}
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "get preferences", Err: err}
	}

	if monthlyIncome.Valid {
		p.MonthlyIncome = &monthlyIncome.Float64
	}
	if calorieTarget.Valid {
		v := int(calorieTarget.Int64)
		p.DailyCalorieTarget = &v
	}
	if weightGoal.Valid {
		p.WeightGoal = domain.WeightGoal(weightGoal.String)
	}
	if currentWeight.Valid {
		p.CurrentWeight = &currentWeight.Float64
	}
	if targetWeight.Valid {
		p.TargetWeight = &targetWeight.Float64
	}
	p.PreferredName = preferredName.String

	return &p, nil
}

// UpsertPreferences merges the given preferences into the stored row. Only
// set fields overwrite; repeating the same call is a no-op.
func (s *Store) UpsertPreferences(ctx context.Context, userID string, prefs *domain.UserPreferences) (*domain.UserPreferences, error) {
	if _, err := s.EnsureUser(ctx, userID); err != nil {
		return nil, err
	}

	current, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	if prefs.MonthlyIncome != nil {
		current.MonthlyIncome = prefs.MonthlyIncome
	}
	if prefs.DailyCalorieTarget != nil {
		current.DailyCalorieTarget = prefs.DailyCalorieTarget
	}
	if prefs.WeightGoal != "" {
		current.WeightGoal = prefs.WeightGoal
	}
	if prefs.CurrentWeight != nil {
		current.CurrentWeight = prefs.CurrentWeight
	}
	if prefs.TargetWeight != nil {
		current.TargetWeight = prefs.TargetWeight
	}
	if prefs.PreferredName != "" {
		current.PreferredName = prefs.PreferredName
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, monthly_income, daily_calorie_target, weight_goal, current_weight, target_weight, preferred_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			monthly_income = excluded.monthly_income,
			daily_calorie_target = excluded.daily_calorie_target,
			weight_goal = excluded.weight_goal,
			current_weight = excluded.current_weight,
			target_weight = excluded.target_weight,
			preferred_name = excluded.preferred_name`,
		userID,
		nullFloat(current.MonthlyIncome),
		nullInt(current.DailyCalorieTarget),
		nullable(string(current.WeightGoal)),
		nullFloat(current.CurrentWeight),
		nullFloat(current.TargetWeight),
		nullable(current.PreferredName),
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "upsert preferences", Err: err}
	}

	return current, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
