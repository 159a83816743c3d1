package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// ListRestaurants returns restaurants filtered by cuisine and price level,
// best rated first. Empty filters match everything.
func (s *Store) ListRestaurants(ctx context.Context, cuisine, priceLevel string, limit int) ([]domain.Restaurant, error) {
	if limit <= 0 {
		limit = 5
	}

	query := `SELECT id, name, cuisine_type, price_level, COALESCE(rating, 0),
			COALESCE(address, ''), COALESCE(description, ''), highlights
		 FROM restaurants WHERE 1=1`
	args := []any{}
	if cuisine != "" {
		query += ` AND LOWER(cuisine_type) = ?`
		args = append(args, strings.ToLower(cuisine))
	}
	if priceLevel != "" {
		query += ` AND price_level = ?`
		args = append(args, priceLevel)
	}
	query += ` ORDER BY rating DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "list restaurants", Err: err}
	}
	defer rows.Close()

	var restaurants []domain.Restaurant
	for rows.Next() {
		var r domain.Restaurant
		var highlights sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.CuisineType, &r.PriceLevel, &r.Rating,
			&r.Address, &r.Description, &highlights); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan restaurant", Err: err}
		}
		if highlights.Valid && highlights.String != "" {
			_ = json.Unmarshal([]byte(highlights.String), &r.Highlights)
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

// SearchRestaurants matches the query against name, cuisine and description,
// best rated first.
func (s *Store) SearchRestaurants(ctx context.Context, query string, limit int) ([]domain.Restaurant, error) {
	if limit <= 0 {
		limit = 5
	}
	like := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, cuisine_type, price_level, COALESCE(rating, 0),
			COALESCE(address, ''), COALESCE(description, ''), highlights
		 FROM restaurants
		 WHERE LOWER(name) LIKE ? OR LOWER(cuisine_type) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?
		 ORDER BY rating DESC LIMIT ?`,
		like, like, like, limit,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "search restaurants", Err: err}
	}
	defer rows.Close()

	var restaurants []domain.Restaurant
	for rows.Next() {
		var r domain.Restaurant
		var highlights sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.CuisineType, &r.PriceLevel, &r.Rating,
			&r.Address, &r.Description, &highlights); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan restaurant", Err: err}
		}
		if highlights.Valid && highlights.String != "" {
			_ = json.Unmarshal([]byte(highlights.String), &r.Highlights)
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

// SeedRestaurants inserts restaurant records if the table is empty. Used at
// startup so recommendations work out of the box.
func (s *Store) SeedRestaurants(ctx context.Context, restaurants []domain.Restaurant) error {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants`).Scan(&n); err != nil {
		return &domain.ErrStorageUnavailable{Op: "seed restaurants", Err: err}
	}
	if n > 0 {
		return nil
	}

	for _, r := range restaurants {
		var highlights sql.NullString
		if len(r.Highlights) > 0 {
			raw, err := json.Marshal(r.Highlights)
			if err == nil {
				highlights = sql.NullString{String: string(raw), Valid: true}
			}
		}
		_, err := s.conn.ExecContext(ctx,
			`INSERT INTO restaurants (name, cuisine_type, price_level, rating, address, description, highlights)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.Name, r.CuisineType, r.PriceLevel, r.Rating, r.Address, r.Description, highlights,
		)
		if err != nil {
			return &domain.ErrStorageUnavailable{Op: "seed restaurants", Err: err}
		}
	}
	return nil
}
