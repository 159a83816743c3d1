package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

var userTracer = otel.Tracer("service/users")

// UserService manages user records and preferences, with a read-through
// cache in front of the store.
type UserService struct {
	store  port.UserStore
	cache  port.Cache[*domain.UserPreferences]
	logger *zap.Logger
}

// NewUserService creates the user service.
func NewUserService(store port.UserStore, cache port.Cache[*domain.UserPreferences], logger *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Ensure creates the user record on first contact, idempotently.
func (s *UserService) Ensure(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.EnsureUser(ctx, userID)
}

// GetPreferences returns the user's preferences, served from cache when warm.
func (s *UserService) GetPreferences(ctx context.Context, userID string) (*domain.UserPreferences, error) {
	ctx, span := userTracer.Start(ctx, "UserService.GetPreferences")
	defer span.End()

	cacheKey := prefsCacheKey(userID)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	prefs, err := s.store.GetPreferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, prefs)
	return prefs, nil
}

// UpsertPreferences merges the supplied fields into the stored preferences
// and invalidates the cache entry.
func (s *UserService) UpsertPreferences(ctx context.Context, userID string, prefs *domain.UserPreferences) (*domain.UserPreferences, error) {
	ctx, span := userTracer.Start(ctx, "UserService.UpsertPreferences")
	defer span.End()

	if prefs.WeightGoal != "" && !domain.ValidWeightGoal(prefs.WeightGoal) {
		return nil, &domain.ErrValidation{Field: "weight_goal", Message: "must be one of lose, maintain, gain"}
	}

	updated, err := s.store.UpsertPreferences(ctx, userID, prefs)
	if err != nil {
		return nil, err
	}
	s.cache.Delete(prefsCacheKey(userID))
	return updated, nil
}

func prefsCacheKey(userID string) string {
	return fmt.Sprintf("prefs:%s", userID)
}
