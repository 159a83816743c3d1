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

var restaurantTracer = otel.Tracer("service/restaurants")

const suggestionLimit = 5

var recommendationPhrases = []string{
	"recommend", "suggestion", "where to eat", "place to eat",
	"restaurant", "food place", "dining", "eat out", "where should i eat",
	"good place", "best place", "where can i get", "looking for food",
}

const extractCuisineSystem = "You are a helpful assistant that extracts cuisine preferences from messages."

const extractCuisinePrompt = `Extract the cuisine type or food preference from the following message. Return ONLY the cuisine type as a single word or short phrase (e.g., 'Italian', 'Mexican', 'seafood', etc.). If no specific cuisine is mentioned, return 'any'.

Message: "%s"`

var cuisinePunct = regexp.MustCompile(`["'.,;:]`)

// RestaurantService recommends places to eat. Recommendations come from the
// catalog store, with the model used for cuisine extraction and for phrasing
// the reply.
type RestaurantService struct {
	store     port.RestaurantStore
	completer port.Completer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewRestaurantService creates the restaurant service.
func NewRestaurantService(store port.RestaurantStore, completer port.Completer, metrics *observability.Metrics, logger *zap.Logger) *RestaurantService {
	return &RestaurantService{
		store:     store,
		completer: completer,
		metrics:   metrics,
		logger:    logger,
	}
}

// IsRecommendationRequest reports whether a message asks for a place to eat.
func (s *RestaurantService) IsRecommendationRequest(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range recommendationPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// List queries the catalog directly, for the restaurants endpoint.
func (s *RestaurantService) List(ctx context.Context, cuisine, priceLevel string, limit int) ([]domain.Restaurant, error) {
	if limit <= 0 || limit > 50 {
		limit = suggestionLimit
	}
	return s.store.ListRestaurants(ctx, cuisine, priceLevel, limit)
}

// Search matches free text against the catalog, for the search endpoint.
func (s *RestaurantService) Search(ctx context.Context, query string, limit int) ([]domain.Restaurant, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &domain.ErrValidation{Field: "q", Message: "must not be empty"}
	}
	if limit <= 0 || limit > 50 {
		limit = suggestionLimit
	}
	return s.store.SearchRestaurants(ctx, query, limit)
}

// HandleMessage answers a restaurant chat message with catalog-backed
// suggestions. A cuisine in the hint skips the extraction completion call.
func (s *RestaurantService) HandleMessage(ctx context.Context, userID, message string, hint *domain.RestaurantDetails) *domain.ChatResult {
	ctx, span := restaurantTracer.Start(ctx, "RestaurantService.HandleMessage")
	defer span.End()

	var cuisine string
	if hint != nil && strings.TrimSpace(hint.Cuisine) != "" {
		cuisine = strings.ToLower(strings.TrimSpace(hint.Cuisine))
	} else {
		cuisine = s.extractCuisine(ctx, message)
	}

	restaurants, err := s.store.ListRestaurants(ctx, cuisine, "", suggestionLimit)
	if err != nil {
		s.logger.Error("restaurant lookup failed", zap.String("cuisine", cuisine), zap.Error(err))
		return &domain.ChatResult{
			Response: "Sorry, I couldn't provide restaurant recommendations at the moment. Please try again later.",
			Success:  false,
		}
	}
	if len(restaurants) == 0 && cuisine != "" {
		restaurants, err = s.store.ListRestaurants(ctx, "", "", suggestionLimit)
		if err != nil {
			s.logger.Error("restaurant fallback lookup failed", zap.Error(err))
		}
	}
	if len(restaurants) == 0 {
		return &domain.ChatResult{
			Response: "I couldn't find any restaurants to recommend at the moment.",
			Success:  false,
		}
	}

	suggestions := toSuggestions(restaurants)

	reply, err := s.completer.Complete(ctx, recommendationSystem(restaurants), message)
	if err != nil {
		s.logger.Warn("recommendation phrasing failed, using plain list", zap.Error(err))
		reply = plainListResponse(restaurants)
	}

	return &domain.ChatResult{
		Response:              reply,
		Success:               true,
		RestaurantSuggestions: suggestions,
	}
}

// extractCuisine asks the model for the cuisine in the message. Any failure
// means no preference.
func (s *RestaurantService) extractCuisine(ctx context.Context, message string) string {
	reply, err := s.completer.Complete(ctx, extractCuisineSystem, fmt.Sprintf(extractCuisinePrompt, message))
	if err != nil {
		s.logger.Warn("cuisine extraction failed", zap.Error(err))
		return ""
	}

	cuisine := strings.ToLower(strings.TrimSpace(reply))
	cuisine = cuisinePunct.ReplaceAllString(cuisine, "")

	words := strings.Fields(cuisine)
	if len(words) > 2 || containsAny(cuisine, "or", "and", "with", "also") {
		if len(words) > 0 {
			cuisine = words[0]
		}
	}
	if cuisine == "any" {
		return ""
	}
	return cuisine
}

func recommendationSystem(restaurants []domain.Restaurant) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful restaurant recommender. Based on the user's request, recommend restaurants from this list and explain why they might enjoy them:\n\nAvailable restaurants:\n")
	for i, r := range restaurants {
		fmt.Fprintf(&sb, "%d. %s - %s cuisine, %s price, %.1f rating\n", i+1, r.Name, r.CuisineType, r.PriceLevel, r.Rating)
		if r.Address != "" {
			fmt.Fprintf(&sb, "   Address: %s\n", r.Address)
		}
		if len(r.Highlights) > 0 {
			fmt.Fprintf(&sb, "   Highlights: %s\n", strings.Join(topHighlights(r.Highlights), ", "))
		}
	}
	sb.WriteString("\nFormat your response in a friendly, conversational way. Mention 2-3 restaurants from the list with brief descriptions. If the user mentioned a specific cuisine, emphasize restaurants of that type.")
	return sb.String()
}

func plainListResponse(restaurants []domain.Restaurant) string {
	var sb strings.Builder
	sb.WriteString("Here are some restaurants you might like:\n\n")
	for i, r := range restaurants {
		fmt.Fprintf(&sb, "%d. %s - %s cuisine\n", i+1, r.Name, r.CuisineType)
		fmt.Fprintf(&sb, "   Rating: %.1f stars, Price: %s\n", r.Rating, r.PriceLevel)
		if r.Address != "" {
			fmt.Fprintf(&sb, "   Address: %s\n", r.Address)
		}
		if len(r.Highlights) > 0 {
			fmt.Fprintf(&sb, "   Known for: %s\n", strings.Join(topHighlights(r.Highlights), ", "))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func toSuggestions(restaurants []domain.Restaurant) []domain.RestaurantSuggestion {
	suggestions := make([]domain.RestaurantSuggestion, 0, len(restaurants))
	for _, r := range restaurants {
		suggestions = append(suggestions, domain.RestaurantSuggestion{
			Name:        r.Name,
			CuisineType: r.CuisineType,
			PriceLevel:  r.PriceLevel,
			Highlights:  topHighlights(r.Highlights),
		})
	}
	return suggestions
}

func topHighlights(highlights []string) []string {
	if len(highlights) > 3 {
		return highlights[:3]
	}
	return highlights
}
