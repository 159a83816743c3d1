// Package nutrition resolves macros for food portions. Lookups go to an
// external nutrition API when configured and fall back to a built-in table of
// common foods, with results cached in-process.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/resilience"
)

var tracer = otel.Tracer("infra/nutrition")

// CacheRecorder counts nutrition cache hits and misses.
type CacheRecorder interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
}

// Client implements the NutritionLookup port.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	cache      *ristretto.Cache
	metrics    CacheRecorder
	logger     *zap.Logger
}

// apiResponse is the wire shape of the nutrition API (api-ninjas style).
type apiResponse []struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	CarbsG   float64 `json:"carbohydrates_total_g"`
	ProteinG float64 `json:"protein_g"`
	FatG     float64 `json:"fat_total_g"`
}

// New builds a nutrition client. With an empty baseURL every lookup resolves
// from the built-in table.
func New(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics CacheRecorder, logger *zap.Logger) (*Client, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create nutrition cache: %w", err)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// Lookup resolves macros for quantity+unit of foodItem, already scaled to the
// full portion. API failures degrade to the built-in table silently.
func (c *Client) Lookup(ctx context.Context, foodItem string, quantity float64, unit string) (*domain.NutritionFacts, error) {
	ctx, span := tracer.Start(ctx, "NutritionClient.Lookup")
	defer span.End()
	span.SetAttributes(attribute.String("food.item", foodItem))

	if quantity <= 0 {
		quantity = 1
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = "serving"
	}
	key := fmt.Sprintf("%s|%g|%s", strings.ToLower(foodItem), quantity, unit)

	if cached, ok := c.cache.Get(key); ok {
		c.metrics.IncrCacheHit("nutrition")
		facts := cached.(domain.NutritionFacts)
		return &facts, nil
	}
	c.metrics.IncrCacheMiss("nutrition")

	if c.baseURL != "" {
		facts, err := c.lookupAPI(ctx, foodItem, quantity, unit)
		if err == nil {
			c.cache.SetWithTTL(key, *facts, 1, cacheTTL)
			return facts, nil
		}
		c.logger.Debug("nutrition API lookup failed, using fallback table",
			zap.String("food_item", foodItem), zap.Error(err))
	}

	facts := estimateFromTable(foodItem, quantity, unit)
	c.cache.SetWithTTL(key, *facts, 1, cacheTTL)
	return facts, nil
}

// requestURL joins the configured base URL (already versioned, e.g. ".../v1")
// with the nutrition endpoint.
func (c *Client) requestURL(query string) string {
	return fmt.Sprintf("%s/nutrition?query=%s", c.baseURL, url.QueryEscape(query))
}

func (c *Client) lookupAPI(ctx context.Context, foodItem string, quantity float64, unit string) (*domain.NutritionFacts, error) {
	query := foodItem
	if unit != "serving" && unit != "piece" && unit != "pieces" {
		query = fmt.Sprintf("%g %s %s", quantity, unit, foodItem)
	}

	var parsed apiResponse
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			reqURL := c.requestURL(query)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return err
			}
			if c.apiKey != "" {
				req.Header.Set("X-Api-Key", c.apiKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("nutrition API returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&parsed)
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "nutrition", Err: err}
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("nutrition API returned no match for %q", query)
	}

	facts := &domain.NutritionFacts{FoodItem: foodItem}
	for _, row := range parsed {
		facts.Calories += row.Calories
		facts.CarbsG += row.CarbsG
		facts.ProteinG += row.ProteinG
		facts.FatG += row.FatG
	}
	// Per-portion query already encodes weight units; multiply counts only.
	if unit == "serving" || unit == "piece" || unit == "pieces" {
		facts.Calories *= quantity
		facts.CarbsG *= quantity
		facts.ProteinG *= quantity
		facts.FatG *= quantity
	}
	return facts, nil
}
