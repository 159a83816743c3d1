package nutrition

import (
	"strings"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

const cacheTTL = 24 * time.Hour

// perServing holds macros for one typical serving plus its weight in grams,
// so weight units can be scaled against it.
type perServing struct {
	calories float64
	carbsG   float64
	proteinG float64
	fatG     float64
	gramsG   float64
}

// commonFoods covers the foods people log most, per serving.
var commonFoods = map[string]perServing{
	"pizza":          {300, 36, 12, 14, 120},
	"banana":         {105, 27, 1.3, 0.4, 120},
	"apple":          {95, 25, 0.5, 0.3, 180},
	"chicken breast": {165, 0, 31, 3.6, 150},
	"rice":           {200, 45, 4, 0.5, 150},
	"bread":          {80, 15, 3, 1, 30},
	"pasta":          {200, 40, 7, 1.5, 85},
	"burger":         {350, 30, 20, 17, 200},
	"soda":           {150, 39, 0, 0, 355},
	"coffee":         {5, 0, 0, 0, 240},
}

// genericPer100g is the estimate for foods the table does not know,
// per 100 grams.
var genericPer100g = perServing{150, 20, 5, 5, 100}

const (
	gramsPerOunce = 28.35
	gramsPerPound = 453.6
)

// estimateFromTable resolves macros offline. Weight units scale against the
// serving weight; count units multiply the serving.
func estimateFromTable(foodItem string, quantity float64, unit string) *domain.NutritionFacts {
	name := strings.ToLower(strings.TrimSpace(foodItem))

	entry, ok := commonFoods[name]
	if !ok {
		// Substring match lets "pepperoni pizza" resolve as pizza.
		for known, e := range commonFoods {
			if strings.Contains(name, known) {
				entry = e
				ok = true
				break
			}
		}
	}
	if !ok {
		entry = genericPer100g
	}

	var factor float64
	switch unit {
	case "g", "gram", "grams":
		factor = quantity / entry.gramsG
	case "oz", "ounce", "ounces":
		factor = quantity * gramsPerOunce / entry.gramsG
	case "lb", "lbs", "pound", "pounds":
		factor = quantity * gramsPerPound / entry.gramsG
	default:
		// Servings, pieces, slices, cups and anything else count servings.
		factor = quantity
	}

	return &domain.NutritionFacts{
		FoodItem: foodItem,
		Calories: entry.calories * factor,
		CarbsG:   entry.carbsG * factor,
		ProteinG: entry.proteinG * factor,
		FatG:     entry.fatG * factor,
	}
}
