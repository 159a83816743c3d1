package nutrition

import (
	"math"
	"testing"
)

func TestEstimateKnownFoodServings(t *testing.T) {
	facts := estimateFromTable("pizza", 2, "slices")
	if facts.Calories != 600 {
		t.Errorf("expected 600 calories for 2 pizza servings, got %v", facts.Calories)
	}
	if facts.ProteinG != 24 {
		t.Errorf("expected 24g protein, got %v", facts.ProteinG)
	}
}

func TestEstimateSubstringMatch(t *testing.T) {
	facts := estimateFromTable("pepperoni pizza", 1, "serving")
	if facts.Calories != 300 {
		t.Errorf("expected pepperoni pizza to resolve as pizza, got %v calories", facts.Calories)
	}
}

func TestEstimateGramsScaleAgainstServingWeight(t *testing.T) {
	// 240g of pizza is two 120g servings.
	facts := estimateFromTable("pizza", 240, "g")
	if facts.Calories != 600 {
		t.Errorf("expected 600 calories for 240g pizza, got %v", facts.Calories)
	}
}

func TestEstimateOunces(t *testing.T) {
	facts := estimateFromTable("chicken breast", 150/28.35, "oz")
	if math.Abs(facts.Calories-165) > 0.01 {
		t.Errorf("expected one serving worth of calories, got %v", facts.Calories)
	}
}

func TestEstimateUnknownFoodUsesGeneric(t *testing.T) {
	facts := estimateFromTable("dragonfruit smoothie bowl", 1, "serving")
	if facts.Calories != 150 {
		t.Errorf("expected generic estimate of 150 calories, got %v", facts.Calories)
	}
}
