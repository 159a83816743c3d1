package service

import (
	"testing"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

func item(name string, calories int) *domain.ConsumedItem {
	return &domain.ConsumedItem{FoodItem: name, Calories: calories}
}

func expense(description string, amount float64) *domain.Expense {
	return &domain.Expense{Description: description, Amount: amount}
}

func TestIsNearDuplicate(t *testing.T) {
	tests := []struct {
		name string
		a, b *domain.ConsumedItem
		want bool
	}{
		{"same name same calories", item("pizza", 300), item("pizza", 300), true},
		{"case insensitive", item("Pizza", 300), item("pizza", 300), true},
		{"substring either way", item("pepperoni pizza", 300), item("pizza", 295), true},
		{"calories within tolerance", item("pizza", 300), item("pizza", 309), true},
		{"calories at tolerance boundary", item("pizza", 300), item("pizza", 310), false},
		{"different foods", item("pizza", 300), item("banana", 300), false},
		{"similar name far calories", item("pizza", 300), item("pizza", 600), false},
		{"empty name never matches", item("", 300), item("", 300), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNearDuplicate(tt.a, tt.b); got != tt.want {
				t.Errorf("IsNearDuplicate(%q/%d, %q/%d) = %v, want %v",
					tt.a.FoodItem, tt.a.Calories, tt.b.FoodItem, tt.b.Calories, got, tt.want)
			}
			// Symmetric by construction.
			if got := IsNearDuplicate(tt.b, tt.a); got != tt.want {
				t.Errorf("IsNearDuplicate is not symmetric for %s", tt.name)
			}
		})
	}
}

func TestIsNearDuplicateExpense(t *testing.T) {
	tests := []struct {
		name string
		a, b *domain.Expense
		want bool
	}{
		{"same description same amount", expense("sushi", 12), expense("sushi", 12), true},
		{"case insensitive", expense("Sushi", 12), expense("sushi", 12), true},
		{"substring either way", expense("sushi lunch", 12), expense("sushi", 12), true},
		{"amount within tolerance", expense("sushi", 12), expense("sushi", 12.005), true},
		{"amount beyond tolerance", expense("sushi", 12), expense("sushi", 12.02), false},
		{"different descriptions", expense("sushi", 12), expense("parking", 12), false},
		{"similar description far amount", expense("sushi", 12), expense("sushi", 30), false},
		{"empty description never matches", expense("", 12), expense("", 12), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNearDuplicateExpense(tt.a, tt.b); got != tt.want {
				t.Errorf("IsNearDuplicateExpense(%q/%.3f, %q/%.3f) = %v, want %v",
					tt.a.Description, tt.a.Amount, tt.b.Description, tt.b.Amount, got, tt.want)
			}
			if got := IsNearDuplicateExpense(tt.b, tt.a); got != tt.want {
				t.Errorf("IsNearDuplicateExpense is not symmetric for %s", tt.name)
			}
		})
	}
}
