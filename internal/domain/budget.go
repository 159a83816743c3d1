package domain

// Allocation buckets for the 50/30/20 analysis.
const (
	BucketNeeds   = "needs"
	BucketWants   = "wants"
	BucketSavings = "savings"
)

// Ideal allocation percentages per bucket.
const (
	IdealNeedsPercent   = 50.0
	IdealWantsPercent   = 30.0
	IdealSavingsPercent = 20.0
)

// bucketByCategory maps ledger categories to allocation buckets. Categories
// not listed here count as wants.
var bucketByCategory = map[string]string{
	CategoryGroceries:     BucketNeeds,
	CategoryHousing:       BucketNeeds,
	CategoryTransport:     BucketNeeds,
	"utilities":           BucketNeeds,
	"rent":                BucketNeeds,
	"healthcare":          BucketNeeds,
	CategoryDining:        BucketWants,
	"food":                BucketWants,
	CategoryEntertainment: BucketWants,
	CategoryShopping:      BucketWants,
	CategoryOther:         BucketWants,
	CategorySavings:       BucketSavings,
	CategoryInvestment:    BucketSavings,
}

// BucketForCategory returns the allocation bucket for a ledger category.
// Unknown categories are wants.
func BucketForCategory(category string) string {
	if b, ok := bucketByCategory[category]; ok {
		return b
	}
	return BucketWants
}

// BucketTotals is actual spending per allocation bucket.
type BucketTotals struct {
	Needs   float64 `json:"needs"`
	Wants   float64 `json:"wants"`
	Savings float64 `json:"savings"`
}

// Recommendation is one budget finding, from either the rule tier or the
// model enrichment tier.
type Recommendation struct {
	Category         string  `json:"category"`
	Type             string  `json:"type"`
	Message          string  `json:"message"`
	SuggestedAction  string  `json:"suggested_action,omitempty"`
	PotentialSavings float64 `json:"potential_savings,omitempty"`
}

// Recommendation types.
const (
	RecommendationReduceSpending  = "reduce_spending"
	RecommendationIncreaseSavings = "increase_savings"
	RecommendationInsight         = "insight"
)

// BudgetAnalysis is the full analyzer result for one user and window.
type BudgetAnalysis struct {
	MonthlyIncome   float64            `json:"monthly_income"`
	TotalSpent      float64            `json:"total_spent"`
	Categories      map[string]float64 `json:"categories"`
	Actual          BucketTotals       `json:"actual"`
	ActualPercents  BucketTotals       `json:"actual_percents"`
	IdealPercents   BucketTotals       `json:"ideal_percents"`
	Recommendations []Recommendation   `json:"recommendations"`
}
