package domain

import "encoding/json"

// Tool names the handlers the router can dispatch to.
type Tool string

const (
	ToolBudget       Tool = "budget"
	ToolCalories     Tool = "calories"
	ToolRestaurant   Tool = "restaurant"
	ToolConversation Tool = "conversation"
)

// KnownTool reports whether t is a dispatchable tool name.
func KnownTool(t Tool) bool {
	switch t {
	case ToolBudget, ToolCalories, ToolRestaurant, ToolConversation:
		return true
	}
	return false
}

// IntentDetails is the per-tool payload of a classified intent. The concrete
// type is selected by the intent's tool discriminator during decoding.
type IntentDetails interface {
	detailsTool() Tool
}

// BudgetDetails carries an expense the classifier already extracted alongside
// the intent. Handlers treat it as a hint, not as authoritative.
type BudgetDetails struct {
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

func (*BudgetDetails) detailsTool() Tool { return ToolBudget }

// CalorieDetails names the food the classifier spotted in the message.
type CalorieDetails struct {
	Food string `json:"food"`
}

func (*CalorieDetails) detailsTool() Tool { return ToolCalories }

// RestaurantDetails carries the cuisine preference the classifier spotted.
type RestaurantDetails struct {
	Cuisine string `json:"cuisine"`
}

func (*RestaurantDetails) detailsTool() Tool { return ToolRestaurant }

// Intent is one classified unit of work from a user message. Action is a
// free-form hint from the classifier ("log_expense", "query", "chat"); the
// dispatched handler re-derives what to do from the message text, so a wrong
// action never misroutes. Details, when present, is the tool-specific payload.
type Intent struct {
	Tool    Tool          `json:"tool"`
	Action  string        `json:"action"`
	Details IntentDetails `json:"details,omitempty"`
}

// UnmarshalJSON decodes the details payload into the concrete type named by
// the tool discriminator. A missing or malformed payload leaves Details nil
// rather than failing the whole intent.
func (i *Intent) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tool    Tool            `json:"tool"`
		Action  string          `json:"action"`
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.Tool = raw.Tool
	i.Action = raw.Action
	i.Details = nil

	if len(raw.Details) == 0 || string(raw.Details) == "null" {
		return nil
	}
	switch raw.Tool {
	case ToolBudget:
		var d BudgetDetails
		if err := json.Unmarshal(raw.Details, &d); err == nil {
			i.Details = &d
		}
	case ToolCalories:
		var d CalorieDetails
		if err := json.Unmarshal(raw.Details, &d); err == nil {
			i.Details = &d
		}
	case ToolRestaurant:
		var d RestaurantDetails
		if err := json.Unmarshal(raw.Details, &d); err == nil {
			i.Details = &d
		}
	}
	return nil
}

// DefaultIntent is the conversational fallback used whenever intent
// classification fails or yields nothing dispatchable.
func DefaultIntent() Intent {
	return Intent{Tool: ToolConversation, Action: "chat"}
}
