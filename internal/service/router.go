package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/infra/observability"
	"github.com/halvorsen/vita-assistant-go/internal/port"
)

var chatTracer = otel.Tracer("service/chat")

const (
	intentHistoryDepth       = 3
	conversationHistoryDepth = 5
	defaultHistoryLimit      = 10
	maxHistoryLimit          = 200
	mergedFragmentSeparator  = " \n\n"
)

const determineIntentSystem = `You will reply with a JSON object only. Possible tools: calories, budget, restaurant, conversation.
Set "action" to "query" or "log" for calories and budget, and "chat" for conversation.
Examples:
  {"tool":"calories","action":"query"}
  {"tool":"budget","action":"log"}
  {"tool":"conversation","action":"chat"}
Return ONLY the JSON.`

const multiIntentSystem = `Extract ALL relevant actions from the message.
Return an array of JSON objects, each with tool, action, and details.

Rules for identifying intents:
1. For budget logging: Look for specific amounts of money spent or saved
2. For calorie logging: Look for specific food items with nutritional value
3. Only extract calorie intent if a SPECIFIC food item is mentioned (e.g., "burger", "apple")
4. Generic terms like "lunch", "dinner", "food" should NOT trigger calorie logging by themselves

Examples:
"I spent $10 on a burger" -> [{"tool": "budget", "action": "log", "details": {"amount": 10, "category": "dining"}}, {"tool": "calories", "action": "log", "details": {"food": "burger"}}]
"I spent $25 on lunch" -> [{"tool": "budget", "action": "log", "details": {"amount": 25, "category": "dining"}}]
"I ate a sandwich for lunch" -> [{"tool": "calories", "action": "log", "details": {"food": "sandwich"}}]
"recommend an italian restaurant" -> [{"tool": "restaurant", "action": "query", "details": {"cuisine": "italian"}}]

Return ONLY the JSON array. Return an empty array if the message is a single question or plain conversation.`

const conversationSystem = "You are a helpful and friendly assistant. Maintain a natural conversation while being ready to help with specific tasks when asked."

// ChatService is the front door for chat messages. It classifies each message
// into one or more tool intents, dispatches to the matching handler, merges
// the results, and records the exchange in conversation history.
type ChatService struct {
	history     port.ChatHistoryStore
	completer   port.Completer
	budget      *BudgetService
	calories    *CalorieService
	restaurants *RestaurantService
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewChatService wires the router with its tool handlers.
func NewChatService(history port.ChatHistoryStore, completer port.Completer, budget *BudgetService, calories *CalorieService, restaurants *RestaurantService, metrics *observability.Metrics, logger *zap.Logger) *ChatService {
	return &ChatService{
		history:     history,
		completer:   completer,
		budget:      budget,
		calories:    calories,
		restaurants: restaurants,
		metrics:     metrics,
		logger:      logger,
	}
}

// Handle processes one chat message end to end. History writes are best
// effort and never fail the request.
func (s *ChatService) Handle(ctx context.Context, userID, message, conversationID string, localTime time.Time) *domain.ChatResult {
	ctx, span := chatTracer.Start(ctx, "ChatService.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("chat", time.Since(start))
	}()

	if localTime.IsZero() {
		localTime = time.Now()
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	userMsg := s.saveMessage(ctx, &domain.ChatMessage{
		UserID:         userID,
		Content:        message,
		IsUser:         true,
		Timestamp:      localTime,
		ConversationID: conversationID,
	})

	history, err := s.history.ListMessages(ctx, userID, defaultHistoryLimit)
	if err != nil {
		s.logger.Warn("failed to load conversation history", zap.String("user_id", userID), zap.Error(err))
	}

	single, multi := s.classifyIntents(ctx, message, history)

	var result *domain.ChatResult
	if len(multi) > 0 {
		result = s.dispatchMulti(ctx, userID, message, localTime, multi)
	} else {
		result = s.dispatch(ctx, userID, message, localTime, single, history)
	}

	assistantMsg := s.saveMessage(ctx, &domain.ChatMessage{
		UserID:    userID,
		Content:   result.Response,
		IsUser:    false,
		Timestamp: time.Now(),
		ToolUsed:  result.ConversationContext,
		ToolResponse: &domain.ToolResponse{
			ExpenseInfo:           result.ExpenseInfo,
			CalorieInfo:           result.CalorieInfo,
			RestaurantSuggestions: result.RestaurantSuggestions,
		},
		ConversationID: conversationID,
	})

	if userMsg != nil && assistantMsg != nil {
		result.Messages = []domain.ChatMessage{*userMsg, *assistantMsg}
	}

	if result.Success {
		s.metrics.IncrRequest("success")
	} else {
		s.metrics.IncrRequest("error")
	}
	return result
}

// History returns recent conversation messages in chronological order.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.history.ListMessages(ctx, userID, limit)
}

// Conversation returns all messages of one conversation, oldest first.
func (s *ChatService) Conversation(ctx context.Context, userID, conversationID string) ([]domain.ChatMessage, error) {
	return s.history.ListConversation(ctx, userID, conversationID)
}

// ClearHistory wipes the user's chat history.
func (s *ChatService) ClearHistory(ctx context.Context, userID string) error {
	return s.history.ClearMessages(ctx, userID)
}

// classifyIntents runs the single best-guess and the multi-intent extraction
// concurrently. Both degrade to their defaults rather than failing.
func (s *ChatService) classifyIntents(ctx context.Context, message string, history []domain.ChatMessage) (domain.Intent, []domain.Intent) {
	single := domain.DefaultIntent()
	var multi []domain.Intent

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		single = s.determineIntent(gctx, message, history)
		return nil
	})
	g.Go(func() error {
		multi = s.extractMultipleIntents(gctx, message)
		return nil
	})
	_ = g.Wait()

	return single, multi
}

func (s *ChatService) determineIntent(ctx context.Context, message string, history []domain.ChatMessage) domain.Intent {
	var sb strings.Builder
	for _, msg := range tailMessages(history, intentHistoryDepth) {
		role := "Assistant"
		if msg.IsUser {
			role = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, msg.Content)
	}
	fmt.Fprintf(&sb, "User: %s", message)

	reply, err := s.completer.Complete(ctx, determineIntentSystem, sb.String())
	if err != nil {
		s.logger.Warn("intent classification failed, defaulting to conversation", zap.Error(err))
		return domain.DefaultIntent()
	}

	var intent domain.Intent
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &intent); err != nil || !domain.KnownTool(intent.Tool) {
		return domain.DefaultIntent()
	}
	return intent
}

func (s *ChatService) extractMultipleIntents(ctx context.Context, message string) []domain.Intent {
	reply, err := s.completer.Complete(ctx, multiIntentSystem, message)
	if err != nil {
		s.logger.Warn("multi-intent extraction failed", zap.Error(err))
		return nil
	}

	var intents []domain.Intent
	raw := reply
	if m := arrayPattern.FindString(reply); m != "" {
		raw = m
	}
	if err := json.Unmarshal([]byte(raw), &intents); err != nil {
		return nil
	}

	valid := intents[:0]
	for _, in := range intents {
		if domain.KnownTool(in.Tool) {
			valid = append(valid, in)
		}
	}
	// A lone conversation intent is not a multi-action message.
	if len(valid) == 1 && valid[0].Tool == domain.ToolConversation {
		return nil
	}
	return valid
}

func (s *ChatService) dispatch(ctx context.Context, userID, message string, localTime time.Time, intent domain.Intent, history []domain.ChatMessage) *domain.ChatResult {
	s.metrics.IncrIntentDispatched(string(intent.Tool))

	var result *domain.ChatResult
	switch intent.Tool {
	case domain.ToolBudget:
		hint, _ := intent.Details.(*domain.BudgetDetails)
		result = s.budget.HandleMessage(ctx, userID, message, localTime, hint)
	case domain.ToolCalories:
		hint, _ := intent.Details.(*domain.CalorieDetails)
		result = s.calories.HandleMessage(ctx, userID, message, localTime, hint)
	case domain.ToolRestaurant:
		hint, _ := intent.Details.(*domain.RestaurantDetails)
		result = s.restaurants.HandleMessage(ctx, userID, message, hint)
	default:
		result = s.handleConversation(ctx, message, history)
	}
	if result.ConversationContext == "" {
		result.ConversationContext = string(intent.Tool)
	}
	return result
}

// dispatchMulti runs each distinct tool once, first occurrence wins, and
// merges the fragments and payloads into a single response.
func (s *ChatService) dispatchMulti(ctx context.Context, userID, message string, localTime time.Time, intents []domain.Intent) *domain.ChatResult {
	merged := &domain.ChatResult{
		Response:            "I'll help you with that.",
		Success:             true,
		ConversationContext: "multiple_actions",
	}

	seen := make(map[domain.Tool]bool)
	var fragments []string

	for _, intent := range intents {
		if seen[intent.Tool] || intent.Tool == domain.ToolConversation {
			continue
		}
		seen[intent.Tool] = true
		s.metrics.IncrIntentDispatched(string(intent.Tool))

		switch intent.Tool {
		case domain.ToolBudget:
			hint, _ := intent.Details.(*domain.BudgetDetails)
			r := s.budget.HandleMessage(ctx, userID, message, localTime, hint)
			merged.ExpenseInfo = r.ExpenseInfo
			fragments = append(fragments, r.Response)
		case domain.ToolCalories:
			hint, _ := intent.Details.(*domain.CalorieDetails)
			r := s.calories.HandleMessage(ctx, userID, message, localTime, hint)
			merged.CalorieInfo = r.CalorieInfo
			fragments = append(fragments, r.Response)
		case domain.ToolRestaurant:
			hint, _ := intent.Details.(*domain.RestaurantDetails)
			r := s.restaurants.HandleMessage(ctx, userID, message, hint)
			merged.RestaurantSuggestions = r.RestaurantSuggestions
			fragments = append(fragments, "Here are some restaurant suggestions.")
		}
	}

	if len(fragments) > 0 {
		merged.Response = strings.Join(fragments, mergedFragmentSeparator)
	}
	return merged
}

func (s *ChatService) handleConversation(ctx context.Context, message string, history []domain.ChatMessage) *domain.ChatResult {
	var sb strings.Builder
	for _, msg := range tailMessages(history, conversationHistoryDepth) {
		role := "Assistant"
		if msg.IsUser {
			role = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, msg.Content)
	}
	fmt.Fprintf(&sb, "User: %s", message)

	reply, err := s.completer.Complete(ctx, conversationSystem, sb.String())
	if err != nil {
		s.logger.Error("conversation completion failed", zap.Error(err))
		return &domain.ChatResult{
			Response: "I'm having trouble processing that right now.",
			Success:  false,
		}
	}
	return &domain.ChatResult{
		Response:            reply,
		Success:             true,
		ConversationContext: string(domain.ToolConversation),
	}
}

// saveMessage persists a history entry best effort, returning nil on failure.
func (s *ChatService) saveMessage(ctx context.Context, msg *domain.ChatMessage) *domain.ChatMessage {
	saved, err := s.history.SaveMessage(ctx, msg)
	if err != nil {
		s.logger.Warn("failed to save chat message",
			zap.String("user_id", msg.UserID),
			zap.Bool("is_user", msg.IsUser),
			zap.Error(err))
		return nil
	}
	return saved
}

func tailMessages(history []domain.ChatMessage, n int) []domain.ChatMessage {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// extractJSONObject pulls the first {...} span out of a completion so
// surrounding prose does not break decoding.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
