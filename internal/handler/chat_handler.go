package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
	"github.com/halvorsen/vita-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Chat — POST /v1/chat and conversation history
// ============================================================

func chatHandler(svc *service.ChatService, users *service.UserService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		var req struct {
			Message        string `json:"message"`
			ConversationID string `json:"conversation_id,omitempty"`
			LocalTime      string `json:"local_time,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		var localTime time.Time
		if req.LocalTime != "" {
			t, err := time.Parse(time.RFC3339, req.LocalTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "local_time must be RFC3339")
				return
			}
			localTime = t
		}

		// First contact creates the user record; failure here should not
		// block the chat itself.
		if _, err := users.Ensure(ctx, userID); err != nil {
			logger.Warn("could not ensure user record",
				zap.String("user_id", userID), zap.Error(err))
		}

		result := svc.Handle(ctx, userID, req.Message, req.ConversationID, localTime)
		writeJSON(w, http.StatusOK, result)
	}
}

func chatHistoryHandler(svc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/chat/history")
		defer span.End()

		userID := UserIDFromContext(ctx)
		limit := parseLimit(r, 0)

		messages, err := svc.History(ctx, userID, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if messages == nil {
			messages = []domain.ChatMessage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
	}
}

func chatHistoryClearHandler(svc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/chat/history")
		defer span.End()

		userID := UserIDFromContext(ctx)
		if err := svc.ClearHistory(ctx, userID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func chatConversationHandler(svc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/chat/conversations/{conversationID}")
		defer span.End()

		userID := UserIDFromContext(ctx)
		conversationID := chi.URLParam(r, "conversationID")
		if conversationID == "" {
			writeError(w, http.StatusBadRequest, "conversationID is required")
			return
		}

		messages, err := svc.Conversation(ctx, userID, conversationID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if messages == nil {
			messages = []domain.ChatMessage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"conversation_id": conversationID,
			"messages":        messages,
		})
	}
}
