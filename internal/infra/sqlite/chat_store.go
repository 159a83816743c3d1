package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/halvorsen/vita-assistant-go/internal/domain"
)

// SaveMessage appends one conversation message. The structured tool response
// is stored as JSON; a payload that fails to marshal is dropped with a log
// line rather than failing the save.
func (s *Store) SaveMessage(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	var toolResponse sql.NullString
	if msg.ToolResponse != nil {
		raw, err := json.Marshal(msg.ToolResponse)
		if err != nil {
			s.logger.Warn("dropping unmarshalable tool response", zap.Error(err))
		} else {
			toolResponse = sql.NullString{String: string(raw), Valid: true}
		}
	}

	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO chat_messages (user_id, content, is_user, timestamp, tool_used, tool_response, conversation_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.UserID, msg.Content, msg.IsUser, msg.Timestamp,
		nullable(msg.ToolUsed), toolResponse, nullable(msg.ConversationID),
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "save message", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "save message", Err: err}
	}

	out := *msg
	out.ID = id
	return &out, nil
}

// ListMessages returns a user's most recent messages in chronological order.
func (s *Store) ListMessages(ctx context.Context, userID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, content, is_user, timestamp, tool_used, tool_response, conversation_id
		 FROM (
			SELECT * FROM chat_messages
			WHERE user_id = ?
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		 ) ORDER BY timestamp ASC, id ASC`,
		userID, limit,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "list messages", Err: err}
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var toolUsed, toolResponse, conversationID sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.IsUser, &m.Timestamp,
			&toolUsed, &toolResponse, &conversationID); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan message", Err: err}
		}
		m.ToolUsed = toolUsed.String
		m.ConversationID = conversationID.String
		if toolResponse.Valid && toolResponse.String != "" {
			var tr domain.ToolResponse
			if err := json.Unmarshal([]byte(toolResponse.String), &tr); err == nil {
				m.ToolResponse = &tr
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListConversation returns every message of one conversation, oldest first.
func (s *Store) ListConversation(ctx context.Context, userID, conversationID string) ([]domain.ChatMessage, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, content, is_user, timestamp, tool_used, tool_response, conversation_id
		 FROM chat_messages
		 WHERE user_id = ? AND conversation_id = ?
		 ORDER BY timestamp ASC, id ASC`,
		userID, conversationID,
	)
	if err != nil {
		return nil, &domain.ErrStorageUnavailable{Op: "list conversation", Err: err}
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var toolUsed, toolResponse, convID sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.IsUser, &m.Timestamp,
			&toolUsed, &toolResponse, &convID); err != nil {
			return nil, &domain.ErrStorageUnavailable{Op: "scan message", Err: err}
		}
		m.ToolUsed = toolUsed.String
		m.ConversationID = convID.String
		if toolResponse.Valid && toolResponse.String != "" {
			var tr domain.ToolResponse
			if err := json.Unmarshal([]byte(toolResponse.String), &tr); err == nil {
				m.ToolResponse = &tr
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ClearMessages deletes a user's entire chat history.
func (s *Store) ClearMessages(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE user_id = ?`, userID); err != nil {
		return &domain.ErrStorageUnavailable{Op: "clear messages", Err: err}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
