// Package assistant stores research-assistant chat conversations. Replies
// come from a pluggable Responder; conversations belong to the user who
// started them and are invisible to everyone else.
package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// DefaultTitle names a conversation until its first message arrives.
	DefaultTitle = "New Conversation"
	// TitleLength is the number of runes of the first message kept as title.
	TitleLength = 50
)

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Messages  []*Message `json:"messages,omitempty"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Exchange is the pair of messages stored by Send.
type Exchange struct {
	UserMessage      *Message `json:"user_message"`
	AssistantMessage *Message `json:"assistant_message"`
}

// Service manages conversations
type Service struct {
	db        *sql.DB
	clock     clockwork.Clock
	responder Responder
}

// NewService creates an assistant service. A nil responder uses
// KeywordResponder.
func NewService(db *sql.DB, responder Responder, clock clockwork.Clock) *Service {
	if responder == nil {
		responder = KeywordResponder{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: db, clock: clock, responder: responder}
}

// MakeTitle derives a conversation title from its first message.
func MakeTitle(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= TitleLength {
		return text
	}
	return string([]rune(text)[:TitleLength]) + "..."
}

// Start opens a conversation for actor. An empty title becomes DefaultTitle
// and is replaced by the first message.
func (s *Service) Start(ctx context.Context, actor *auth.User, title string) (*Conversation, error) {
	if actor == nil {
		return nil, errs.Denied("start_conversation")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	now := s.clock.Now().UTC()
	c := &Conversation{UserID: actor.ID, Title: title, Active: true, CreatedAt: now, UpdatedAt: now}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ai_conversations (user_id, title, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.UserID, c.Title, true, now, now).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

// Send stores text as a user message followed by the responder's reply.
// Nothing is stored when the responder fails.
func (s *Service) Send(ctx context.Context, actor *auth.User, conversationID int64, text string) (*Exchange, error) {
	const op = "send_message"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Invalid(op, "message")
	}

	c, err := s.owned(ctx, s.db, actor, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.messages(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	reply, err := s.responder.Respond(ctx, derefAll(history), text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate reply: %w", err)
	}

	out := &Exchange{}
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		now := s.clock.Now().UTC()
		if out.UserMessage, err = insertMessage(ctx, tx, c.ID, RoleUser, text, now); err != nil {
			return err
		}
		if out.AssistantMessage, err = insertMessage(ctx, tx, c.ID, RoleAssistant, reply, now); err != nil {
			return err
		}

		title := c.Title
		if title == "" || title == DefaultTitle {
			title = MakeTitle(text)
		}
		_, err = tx.ExecContext(ctx, `UPDATE ai_conversations SET title = $1, updated_at = $2 WHERE id = $3`, title, now, c.ID)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the actor's active conversations, newest first.
func (s *Service) List(ctx context.Context, actor *auth.User) ([]*Conversation, error) {
	if actor == nil {
		return nil, errs.Denied("list_conversations")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, active, created_at, updated_at
		FROM ai_conversations
		WHERE user_id = $1 AND active = $2
		ORDER BY created_at DESC, id DESC
	`, actor.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := []*Conversation{}
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Get returns a conversation with its messages, oldest first.
func (s *Service) Get(ctx context.Context, actor *auth.User, id int64) (*Conversation, error) {
	c, err := s.owned(ctx, s.db, actor, id)
	if err != nil {
		return nil, err
	}
	if c.Messages, err = s.messages(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete hides a conversation. Its messages are kept.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.owned(ctx, tx, actor, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE ai_conversations SET active = $1, updated_at = $2 WHERE id = $3`,
			false, s.clock.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return nil
	})
}

// owned loads an active conversation belonging to actor. Anything else is
// reported as not found.
func (s *Service) owned(ctx context.Context, q database.Querier, actor *auth.User, id int64) (*Conversation, error) {
	var c Conversation
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, title, active, created_at, updated_at
		FROM ai_conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.UserID, &c.Title, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_conversation", "conversation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if actor == nil || c.UserID != actor.ID || !c.Active {
		return nil, errs.NotFoundf("get_conversation", "conversation")
	}
	return &c, nil
}

func (s *Service) messages(ctx context.Context, conversationID int64) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM ai_messages WHERE conversation_id = $1
		ORDER BY created_at, id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	out := []*Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID int64, role Role, content string, now time.Time) (*Message, error) {
	m := &Message{ConversationID: conversationID, Role: role, Content: content, CreatedAt: now}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO ai_messages (conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, conversationID, role, content, now).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return m, nil
}

func derefAll(ms []*Message) []Message {
	out := make([]Message, len(ms))
	for i, m := range ms {
		out[i] = *m
	}
	return out
}
