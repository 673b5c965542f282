package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookrecorder/internal/model"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Send(ctx context.Context, senderID, receiverID int64, content string) (*model.PrivateMessage, error) {
	query := `
		INSERT INTO private_messages (sender_id, receiver_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, content, is_read, created_at
	`
	var msg model.PrivateMessage
	if err := r.db.GetContext(ctx, &msg, query, senderID, receiverID, content); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListConversation returns messages exchanged between userID and peerID, newest first.
func (r *messageRepository) ListConversation(ctx context.Context, userID, peerID int64, cursor *string, limit int) ([]model.PrivateMessage, *string, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT id, sender_id, receiver_id, content, is_read, created_at
			FROM private_messages
			WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`
		args = []interface{}{userID, peerID, limit + 1}
	} else {
		ts, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = `
			SELECT id, sender_id, receiver_id, content, is_read, created_at
			FROM private_messages
			WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
			  AND (created_at, id) < ($3, $4)
			ORDER BY created_at DESC, id DESC
			LIMIT $5
		`
		args = []interface{}{userID, peerID, ts, id, limit + 1}
	}

	messages := []model.PrivateMessage{}
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list conversation: %w", err)
	}

	var nextCursor *string
	if len(messages) > limit {
		messages = messages[:limit]
		last := messages[len(messages)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		nextCursor = &c
	}
	return messages, nextCursor, nil
}

// ListConversations returns the inbox: one row per peer with the latest message.
func (r *messageRepository) ListConversations(ctx context.Context, userID int64, limit int) ([]model.Conversation, error) {
	query := `
		WITH pairs AS (
			SELECT m.*,
			       CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS peer_id
			FROM private_messages m
			WHERE m.sender_id = $1 OR m.receiver_id = $1
		), latest AS (
			SELECT DISTINCT ON (peer_id) *
			FROM pairs
			ORDER BY peer_id, created_at DESC, id DESC
		)
		SELECT l.id, l.sender_id, l.receiver_id, l.content, l.is_read, l.created_at,
		       u.id AS "peer.id", u.username AS "peer.username",
		       u.display_name AS "peer.display_name", u.level AS "peer.level",
		       (SELECT COUNT(*) FROM private_messages p
		         WHERE p.sender_id = l.peer_id AND p.receiver_id = $1 AND NOT p.is_read) AS unread_count
		FROM latest l
		JOIN users u ON u.id = l.peer_id
		ORDER BY l.created_at DESC
		LIMIT $2
	`
	type conversationRow struct {
		ID          int64             `db:"id"`
		SenderID    int64             `db:"sender_id"`
		ReceiverID  int64             `db:"receiver_id"`
		Content     string            `db:"content"`
		IsRead      bool              `db:"is_read"`
		CreatedAt   time.Time         `db:"created_at"`
		Peer        model.UserSummary `db:"peer"`
		UnreadCount int               `db:"unread_count"`
	}
	var rows []conversationRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	conversations := make([]model.Conversation, len(rows))
	for i, row := range rows {
		conversations[i] = model.Conversation{
			Peer: row.Peer,
			LastMessage: model.PrivateMessage{
				ID:         row.ID,
				SenderID:   row.SenderID,
				ReceiverID: row.ReceiverID,
				Content:    row.Content,
				IsRead:     row.IsRead,
				CreatedAt:  row.CreatedAt,
			},
			UnreadCount: row.UnreadCount,
		}
	}
	return conversations, nil
}

// MarkConversationRead marks everything peerID sent to userID as read.
func (r *messageRepository) MarkConversationRead(ctx context.Context, userID, peerID int64) error {
	query := `
		UPDATE private_messages SET is_read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false
	`
	if _, err := r.db.ExecContext(ctx, query, userID, peerID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}

func (r *messageRepository) PostChat(ctx context.Context, userID int64, content string) (*model.ChatMessage, error) {
	query := `
		INSERT INTO general_chat (user_id, content)
		VALUES ($1, $2)
		RETURNING id, user_id, content, created_at
	`
	var msg model.ChatMessage
	if err := r.db.GetContext(ctx, &msg, query, userID, content); err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return &msg, nil
}

// ListChat returns the general chat, newest first.
func (r *messageRepository) ListChat(ctx context.Context, cursor *string, limit int) ([]model.ChatMessage, *string, error) {
	var query string
	var args []interface{}

	if cursor == nil {
		query = `
			SELECT g.id, g.user_id, g.content, g.created_at,
			       u.id AS "author.id", u.username AS "author.username",
			       u.display_name AS "author.display_name", u.level AS "author.level"
			FROM general_chat g
			JOIN users u ON u.id = g.user_id
			ORDER BY g.created_at DESC, g.id DESC
			LIMIT $1
		`
		args = []interface{}{limit + 1}
	} else {
		ts, id, err := parseCursor(*cursor)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid cursor: %w", err)
		}
		query = `
			SELECT g.id, g.user_id, g.content, g.created_at,
			       u.id AS "author.id", u.username AS "author.username",
			       u.display_name AS "author.display_name", u.level AS "author.level"
			FROM general_chat g
			JOIN users u ON u.id = g.user_id
			WHERE (g.created_at, g.id) < ($1, $2)
			ORDER BY g.created_at DESC, g.id DESC
			LIMIT $3
		`
		args = []interface{}{ts, id, limit + 1}
	}

	type chatRow struct {
		model.ChatMessage
		Author model.UserSummary `db:"author"`
	}
	var rows []chatRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, nil, fmt.Errorf("list chat: %w", err)
	}

	var nextCursor *string
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		c := formatCursor(last.CreatedAt, last.ID)
		nextCursor = &c
	}

	messages := make([]model.ChatMessage, len(rows))
	for i, row := range rows {
		msg := row.ChatMessage
		author := row.Author
		msg.Author = &author
		messages[i] = msg
	}
	return messages, nextCursor, nil
}
