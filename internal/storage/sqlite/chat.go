package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/cory-johannsen/corsair/internal/game/chat"
)

// ChatRepository persists chat history.
type ChatRepository struct {
	db *sql.DB
}

// NewChatRepository creates a ChatRepository backed by db.
func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// Append stores m and returns it with ID set.
func (r *ChatRepository) Append(ctx context.Context, m chat.Message) (chat.Message, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (sender, body, sent_at) VALUES (?, ?, ?)`,
		m.Sender, m.Body, formatTime(m.SentAt),
	)
	if err != nil {
		return chat.Message{}, fmt.Errorf("inserting chat message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return chat.Message{}, fmt.Errorf("reading chat message id: %w", err)
	}
	m.SentAt = m.SentAt.UTC()
	return m, nil
}

// Recent returns up to limit of the newest messages, oldest first.
func (r *ChatRepository) Recent(ctx context.Context, limit int) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sender, body, sent_at FROM chat_messages ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, limit)
	for rows.Next() {
		var (
			m    chat.Message
			sent string
		)
		if err := rows.Scan(&m.ID, &m.Sender, &m.Body, &sent); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		if m.SentAt, err = parseTime(sent); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat history: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}
