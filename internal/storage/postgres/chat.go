package postgres

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/corsair/internal/game/chat"
)

// ChatRepository persists chat history.
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a ChatRepository backed by the given pool.
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

// Append stores m and returns it with ID set.
func (r *ChatRepository) Append(ctx context.Context, m chat.Message) (chat.Message, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO chat_messages (sender, body, sent_at) VALUES ($1, $2, $3) RETURNING id`,
		m.Sender, m.Body, m.SentAt,
	).Scan(&m.ID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("inserting chat message: %w", err)
	}
	return m, nil
}

// Recent returns up to limit of the newest messages, oldest first.
func (r *ChatRepository) Recent(ctx context.Context, limit int) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, sender, body, sent_at FROM chat_messages ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying chat history: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Message, 0, limit)
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scanning chat message: %w", err)
		}
		m.SentAt = m.SentAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat history: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}
