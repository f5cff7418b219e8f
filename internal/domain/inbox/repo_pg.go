package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const messageCols = `id, receiver_id, hn, type, subject, content, is_read, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ReceiverID, &m.HN, &m.Type, &m.Subject, &m.Content, &m.IsRead, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	// The insert fires the message_inserted trigger; push delivery rides on
	// that, so no explicit notify here.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO message (id, receiver_id, hn, type, subject, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		m.ID, m.ReceiverID, m.HN, m.Type, m.Subject, m.Content).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM message WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	return m, nil
}

func (r *repoPG) UnreadByReceiver(ctx context.Context, receiverID string) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM message
		WHERE receiver_id = $1 AND is_read = FALSE
		ORDER BY created_at DESC`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("list unread for %s: %w", receiverID, err)
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *repoPG) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM message WHERE receiver_id = $1 AND is_read = FALSE`,
		receiverID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", receiverID, err)
	}
	return n, nil
}

func (r *repoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE message SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark read %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *repoPG) ListByReceiver(ctx context.Context, receiverID string, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM message WHERE receiver_id = $1`, receiverID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageCols+` FROM message
		WHERE receiver_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, receiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
