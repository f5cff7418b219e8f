package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	UnreadByReceiver(ctx context.Context, receiverID string) ([]*Message, error)
	CountUnread(ctx context.Context, receiverID string) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	ListByReceiver(ctx context.Context, receiverID string, limit, offset int) ([]*Message, int, error)
}
