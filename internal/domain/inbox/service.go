package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("message not found")

var validTypes = map[string]bool{
	TypeMessage: true, TypeDirect: true, TypeSystem: true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateMessage(ctx context.Context, m *Message) error {
	if m.ReceiverID == "" {
		return fmt.Errorf("receiver_id is required")
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if m.Type == "" {
		m.Type = TypeMessage
	}
	if !validTypes[m.Type] {
		return fmt.Errorf("invalid message type %q", m.Type)
	}
	return s.repo.Create(ctx, m)
}

// Unread returns the receiver's unread messages newest first, plus the count.
// The count is what drives popup decisions downstream, so it always reflects
// this exact snapshot.
func (s *Service) Unread(ctx context.Context, receiverID string) ([]*Message, int, error) {
	items, err := s.repo.UnreadByReceiver(ctx, receiverID)
	if err != nil {
		return nil, 0, err
	}
	return items, len(items), nil
}

func (s *Service) CountUnread(ctx context.Context, receiverID string) (int, error) {
	return s.repo.CountUnread(ctx, receiverID)
}

func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByReceiver(ctx context.Context, receiverID string, limit, offset int) ([]*Message, int, error) {
	return s.repo.ListByReceiver(ctx, receiverID, limit, offset)
}
