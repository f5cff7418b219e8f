package patient

import (
	"context"
)

// Repository is the persistence contract for patient records and their
// status audit trail.
type Repository interface {
	GetByHN(ctx context.Context, hn string) (*Record, error)

	// ApplyStatus updates the record's status and appends the history entry
	// as one atomic unit. A reader must never observe one write without the
	// other. Same-patient calls are serialized by the store; different
	// patients do not block each other.
	ApplyStatus(ctx context.Context, hn string, toStatus Status, entry *HistoryEntry, extra *TransitionExtra) error

	// ListHistory returns all history entries for a patient ordered by
	// CreatedAt ascending.
	ListHistory(ctx context.Context, hn string) ([]*HistoryEntry, error)

	Create(ctx context.Context, r *Record) error
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
}
