package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrNotFound means the HN does not resolve to a patient record.
	ErrNotFound = errors.New("patient not found")
	// ErrPersistence means the atomic status+history write could not
	// complete. Transient; the caller may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidStatus means the requested state is not in the canonical set.
	ErrInvalidStatus = errors.New("invalid status")
)

// IsNotFound reports whether err means the patient does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPersistence reports whether err is a transient store failure.
func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

// Notifier receives a callback after every accepted transition. Implemented
// by the notification wiring (system inbox message + optional email);
// failures there must not fail the transition.
type Notifier interface {
	StatusChanged(ctx context.Context, rec *Record, entry *HistoryEntry)
}

// Service is the status transition engine. It validates a requested state,
// applies it together with exactly one audit entry, and triggers the
// configured notification side effect.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "transition_engine").Logger()}
}

// SetNotifier installs the post-transition side effect. Optional.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// ApplyTransition moves a patient to toStatus and appends one history entry.
// Any canonical state is reachable from any other, including backward moves;
// the only guarantee is the monotonic audit append, not monotonic progress.
func (s *Service) ApplyTransition(ctx context.Context, hn string, toStatus Status, changedBy, role string, extra *TransitionExtra) (*HistoryEntry, error) {
	if hn == "" {
		return nil, fmt.Errorf("hn is required")
	}
	if !IsValid(toStatus) {
		return nil, fmt.Errorf("status %q: %w", toStatus, ErrInvalidStatus)
	}

	entry := &HistoryEntry{ChangedBy: changedBy, Role: role}
	if err := s.repo.ApplyStatus(ctx, hn, toStatus, entry, extra); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.logger.Info().
		Str("hn", hn).
		Str("to_status", string(toStatus)).
		Str("changed_by", changedBy).
		Str("role", role).
		Msg("status transition applied")

	if s.notifier != nil {
		rec, err := s.repo.GetByHN(ctx, hn)
		if err != nil {
			// The transition is already committed; a failed read here only
			// costs the notification.
			s.logger.Warn().Err(err).Str("hn", hn).Msg("skipping notification, reload failed")
		} else {
			s.notifier.StatusChanged(ctx, rec, entry)
		}
	}

	return entry, nil
}

func (s *Service) GetRecord(ctx context.Context, hn string) (*Record, error) {
	return s.repo.GetByHN(ctx, hn)
}

func (s *Service) ListHistory(ctx context.Context, hn string) ([]*HistoryEntry, error) {
	if _, err := s.repo.GetByHN(ctx, hn); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, hn)
}

func (s *Service) CreateRecord(ctx context.Context, rec *Record) error {
	if rec.HN == "" {
		return fmt.Errorf("hn is required")
	}
	if rec.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if !IsValid(rec.Status) {
		return fmt.Errorf("status %q: %w", rec.Status, ErrInvalidStatus)
	}
	return s.repo.Create(ctx, rec)
}

func (s *Service) ListRecords(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, limit, offset)
}
