package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/inbox"
	"github.com/careflow/careflow/internal/domain/patient"
	"github.com/careflow/careflow/internal/platform/notification"
)

// StatusNotifier fans a committed status transition out to the responsible
// staff member: a system inbox message always, an email when the deployment
// enables it. Both legs are best-effort; the transition itself is already
// durable when this runs.
type StatusNotifier struct {
	inbox        *inbox.Service
	emails       *notification.Manager
	emailEnabled bool
	logger       zerolog.Logger
}

func NewStatusNotifier(inboxSvc *inbox.Service, emails *notification.Manager, emailEnabled bool, logger zerolog.Logger) *StatusNotifier {
	return &StatusNotifier{
		inbox:        inboxSvc,
		emails:       emails,
		emailEnabled: emailEnabled,
		logger:       logger.With().Str("component", "status_notifier").Logger(),
	}
}

func (n *StatusNotifier) StatusChanged(ctx context.Context, rec *patient.Record, entry *patient.HistoryEntry) {
	subject := fmt.Sprintf("%s: %s (%s)", entry.ToStatus.Label(), rec.FullName, rec.HN)

	if rec.ResponsibleStaffID != nil {
		hn := rec.HN
		msg := &inbox.Message{
			ReceiverID: rec.ResponsibleStaffID.String(),
			HN:         &hn,
			Type:       inbox.TypeSystem,
			Subject:    subject,
			Content: fmt.Sprintf("Patient %s (HN %s) moved to %s by %s.",
				rec.FullName, rec.HN, entry.ToStatus.Label(), entry.ChangedBy),
		}
		if err := n.inbox.CreateMessage(ctx, msg); err != nil {
			n.logger.Warn().Err(err).Str("hn", rec.HN).Msg("inbox message for status change failed")
		}
	}

	if n.emailEnabled && rec.StaffEmail != nil && *rec.StaffEmail != "" {
		_, err := n.emails.SendFromTemplate(ctx, "status-change", map[string]string{
			"status":       entry.ToStatus.Label(),
			"patient_name": rec.FullName,
			"hn":           rec.HN,
			"changed_by":   entry.ChangedBy,
		}, *rec.StaffEmail)
		if err != nil {
			n.logger.Warn().Err(err).Str("hn", rec.HN).Msg("status change email failed")
		}
	}
}
