package patient

import (
	"time"

	"github.com/google/uuid"
)

// Record is one patient moving through the workflow, keyed by HN (hospital
// number). Status changes must go through the transition engine; clinical
// fields are owned by the clinical-data service and updated separately.
type Record struct {
	HN                 string     `db:"hn" json:"hn"`
	FullName           string     `db:"full_name" json:"full_name"`
	Status             Status     `db:"status" json:"status"`
	ResponsibleStaffID *uuid.UUID `db:"responsible_staff_id" json:"responsible_staff_id,omitempty"`
	StaffEmail         *string    `db:"staff_email" json:"staff_email,omitempty"`
	HistoryNote        *string    `db:"history_note" json:"history_note,omitempty"`
	AppointmentDate    *string    `db:"appointment_date" json:"appointment_date,omitempty"`
	AppointmentTime    *string    `db:"appointment_time" json:"appointment_time,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// HistoryEntry is one immutable audit record of a status change. Entries are
// append-only: created exactly once per accepted transition, never edited or
// deleted, totally ordered per patient by CreatedAt.
type HistoryEntry struct {
	ID        uuid.UUID `db:"id" json:"id"`
	HN        string    `db:"hn" json:"hn"`
	ToStatus  Status    `db:"to_status" json:"to_status"`
	ChangedBy string    `db:"changed_by" json:"changed_by"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TransitionExtra carries optional clinical attributes recorded alongside a
// transition (e.g. an appointment slot attached when moving to registered).
type TransitionExtra struct {
	History *string `json:"history,omitempty"`
	Date    *string `json:"date,omitempty"`
	Time    *string `json:"time,omitempty"`
}
