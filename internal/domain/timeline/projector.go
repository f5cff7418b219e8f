// Package timeline derives a read-only progress view from a patient's
// status audit trail. Project is a pure function: no side effects,
// identical output for identical input, safe to cache.
package timeline

import (
	"time"

	"github.com/careflow/careflow/internal/domain/patient"
)

// Step is one position in the canonical workflow sequence as rendered for
// the progress view.
type Step struct {
	Name             string         `json:"name"`
	Status           patient.Status `json:"status"`
	Completed        bool           `json:"completed"`
	Active           bool           `json:"active"`
	Timestamp        *time.Time     `json:"timestamp,omitempty"`
	ElapsedSincePrev *int64         `json:"elapsed_since_prev_ms,omitempty"`
}

// ProgressView is the structured rendering of a patient's progress.
type ProgressView struct {
	Steps             []Step `json:"steps"`
	ActiveIndex       int    `json:"active_index"`
	TerminalCancelled bool   `json:"terminal_cancelled"`
}

// Project builds the progress view for currentStatus over history.
//
// The history map is last-write-wins per state: when a state was entered
// more than once only the latest entry is shown. Elapsed time for step i is
// the gap between the entries for step i and step i-1; if either endpoint is
// missing (never entered, or a zero timestamp) it is undefined and omitted,
// never zero.
func Project(currentStatus patient.Status, history []*patient.HistoryEntry) ProgressView {
	latest := make(map[patient.Status]*patient.HistoryEntry, len(history))
	for _, e := range history {
		if e == nil || e.CreatedAt.IsZero() {
			continue
		}
		prev, ok := latest[e.ToStatus]
		if !ok || !e.CreatedAt.Before(prev.CreatedAt) {
			latest[e.ToStatus] = e
		}
	}

	view := ProgressView{
		ActiveIndex:       patient.IndexOf(currentStatus),
		TerminalCancelled: currentStatus == patient.StatusCancelled,
	}

	view.Steps = make([]Step, len(patient.StatusOrder))
	for i, st := range patient.StatusOrder {
		step := Step{
			Name:      st.Label(),
			Status:    st,
			Completed: view.ActiveIndex >= 0 && i <= view.ActiveIndex,
			Active:    i == view.ActiveIndex,
		}
		if e, ok := latest[st]; ok {
			ts := e.CreatedAt
			step.Timestamp = &ts
		}
		if i > 0 {
			cur, okCur := latest[st]
			prev, okPrev := latest[patient.StatusOrder[i-1]]
			if okCur && okPrev {
				ms := cur.CreatedAt.Sub(prev.CreatedAt).Milliseconds()
				step.ElapsedSincePrev = &ms
			}
		}
		view.Steps[i] = step
	}

	return view
}
