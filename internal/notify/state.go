package notify

import (
	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/inbox"
)

// Source identifies which delivery channel produced an observation.
type Source string

const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
)

// seenRingSize bounds how many message ids a session remembers. A poll tick
// and a push event can observe the same insert within milliseconds of each
// other; the ring is what keeps the second arrival from raising a duplicate
// popup, and the bound keeps long-lived sessions from growing without limit.
const seenRingSize = 50

// Observation is one snapshot of a receiver's unread inbox, taken by either
// channel. Count is authoritative for the snapshot; Messages lists the
// unread items newest first.
type Observation struct {
	Source   Source
	Messages []*inbox.Message
	Count    int
}

// Popup is a single on-screen notification to raise.
type Popup struct {
	MessageID uuid.UUID `json:"message_id"`
	Category  Category  `json:"category"`
	Subject   string    `json:"subject"`
	HN        *string   `json:"hn,omitempty"`
}

// Decision is what a session should do with one observation.
type Decision struct {
	Count        int
	CountChanged bool
	Popups       []Popup
}

type seenRing struct {
	ids []uuid.UUID
	pos int
	set map[uuid.UUID]struct{}
}

func newSeenRing(size int) *seenRing {
	return &seenRing{
		ids: make([]uuid.UUID, size),
		set: make(map[uuid.UUID]struct{}, size),
	}
}

func (r *seenRing) contains(id uuid.UUID) bool {
	_, ok := r.set[id]
	return ok
}

func (r *seenRing) add(id uuid.UUID) {
	if r.contains(id) {
		return
	}
	if old := r.ids[r.pos]; old != uuid.Nil {
		delete(r.set, old)
	}
	r.ids[r.pos] = id
	r.set[id] = struct{}{}
	r.pos = (r.pos + 1) % len(r.ids)
}

// sessionState carries the per-session popup bookkeeping. Not safe for
// concurrent use; each session funnels every observation through a single
// goroutine.
type sessionState struct {
	previousCount int
	firstLoad     bool
	seen          *seenRing
}

func newSessionState() *sessionState {
	return &sessionState{firstLoad: true, seen: newSeenRing(seenRingSize)}
}

// observe folds one snapshot into the session state and decides what to
// surface.
//
// Popups are raised only when the unread count strictly grew since the last
// observation: a first load (restoring an inbox that already has unread
// items), a shrink (messages read elsewhere), or a steady count raise
// nothing. At most one popup comes out of a single observation, for the most
// recent unseen notifiable message; anything older in the same snapshot is
// marked seen without surfacing, so a backlog never floods the screen.
// Direct and person-to-person messages update the badge but never popup, and
// an id the session already observed never popups twice no matter which
// channel delivers it second. The previous count is updated on every
// observation, including suppressed ones, so a later shrink-then-grow is
// measured against the latest snapshot rather than a stale high-water mark.
func (s *sessionState) observe(obs Observation) Decision {
	d := Decision{
		Count:        obs.Count,
		CountChanged: s.firstLoad || obs.Count != s.previousCount,
	}

	popupsAllowed := !s.firstLoad && obs.Count > s.previousCount
	for _, m := range obs.Messages {
		if m == nil {
			continue
		}
		if popupsAllowed && len(d.Popups) == 0 && !s.seen.contains(m.ID) &&
			m.Type != inbox.TypeDirect && m.Type != inbox.TypeMessage {
			d.Popups = append(d.Popups, Popup{
				MessageID: m.ID,
				Category:  Classify(m.Subject, m.Content),
				Subject:   m.Subject,
				HN:        m.HN,
			})
		}
		s.seen.add(m.ID)
	}

	s.previousCount = obs.Count
	s.firstLoad = false
	return d
}
