package notify

import (
	"testing"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/inbox"
)

func msg(typ, subject string) *inbox.Message {
	return &inbox.Message{ID: uuid.New(), ReceiverID: "u1", Type: typ, Subject: subject}
}

func snapshot(source Source, msgs ...*inbox.Message) Observation {
	return Observation{Source: source, Messages: msgs, Count: len(msgs)}
}

func TestObserve_FirstLoadSuppressesPopups(t *testing.T) {
	st := newSessionState()
	m1, m2, m3 := msg(inbox.TypeSystem, "Result delivered"), msg(inbox.TypeSystem, "Specimen collected"), msg(inbox.TypeSystem, "Registered")

	d := st.observe(snapshot(SourcePoll, m1, m2, m3))
	if len(d.Popups) != 0 {
		t.Fatalf("first load must never popup, got %d", len(d.Popups))
	}
	if !d.CountChanged || d.Count != 3 {
		t.Errorf("first load must still deliver the count, got changed=%v count=%d", d.CountChanged, d.Count)
	}
}

func TestObserve_PopupOnlyForNewMessage(t *testing.T) {
	st := newSessionState()
	existing := []*inbox.Message{
		msg(inbox.TypeSystem, "a"), msg(inbox.TypeSystem, "b"), msg(inbox.TypeSystem, "c"),
	}
	st.observe(snapshot(SourcePoll, existing...))

	fresh := msg(inbox.TypeSystem, "Result delivered")
	d := st.observe(snapshot(SourcePoll, append([]*inbox.Message{fresh}, existing...)...))

	if len(d.Popups) != 1 {
		t.Fatalf("expected exactly one popup for the new message, got %d", len(d.Popups))
	}
	if d.Popups[0].MessageID != fresh.ID {
		t.Error("popup raised for the wrong message")
	}
	if d.Popups[0].Category != CategoryResult {
		t.Errorf("expected result category, got %s", d.Popups[0].Category)
	}
}

func TestObserve_SteadyCountNoPopup(t *testing.T) {
	st := newSessionState()
	m := msg(inbox.TypeSystem, "a")
	st.observe(snapshot(SourcePoll, m))

	d := st.observe(snapshot(SourcePoll, m))
	if len(d.Popups) != 0 {
		t.Error("unchanged count must not popup")
	}
	if d.CountChanged {
		t.Error("unchanged count must not re-deliver")
	}
}

func TestObserve_ShrinkThenGrowPopupsOnce(t *testing.T) {
	st := newSessionState()
	base := []*inbox.Message{
		msg(inbox.TypeSystem, "a"), msg(inbox.TypeSystem, "b"), msg(inbox.TypeSystem, "c"),
		msg(inbox.TypeSystem, "d"), msg(inbox.TypeSystem, "e"),
	}
	st.observe(snapshot(SourcePoll, base...)) // 5, first load

	// Messages read elsewhere: 5 -> 2. No popup, but the baseline moves.
	d := st.observe(snapshot(SourcePoll, base[0], base[1]))
	if len(d.Popups) != 0 {
		t.Fatal("shrink must not popup")
	}
	if !d.CountChanged || d.Count != 2 {
		t.Fatalf("shrink must update the delivered count, got %d", d.Count)
	}

	// New arrival: 2 -> 3. Popup for the one unseen message only.
	fresh := msg(inbox.TypeSystem, "Specimen collected")
	d = st.observe(snapshot(SourcePoll, fresh, base[0], base[1]))
	if len(d.Popups) != 1 {
		t.Fatalf("expected one popup after shrink-then-grow, got %d", len(d.Popups))
	}
	if d.Popups[0].MessageID != fresh.ID {
		t.Error("popup raised for the wrong message")
	}
}

func TestObserve_DirectAndPersonalMessagesNeverPopup(t *testing.T) {
	st := newSessionState()
	st.observe(snapshot(SourcePoll))

	d := st.observe(snapshot(SourcePoll, msg(inbox.TypeDirect, "ping"), msg(inbox.TypeMessage, "hello")))
	if len(d.Popups) != 0 {
		t.Fatalf("direct/personal messages must not popup, got %d", len(d.Popups))
	}
	if !d.CountChanged || d.Count != 2 {
		t.Error("badge count must still update for direct messages")
	}
}

func TestObserve_ManyNewMessagesPopupMostRecentOnly(t *testing.T) {
	st := newSessionState()
	st.observe(snapshot(SourcePoll))

	// Two inserts land between polls. The badge reflects both, but only the
	// newest one (first in the snapshot) may popup.
	older := msg(inbox.TypeSystem, "Specimen collected")
	newest := msg(inbox.TypeSystem, "Result delivered")
	d := st.observe(snapshot(SourcePoll, newest, older))
	if len(d.Popups) != 1 {
		t.Fatalf("expected exactly one popup for the most recent message, got %d", len(d.Popups))
	}
	if d.Popups[0].MessageID != newest.ID {
		t.Error("popup raised for an older message")
	}
	if d.Count != 2 {
		t.Errorf("badge must still count both messages, got %d", d.Count)
	}

	// The suppressed older message was still observed; a later arrival popups
	// for itself alone.
	extra := msg(inbox.TypeSystem, "Workflow completed")
	d = st.observe(snapshot(SourcePoll, extra, newest, older))
	if len(d.Popups) != 1 || d.Popups[0].MessageID != extra.ID {
		t.Error("expected one popup for the latest arrival only")
	}
}

func TestObserve_MostRecentSkipsDirectMessages(t *testing.T) {
	st := newSessionState()
	st.observe(snapshot(SourcePoll))

	// The newest unread is a direct message; the popup goes to the newest
	// notifiable one behind it.
	system := msg(inbox.TypeSystem, "Result delivered")
	direct := msg(inbox.TypeDirect, "ping")
	d := st.observe(snapshot(SourcePoll, direct, system))
	if len(d.Popups) != 1 {
		t.Fatalf("expected one popup, got %d", len(d.Popups))
	}
	if d.Popups[0].MessageID != system.ID {
		t.Error("popup must skip the direct message")
	}
}

func TestObserve_SameMessageFromBothChannelsPopupsOnce(t *testing.T) {
	st := newSessionState()
	st.observe(snapshot(SourcePoll))

	fresh := msg(inbox.TypeSystem, "Result delivered")

	d := st.observe(snapshot(SourcePush, fresh))
	if len(d.Popups) != 1 {
		t.Fatalf("expected popup from the first channel, got %d", len(d.Popups))
	}

	// The poll tick lands moments later with the same snapshot. Count is
	// unchanged AND the id is already seen; neither path may popup again.
	d = st.observe(snapshot(SourcePoll, fresh))
	if len(d.Popups) != 0 {
		t.Error("second channel must not duplicate the popup")
	}
}

func TestObserve_SeenIDSuppressedEvenWhenCountGrows(t *testing.T) {
	st := newSessionState()
	st.observe(snapshot(SourcePoll))

	seen := msg(inbox.TypeSystem, "old")
	st.observe(snapshot(SourcePush, seen)) // popups once

	// Push for a second insert arrives carrying both messages; only the
	// unseen one may popup even though the count grew.
	fresh := msg(inbox.TypeSystem, "new arrival")
	d := st.observe(snapshot(SourcePush, fresh, seen))
	if len(d.Popups) != 1 {
		t.Fatalf("expected one popup, got %d", len(d.Popups))
	}
	if d.Popups[0].MessageID != fresh.ID {
		t.Error("popup raised for an already-seen message")
	}
}

func TestSeenRing_EvictsOldestBeyondCapacity(t *testing.T) {
	r := newSeenRing(3)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		r.add(id)
	}
	if r.contains(ids[0]) {
		t.Error("oldest id should be evicted")
	}
	for _, id := range ids[1:] {
		if !r.contains(id) {
			t.Errorf("id %s should still be present", id)
		}
	}
	if len(r.set) != 3 {
		t.Errorf("set must stay bounded, got %d", len(r.set))
	}
}

func TestSeenRing_AddIsIdempotent(t *testing.T) {
	r := newSeenRing(2)
	a, b := uuid.New(), uuid.New()
	r.add(a)
	r.add(a)
	r.add(b)
	if !r.contains(a) || !r.contains(b) {
		t.Error("re-adding must not evict")
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	cases := []struct {
		subject string
		want    Category
	}{
		{"Appointment scheduled for tomorrow", CategoryAppointment},
		{"Patient registered", CategoryAppointment},
		{"Specimen collected at lab 2", CategorySpecimen},
		{"Blood sample received", CategorySpecimen},
		{"Lab result delivered", CategoryResult},
		{"Analysis in progress", CategoryProgress},
		{"Workflow completed", CategoryCompleted},
		{"RESULT DELIVERED", CategoryResult}, // case-insensitive
		{"hello there", CategoryGeneric},
		{"", CategoryGeneric},
	}
	for i, tc := range cases {
		if got := Classify(tc.subject, ""); got != tc.want {
			t.Errorf("case %d (%q): expected %s, got %s", i, tc.subject, tc.want, got)
		}
	}
}

func TestClassify_OrderedPrecedence(t *testing.T) {
	// A subject matching two rules takes the earlier one.
	if got := Classify("specimen result", ""); got != CategorySpecimen {
		t.Errorf("expected specimen (earlier rule), got %s", got)
	}
}

func TestClassify_FallsBackToContent(t *testing.T) {
	// A subject matching nothing defers to the body text.
	if got := Classify("New update", "Your lab result is ready"); got != CategoryResult {
		t.Errorf("expected result via content fallback, got %s", got)
	}
	// A subject match always beats the body.
	if got := Classify("Specimen collected", "result attached"); got != CategorySpecimen {
		t.Errorf("expected subject to take precedence, got %s", got)
	}
	if got := Classify("hello", "just checking in"); got != CategoryGeneric {
		t.Errorf("expected generic when neither matches, got %s", got)
	}
}
