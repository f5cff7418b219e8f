package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func newTestClient(userID string) *Client {
	return &Client{UserID: userID, Send: make(chan []byte, 8)}
}

type recordingObserver struct {
	mu       sync.Mutex
	attached []string
	detached []string
}

func (o *recordingObserver) Attached(_ context.Context, userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached = append(o.attached, userID)
}

func (o *recordingObserver) Detached(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detached = append(o.detached, userID)
}

func TestHub_SendToUserReachesAllConnections(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()
	tab1, tab2 := newTestClient("u1"), newTestClient("u1")
	other := newTestClient("u2")
	hub.Register(ctx, tab1)
	hub.Register(ctx, tab2)
	hub.Register(ctx, other)

	hub.SendToUser("u1", Event{Type: EventUnreadCount, Data: json.RawMessage(`{"count":3}`)})

	for _, c := range []*Client{tab1, tab2} {
		select {
		case raw := <-c.Send:
			var ev Event
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatal(err)
			}
			if ev.Type != EventUnreadCount || ev.UserID != "u1" {
				t.Errorf("unexpected event %+v", ev)
			}
			if ev.Timestamp.IsZero() {
				t.Error("expected timestamp set")
			}
		case <-time.After(time.Second):
			t.Fatal("connection did not receive the event")
		}
	}
	select {
	case <-other.Send:
		t.Error("event leaked to another user")
	default:
	}
}

func TestHub_ObserverFiresOnFirstAndLastConnection(t *testing.T) {
	hub := NewHub()
	obs := &recordingObserver{}
	hub.SetObserver(obs)
	ctx := context.Background()

	tab1, tab2 := newTestClient("u1"), newTestClient("u1")
	hub.Register(ctx, tab1)
	hub.Register(ctx, tab2)
	if len(obs.attached) != 1 {
		t.Fatalf("expected one attach for two tabs, got %d", len(obs.attached))
	}

	hub.Unregister(tab1)
	if len(obs.detached) != 0 {
		t.Fatal("detach must wait for the last connection")
	}
	hub.Unregister(tab2)
	if len(obs.detached) != 1 || obs.detached[0] != "u1" {
		t.Fatalf("expected one detach for u1, got %v", obs.detached)
	}
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	obs := &recordingObserver{}
	hub.SetObserver(obs)
	c := newTestClient("u1")
	hub.Register(context.Background(), c)

	hub.Unregister(c)
	hub.Unregister(c) // second call must not panic or double-fire

	if len(obs.detached) != 1 {
		t.Errorf("expected a single detach, got %d", len(obs.detached))
	}
	if hub.ClientCount() != 0 || hub.UserCount() != 0 {
		t.Error("hub should be empty")
	}
}

func TestHub_SkipsSlowConnections(t *testing.T) {
	hub := NewHub()
	slow := &Client{UserID: "u1", Send: make(chan []byte)} // unbuffered, never drained
	hub.Register(context.Background(), slow)

	done := make(chan struct{})
	go func() {
		hub.SendToUser("u1", Event{Type: EventPopup})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a slow connection")
	}
}
