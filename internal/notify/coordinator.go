// Package notify merges the two inbox delivery channels - the periodic poll
// and the Postgres insert push - into a single per-session decision stream,
// so the badge count and popup rules behave identically no matter which
// channel observed a change first.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/inbox"
	"github.com/careflow/careflow/internal/platform/db"
)

// InsertChannel is the Postgres NOTIFY channel the message insert trigger
// fires on.
const InsertChannel = "message_inserted"

// insertPayload is the trigger's pg_notify JSON body.
type insertPayload struct {
	ID         string `json:"id"`
	ReceiverID string `json:"receiver_id"`
	Type       string `json:"type"`
	Subject    string `json:"subject"`
}

// UnreadSource supplies unread snapshots for a receiver. Satisfied by
// *inbox.Service.
type UnreadSource interface {
	Unread(ctx context.Context, receiverID string) ([]*inbox.Message, int, error)
}

// Sink receives the decisions a session produces. Satisfied by the
// websocket hub adapter.
type Sink interface {
	DeliverCount(userID string, count int)
	DeliverPopup(userID string, p Popup)
}

// NotificationWaiter is the blocking receive side of a LISTEN subscription.
// Satisfied by *db.Listener.
type NotificationWaiter interface {
	Wait(ctx context.Context) (*db.Notification, error)
}

type session struct {
	userID string
	obs    chan Observation
	cancel context.CancelFunc
}

// Coordinator owns one delivery session per attached user. Each session runs
// a single goroutine that serializes its poll ticks and push events, so the
// popup state machine never sees concurrent observations.
type Coordinator struct {
	source       UnreadSource
	sink         Sink
	pollInterval time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewCoordinator(source UnreadSource, sink Sink, pollInterval time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		source:       source,
		sink:         sink,
		pollInterval: pollInterval,
		logger:       logger.With().Str("component", "delivery_coordinator").Logger(),
		sessions:     make(map[string]*session),
	}
}

// Attach starts a delivery session for userID. Attaching an already attached
// user is a no-op; the existing session keeps its popup state.
func (c *Coordinator) Attach(ctx context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[userID]; ok {
		return
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &session{
		userID: userID,
		obs:    make(chan Observation, 16),
		cancel: cancel,
	}
	c.sessions[userID] = s
	go c.run(sessCtx, s)
	c.logger.Info().Str("user_id", userID).Msg("delivery session attached")
}

// Detach stops the user's session and discards its state. The next Attach
// starts over with a fresh first load.
func (c *Coordinator) Detach(userID string) {
	c.mu.Lock()
	s, ok := c.sessions[userID]
	if ok {
		delete(c.sessions, userID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	s.cancel()
	c.logger.Info().Str("user_id", userID).Msg("delivery session detached")
}

func (c *Coordinator) run(ctx context.Context, s *session) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	st := newSessionState()
	c.pollOnce(ctx, s, st)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollOnce(ctx, s, st)
		case obs := <-s.obs:
			c.apply(s, st, obs)
		}
	}
}

// pollOnce takes a snapshot for the session. A failed poll is logged and
// skipped; the state is untouched, so the next successful tick measures
// against the last good snapshot.
func (c *Coordinator) pollOnce(ctx context.Context, s *session, st *sessionState) {
	items, count, err := c.source.Unread(ctx, s.userID)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("user_id", s.userID).Msg("poll failed, will retry next tick")
		}
		return
	}
	c.apply(s, st, Observation{Source: SourcePoll, Messages: items, Count: count})
}

func (c *Coordinator) apply(s *session, st *sessionState, obs Observation) {
	d := st.observe(obs)
	if d.CountChanged {
		c.sink.DeliverCount(s.userID, d.Count)
	}
	for _, p := range d.Popups {
		c.logger.Debug().
			Str("user_id", s.userID).
			Str("message_id", p.MessageID.String()).
			Str("category", string(p.Category)).
			Str("source", string(obs.Source)).
			Msg("popup raised")
		c.sink.DeliverPopup(s.userID, p)
	}
}

// RunListener consumes insert notifications until ctx is cancelled. The
// caller owns the listener's lifecycle and reconnection; this loop returns
// any receive error so the caller can re-establish the subscription.
func (c *Coordinator) RunListener(ctx context.Context, waiter NotificationWaiter) error {
	for {
		n, err := waiter.Wait(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var p insertPayload
		if err := json.Unmarshal([]byte(n.Payload), &p); err != nil {
			c.logger.Warn().Err(err).Str("payload", n.Payload).Msg("discarding malformed insert notification")
			continue
		}
		c.onInsert(ctx, p)
	}
}

// onInsert routes a push event to the receiver's session, if one is
// attached. The event itself only names the inserted row; the observation
// re-reads the unread snapshot so the count stays authoritative.
func (c *Coordinator) onInsert(ctx context.Context, p insertPayload) {
	c.mu.Lock()
	s, ok := c.sessions[p.ReceiverID]
	c.mu.Unlock()
	if !ok {
		return
	}

	items, count, err := c.source.Unread(ctx, p.ReceiverID)
	if err != nil {
		c.logger.Warn().Err(err).Str("user_id", p.ReceiverID).Msg("push snapshot failed, poll will catch up")
		return
	}

	select {
	case s.obs <- Observation{Source: SourcePush, Messages: items, Count: count}:
	default:
		// Session backlog full; the snapshot is superseded by the next poll
		// anyway.
		c.logger.Warn().Str("user_id", p.ReceiverID).Msg("dropping push observation, session busy")
	}
}
