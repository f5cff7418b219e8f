package inbox

import (
	"time"

	"github.com/google/uuid"
)

// Message type discriminators. Direct and plain messages are person-to-person
// traffic and never raise popups; system messages are produced by workflow
// side effects.
const (
	TypeMessage = "message"
	TypeDirect  = "direct"
	TypeSystem  = "system"
)

// Message is one inbox item addressed to a single receiver.
type Message struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	HN         *string   `db:"hn" json:"hn,omitempty"`
	Type       string    `db:"type" json:"type"`
	Subject    string    `db:"subject" json:"subject"`
	Content    string    `db:"content" json:"content"`
	IsRead     bool      `db:"is_read" json:"is_read"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
