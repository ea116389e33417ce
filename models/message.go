package models

// AdminSender is the fixed logical sender identity of the admin operator,
// distinct from any real user id.
const AdminSender = "admin"

// Message is one chat message inside a conversation. A message is immutable
// once created; conversations hold messages in arrival order.
type Message struct {
	// ID is a client-generated correlation id assigned at creation time. It
	// identifies an optimistic copy for rollback and reconciles the mirrored
	// push copy with the persisted one.
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"`
	IsRead    bool   `json:"isRead,omitempty"`

	// Pending marks an optimistic append that the backend has not confirmed.
	// Local-only, never sent on the wire.
	Pending bool `json:"-"`
}

// FromAdmin reports whether the message was authored by the admin operator.
func (m Message) FromAdmin() bool {
	return m.Sender == AdminSender
}
