package realtime

import (
	"supportchat/models"
)

// Event names exchanged with the push channel. Outbound and inbound events
// share one envelope format; the data shape depends on the event.
const (
	// EventUserLogin announces the viewer identity after connecting.
	EventUserLogin = "userLogin"
	// EventJoinRoom subscribes the connection to one conversation room.
	EventJoinRoom = "joinRoom"
	// EventMarkAsRead broadcasts a read receipt for a room.
	EventMarkAsRead = "markAsRead"
	// EventSendMessage mirrors a persisted message to its receiver.
	EventSendMessage = "sendMessage"
	// EventMessageReceived delivers an inbound message.
	EventMessageReceived = "messageReceived"
	// EventMarkedAsRead delivers a direct read receipt.
	EventMarkedAsRead = "markedAsRead"
	// EventAdminNotification delivers a broadcast notification to the admin.
	EventAdminNotification = "adminNotification"
	// EventStatusUpdate delivers the online/offline presence map.
	EventStatusUpdate = "userStatusUpdate"
)

// Admin notification sub-kinds.
const (
	NotificationNewMessage = "newMessage"
	NotificationMarkAsRead = "markAsRead"
)

// LoginPayload announces presence for a viewer identity.
type LoginPayload struct {
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin,omitempty"`
}

// ReadReceipt signals that a room's messages were read by the sender side.
type ReadReceipt struct {
	UserID string `json:"userId"`
	Room   string `json:"room"`
}

// OutgoingMessage is a message mirrored over the push channel, tagged with
// the identity meant to receive it.
type OutgoingMessage struct {
	models.Message
	Receiver string `json:"receiver"`
}

// AdminNotification is the broadcast envelope the admin side receives for
// conversations it does not currently have open.
type AdminNotification struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Sender    string `json:"sender"`
}
