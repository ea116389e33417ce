// Package chat holds the support-chat session state machines: the single
// conversation a storefront customer sees and the multi-conversation screen
// the admin operator works from. Sessions are headless; presentation attaches
// through render hooks and the notify package.
package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"supportchat/config"
	"supportchat/models"
	"supportchat/notify"
	"supportchat/realtime"
)

var (
	// ErrUnauthorized indicates there is no authenticated identity; the
	// session renders nothing.
	ErrUnauthorized = errors.New("chat: no authenticated identity")
	// ErrEmptyMessage indicates a blank or whitespace-only compose value.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrSendInFlight indicates the compose control is still disabled by an
	// unsettled send.
	ErrSendInFlight = errors.New("chat: a send is already in flight")
	// ErrNoConversation indicates the admin has no roster entry selected.
	ErrNoConversation = errors.New("chat: no conversation selected")
	// ErrUnknownUser indicates a roster selection for an id not on the roster.
	ErrUnknownUser = errors.New("chat: user not on roster")
)

// RoomFor derives the conversation room shared by one user and the admin.
// The room id is a pure function of the non-admin participant.
func RoomFor(userID string) string {
	return "admin-" + userID
}

// API is the REST surface the sessions fetch and persist through.
type API interface {
	History(ctx context.Context, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, userID string, msg models.Message) (models.Message, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Transport is the push channel surface. Implementations must tolerate
// concurrent emits; a nil Transport in Deps degrades the session to
// history-only chat.
type Transport interface {
	AnnouncePresence(userID string, isAdmin bool) error
	JoinRoom(room string) error
	MarkAsRead(userID, room string) error
	SendMessage(msg models.Message, receiver string) error
	OnMessage(handler func(models.Message))
	OnMarkedAsRead(handler func(userID string))
	OnAdminNotification(handler func(realtime.AdminNotification))
	OnStatusUpdate(handler func(map[string]bool))
}

// Cache is the local history cache used for stale-state fallback. A nil
// Cache disables offline fallback.
type Cache interface {
	SaveMessage(msg models.Message) error
	SaveMessages(msgs []models.Message) error
	MessagesByRoom(room string) ([]models.Message, error)
	LastMessageByRoom(room string) (models.Message, error)
	MarkSenderRead(room, sender string) error
	SaveContacts(users []models.User) error
	ListContacts() ([]models.User, error)
	UpsertPreview(userID string, preview models.Preview) error
	MarkPreviewRead(userID string) error
	ListPreviews() (map[string]models.Preview, error)
}

// Deps bundles the collaborators a session runs against.
type Deps struct {
	API       API
	Transport Transport
	Cache     Cache
	Notifier  notify.Notifier
	Unseen    *notify.Flag
}

// Session is either side of the support chat.
type Session interface {
	Start(ctx context.Context) error
	Close() error
}

// NewSession gates which chat session the viewer gets from the configured
// identity: the admin operator gets the multi-conversation screen, everyone
// else the single-conversation view. An absent identity is unauthorized and
// nothing renders.
func NewSession(cfg *config.ClientConfig, deps Deps) (Session, error) {
	if cfg == nil || cfg.ProfileID == "" {
		return nil, ErrUnauthorized
	}
	if cfg.IsAdmin() {
		return NewAdminSession(cfg.ProfileID, deps), nil
	}
	return NewUserSession(cfg.ProfileID, deps), nil
}

// normalizeHistory fills server-side gaps in fetched history: messages
// without a correlation id get one so the local cache can key them, and
// messages without a room are scoped to the fetched conversation.
func normalizeHistory(messages []models.Message, room string) []models.Message {
	out := make([]models.Message, len(messages))
	for i, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Room == "" {
			msg.Room = room
		}
		out[i] = msg
	}
	return out
}
