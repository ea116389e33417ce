package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"supportchat/models"
	"supportchat/notify"
)

// UserSession is the single-conversation view of a storefront customer. The
// remote party is always the admin operator; the session owns the local
// message list and the composition state.
type UserSession struct {
	selfID string
	room   string
	deps   Deps

	mu       sync.Mutex
	messages []models.Message
	sending  bool
	active   bool

	onUpdate func([]models.Message)
}

// NewUserSession creates the session for one customer identity.
func NewUserSession(selfID string, deps Deps) *UserSession {
	return &UserSession{
		selfID: selfID,
		room:   RoomFor(selfID),
		deps:   deps,
	}
}

// OnUpdate registers the render hook invoked after every list mutation
// (the scroll-to-latest analogue). Must be set before Start.
func (s *UserSession) OnUpdate(fn func([]models.Message)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// SetActive records whether the conversation drawer is the visible view.
// Messages arriving while inactive raise a transient alert and set the
// unseen flag.
func (s *UserSession) SetActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

// Start fetches history, joins the viewer's room, announces presence, and
// subscribes to inbound messages. A failed history fetch logs and falls back
// to the local cache; a nil transport degrades to history-only chat.
func (s *UserSession) Start(ctx context.Context) error {
	if s.selfID == "" {
		return ErrUnauthorized
	}

	history, err := s.deps.API.History(ctx, s.selfID)
	if err != nil {
		log.Printf("chat: history fetch failed for %s: %v", s.selfID, err)
		history = s.cachedHistory()
	} else {
		history = normalizeHistory(history, s.room)
		s.cacheMessages(history)
	}

	s.mu.Lock()
	s.messages = history
	s.mu.Unlock()
	s.fireUpdate()

	if s.deps.Transport != nil {
		_ = s.deps.Transport.JoinRoom(s.room)
		_ = s.deps.Transport.AnnouncePresence(s.selfID, false)
		s.deps.Transport.OnMessage(s.handleMessage)
	}

	return nil
}

// Close deregisters the push subscription.
func (s *UserSession) Close() error {
	if s.deps.Transport != nil {
		s.deps.Transport.OnMessage(nil)
	}
	return nil
}

// Send validates the compose value, appends an optimistic copy, persists it,
// and mirrors the confirmed message over the push channel. On persist failure
// the optimistic copy is rolled back by correlation id and no other recovery
// is attempted.
func (s *UserSession) Send(ctx context.Context, content string) error {
	if s.selfID == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Sender:    s.selfID,
		Content:   content,
		Room:      s.room,
		Timestamp: time.Now().UnixMilli(),
		Pending:   true,
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.fireUpdate()

	stored, err := s.deps.API.SendMessage(ctx, s.selfID, msg)
	if err != nil {
		s.rollback(msg.ID)
		log.Printf("chat: send failed for %s: %v", s.selfID, err)
		return fmt.Errorf("send message: %w", err)
	}

	confirmed := s.confirm(msg.ID, stored)
	s.cacheMessage(confirmed)
	if s.deps.Transport != nil {
		_ = s.deps.Transport.SendMessage(confirmed, models.AdminSender)
	}
	return nil
}

// Sending reports whether a send is still in flight (compose disabled).
func (s *UserSession) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Messages returns a copy of the conversation in arrival order.
func (s *UserSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// handleMessage accepts only push events authored by the admin for this
// viewer's own room; everything else is discarded.
func (s *UserSession) handleMessage(msg models.Message) {
	if !msg.FromAdmin() || msg.Room != s.room {
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	inactive := !s.active
	s.mu.Unlock()
	s.fireUpdate()
	s.cacheMessage(msg)

	if inactive {
		if s.deps.Notifier != nil {
			s.deps.Notifier.Notify(notify.Alert{From: msg.Sender, Content: msg.Content, Timestamp: msg.Timestamp})
		}
		s.deps.Unseen.Set(true)
	}
}

func (s *UserSession) rollback(correlationID string) {
	s.mu.Lock()
	filtered := s.messages[:0]
	for _, msg := range s.messages {
		if msg.ID != correlationID {
			filtered = append(filtered, msg)
		}
	}
	s.messages = filtered
	s.sending = false
	s.mu.Unlock()
	s.fireUpdate()
}

func (s *UserSession) confirm(correlationID string, stored models.Message) models.Message {
	s.mu.Lock()
	confirmed := stored
	confirmed.ID = correlationID
	if confirmed.Room == "" {
		confirmed.Room = s.room
	}
	confirmed.Pending = false
	for i, msg := range s.messages {
		if msg.ID == correlationID {
			if confirmed.Timestamp == 0 {
				confirmed.Timestamp = msg.Timestamp
			}
			s.messages[i] = confirmed
			break
		}
	}
	s.sending = false
	s.mu.Unlock()
	s.fireUpdate()
	return confirmed
}

func (s *UserSession) fireUpdate() {
	s.mu.Lock()
	fn := s.onUpdate
	var snapshot []models.Message
	if fn != nil {
		snapshot = make([]models.Message, len(s.messages))
		copy(snapshot, s.messages)
	}
	s.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (s *UserSession) cachedHistory() []models.Message {
	if s.deps.Cache == nil {
		return nil
	}
	cached, err := s.deps.Cache.MessagesByRoom(s.room)
	if err != nil {
		log.Printf("chat: cache read failed for %s: %v", s.room, err)
		return nil
	}
	return cached
}

func (s *UserSession) cacheMessages(messages []models.Message) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SaveMessages(messages); err != nil {
		log.Printf("chat: cache write failed for %s: %v", s.room, err)
	}
}

func (s *UserSession) cacheMessage(msg models.Message) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SaveMessage(msg); err != nil {
		log.Printf("chat: cache write failed for %s: %v", s.room, err)
	}
}
