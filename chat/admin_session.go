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
	"supportchat/realtime"
)

// RosterEntry is one conversation on the admin screen: the counterpart user
// plus the last-message preview.
type RosterEntry struct {
	User        models.User
	LastMessage models.Preview
}

// AdminSession is the admin operator's multi-conversation screen. It owns
// the roster, the presence map, and the currently open conversation's
// message list.
type AdminSession struct {
	adminID string
	deps    Deps

	mu         sync.Mutex
	roster     []RosterEntry
	presence   map[string]bool
	messages   []models.Message
	activeUser string
	activeRoom string
	generation uint64
	sending    bool

	onRoster func([]RosterEntry)
	onUpdate func([]models.Message)
}

// NewAdminSession creates the session for the admin operator identity.
func NewAdminSession(adminID string, deps Deps) *AdminSession {
	return &AdminSession{
		adminID:  adminID,
		deps:     deps,
		presence: make(map[string]bool),
	}
}

// OnRoster registers the render hook invoked after every roster or presence
// mutation. Must be set before Start.
func (s *AdminSession) OnRoster(fn func([]RosterEntry)) {
	s.mu.Lock()
	s.onRoster = fn
	s.mu.Unlock()
}

// OnUpdate registers the render hook invoked after every mutation of the
// open conversation's message list.
func (s *AdminSession) OnUpdate(fn func([]models.Message)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

// Start announces presence, wires the push subscriptions, and loads the
// roster.
func (s *AdminSession) Start(ctx context.Context) error {
	if s.adminID == "" {
		return ErrUnauthorized
	}

	if s.deps.Transport != nil {
		_ = s.deps.Transport.AnnouncePresence(s.adminID, true)
		s.deps.Transport.OnMessage(s.handleMessage)
		s.deps.Transport.OnMarkedAsRead(s.handleMarkedAsRead)
		s.deps.Transport.OnAdminNotification(s.handleNotification)
		s.deps.Transport.OnStatusUpdate(s.handleStatusUpdate)
	}

	return s.LoadRoster(ctx)
}

// Close deregisters every push subscription.
func (s *AdminSession) Close() error {
	if s.deps.Transport != nil {
		s.deps.Transport.OnMessage(nil)
		s.deps.Transport.OnMarkedAsRead(nil)
		s.deps.Transport.OnAdminNotification(nil)
		s.deps.Transport.OnStatusUpdate(nil)
	}
	return nil
}

// LoadRoster fetches all counterpart users and derives each conversation's
// last-message preview. Per-user history fetches fan out concurrently and
// are all awaited before the roster is published; a single failing fetch
// degrades that entry to a default preview instead of blocking the roster.
// A roster that already exists is not re-fetched.
func (s *AdminSession) LoadRoster(ctx context.Context) error {
	s.mu.Lock()
	if len(s.roster) > 0 {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	users, err := s.deps.API.ListUsers(ctx)
	if err != nil {
		log.Printf("chat: roster fetch failed: %v", err)
		s.publishRoster(s.cachedRoster())
		return nil
	}
	s.cacheContacts(users)

	previews := make([]models.Preview, len(users))
	var wg sync.WaitGroup
	for i, user := range users {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			previews[i] = s.fetchPreview(ctx, userID)
		}(i, user.ID)
	}
	wg.Wait()

	roster := make([]RosterEntry, len(users))
	for i, user := range users {
		roster[i] = RosterEntry{User: user, LastMessage: previews[i]}
	}
	s.publishRoster(roster)
	return nil
}

// Select opens one roster entry: joins its room, broadcasts a read receipt,
// optimistically clears its unread flag, and re-fetches that conversation's
// history. A history response arriving after the selection has moved on is
// discarded.
func (s *AdminSession) Select(ctx context.Context, userID string) error {
	room := RoomFor(userID)

	s.mu.Lock()
	if !s.hasEntryLocked(userID) {
		s.mu.Unlock()
		return ErrUnknownUser
	}
	s.activeUser = userID
	s.activeRoom = room
	s.generation++
	generation := s.generation
	s.messages = nil
	s.markReadLocked(userID)
	s.mu.Unlock()
	s.fireRoster()
	s.fireUpdate()

	if s.deps.Transport != nil {
		_ = s.deps.Transport.JoinRoom(room)
		_ = s.deps.Transport.MarkAsRead(userID, room)
	}

	history, err := s.deps.API.History(ctx, userID)
	if err != nil {
		log.Printf("chat: history fetch failed for %s: %v", userID, err)
		history = s.cachedMessages(room)
	} else {
		history = normalizeHistory(history, room)
		s.cacheMessages(history)
	}

	s.mu.Lock()
	if s.generation != generation {
		// The selection changed while the fetch was in flight; this
		// response no longer has a home.
		s.mu.Unlock()
		return nil
	}
	s.messages = history
	s.mu.Unlock()
	s.fireUpdate()
	return nil
}

// Send mirrors the user-side contract with the admin sentinel as sender and
// the selected conversation as room and receiver.
func (s *AdminSession) Send(ctx context.Context, content string) error {
	if s.adminID == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.activeUser == "" {
		s.mu.Unlock()
		return ErrNoConversation
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	userID := s.activeUser
	msg := models.Message{
		ID:        uuid.NewString(),
		Sender:    models.AdminSender,
		Content:   content,
		Room:      s.activeRoom,
		Timestamp: time.Now().UnixMilli(),
		Pending:   true,
	}
	s.sending = true
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.fireUpdate()

	stored, err := s.deps.API.SendMessage(ctx, userID, msg)
	if err != nil {
		s.rollback(msg.ID)
		log.Printf("chat: send failed for %s: %v", userID, err)
		return fmt.Errorf("send message: %w", err)
	}

	confirmed := s.confirm(msg.ID, stored)
	s.cacheMessage(confirmed)
	if s.deps.Transport != nil {
		_ = s.deps.Transport.SendMessage(confirmed, userID)
	}
	return nil
}

// Sending reports whether a send is still in flight.
func (s *AdminSession) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Roster returns a copy of the roster, most recently notified first.
func (s *AdminSession) Roster() []RosterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RosterEntry, len(s.roster))
	copy(out, s.roster)
	return out
}

// Presence returns a copy of the online/offline map.
func (s *AdminSession) Presence() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.presence))
	for id, online := range s.presence {
		out[id] = online
	}
	return out
}

// Messages returns a copy of the open conversation in arrival order.
func (s *AdminSession) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ActiveUser returns the id of the currently open conversation, if any.
func (s *AdminSession) ActiveUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeUser
}

// handleMessage appends push events for the open conversation only; events
// authored by the admin or aimed at another room are discarded here and
// surface through the roster notifications instead.
func (s *AdminSession) handleMessage(msg models.Message) {
	s.mu.Lock()
	if msg.FromAdmin() || s.activeRoom == "" || msg.Room != s.activeRoom {
		s.mu.Unlock()
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.fireUpdate()
	s.cacheMessage(msg)
}

// handleMarkedAsRead is the direct read-receipt path. It routes through the
// same transition as the broadcast notification path.
func (s *AdminSession) handleMarkedAsRead(userID string) {
	s.mu.Lock()
	s.markReadLocked(userID)
	s.mu.Unlock()
	s.fireRoster()
	s.fireUpdate()
}

// handleNotification is the broadcast path: new-message notifications move
// the matching roster entry to the front, read notifications share the
// direct receipt's transition.
func (s *AdminSession) handleNotification(note realtime.AdminNotification) {
	switch note.Type {
	case realtime.NotificationNewMessage:
		s.mu.Lock()
		moved := s.promoteEntryLocked(note)
		background := note.UserID != s.activeUser
		s.mu.Unlock()
		if !moved {
			log.Printf("chat: notification for unknown user %s dropped", note.UserID)
			return
		}
		s.fireRoster()
		s.cachePreview(note.UserID, models.Preview{Content: note.Content, Unread: true, Timestamp: note.Timestamp})

		if background && note.Sender != models.AdminSender {
			if s.deps.Notifier != nil {
				s.deps.Notifier.Notify(notify.Alert{From: note.Sender, Content: note.Content, Timestamp: note.Timestamp})
			}
			s.deps.Unseen.Set(true)
		}
	case realtime.NotificationMarkAsRead:
		s.handleMarkedAsRead(note.UserID)
	default:
		log.Printf("chat: unknown admin notification type %q", note.Type)
	}
}

// handleStatusUpdate overwrites presence for every identity in the update;
// identities absent from it keep their last known value.
func (s *AdminSession) handleStatusUpdate(status map[string]bool) {
	s.mu.Lock()
	for id, online := range status {
		s.presence[id] = online
	}
	s.mu.Unlock()
	s.fireRoster()
}

// markReadLocked is the single authoritative read transition shared by the
// direct receipt, the broadcast notification, and roster selection: it
// clears the entry's unread flag, marks the open conversation's messages
// from that user read, and mirrors both into the cache.
func (s *AdminSession) markReadLocked(userID string) {
	for i := range s.roster {
		if s.roster[i].User.ID == userID {
			s.roster[i].LastMessage.Unread = false
			break
		}
	}
	if s.activeUser == userID {
		for i := range s.messages {
			if s.messages[i].Sender == userID {
				s.messages[i].IsRead = true
			}
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.MarkPreviewRead(userID); err != nil {
			log.Printf("chat: cache preview update failed for %s: %v", userID, err)
		}
		if err := s.deps.Cache.MarkSenderRead(RoomFor(userID), userID); err != nil {
			log.Printf("chat: cache read update failed for %s: %v", userID, err)
		}
	}
}

// promoteEntryLocked updates the matching roster entry's preview and moves
// it to the front. Returns false when no entry matches.
func (s *AdminSession) promoteEntryLocked(note realtime.AdminNotification) bool {
	for i := range s.roster {
		if s.roster[i].User.ID != note.UserID {
			continue
		}
		entry := s.roster[i]
		entry.LastMessage = models.Preview{
			Content:   note.Content,
			Unread:    true,
			Timestamp: note.Timestamp,
		}
		s.roster = append(s.roster[:i], s.roster[i+1:]...)
		s.roster = append([]RosterEntry{entry}, s.roster...)
		return true
	}
	return false
}

func (s *AdminSession) hasEntryLocked(userID string) bool {
	for i := range s.roster {
		if s.roster[i].User.ID == userID {
			return true
		}
	}
	return false
}

// fetchPreview derives one roster entry's last-message preview. Errors
// degrade to the zero preview so one slow or failing conversation cannot
// block the roster.
func (s *AdminSession) fetchPreview(ctx context.Context, userID string) models.Preview {
	room := RoomFor(userID)
	history, err := s.deps.API.History(ctx, userID)
	if err != nil {
		log.Printf("chat: preview fetch failed for %s: %v", userID, err)
		return s.cachedPreview(userID)
	}
	history = normalizeHistory(history, room)
	s.cacheMessages(history)

	if len(history) == 0 {
		return models.Preview{}
	}
	last := history[len(history)-1]
	preview := models.Preview{
		Content:   last.Content,
		Unread:    !last.FromAdmin() && !last.IsRead,
		Timestamp: last.Timestamp,
	}
	s.cachePreview(userID, preview)
	return preview
}

func (s *AdminSession) rollback(correlationID string) {
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

func (s *AdminSession) confirm(correlationID string, stored models.Message) models.Message {
	s.mu.Lock()
	confirmed := stored
	confirmed.ID = correlationID
	if confirmed.Room == "" {
		confirmed.Room = s.activeRoom
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

func (s *AdminSession) publishRoster(roster []RosterEntry) {
	s.mu.Lock()
	s.roster = roster
	s.mu.Unlock()
	s.fireRoster()
}

func (s *AdminSession) fireRoster() {
	s.mu.Lock()
	fn := s.onRoster
	var snapshot []RosterEntry
	if fn != nil {
		snapshot = make([]RosterEntry, len(s.roster))
		copy(snapshot, s.roster)
	}
	s.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (s *AdminSession) fireUpdate() {
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

// cachedRoster rebuilds the roster from cached contacts and previews when
// the roster fetch fails.
func (s *AdminSession) cachedRoster() []RosterEntry {
	if s.deps.Cache == nil {
		return nil
	}
	contacts, err := s.deps.Cache.ListContacts()
	if err != nil {
		log.Printf("chat: cache contact read failed: %v", err)
		return nil
	}
	previews, err := s.deps.Cache.ListPreviews()
	if err != nil {
		log.Printf("chat: cache preview read failed: %v", err)
		previews = nil
	}

	roster := make([]RosterEntry, len(contacts))
	for i, user := range contacts {
		roster[i] = RosterEntry{User: user, LastMessage: previews[user.ID]}
	}
	return roster
}

// cachedPreview falls back to the stored preview, then to the last cached
// message of the conversation.
func (s *AdminSession) cachedPreview(userID string) models.Preview {
	if s.deps.Cache == nil {
		return models.Preview{}
	}
	if previews, err := s.deps.Cache.ListPreviews(); err == nil {
		if preview, ok := previews[userID]; ok {
			return preview
		}
	}
	last, err := s.deps.Cache.LastMessageByRoom(RoomFor(userID))
	if err != nil {
		return models.Preview{}
	}
	return models.Preview{
		Content:   last.Content,
		Unread:    !last.FromAdmin() && !last.IsRead,
		Timestamp: last.Timestamp,
	}
}

func (s *AdminSession) cachedMessages(room string) []models.Message {
	if s.deps.Cache == nil {
		return nil
	}
	cached, err := s.deps.Cache.MessagesByRoom(room)
	if err != nil {
		log.Printf("chat: cache read failed for %s: %v", room, err)
		return nil
	}
	return cached
}

func (s *AdminSession) cacheContacts(users []models.User) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SaveContacts(users); err != nil {
		log.Printf("chat: cache contact write failed: %v", err)
	}
}

func (s *AdminSession) cacheMessages(messages []models.Message) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SaveMessages(messages); err != nil {
		log.Printf("chat: cache write failed: %v", err)
	}
}

func (s *AdminSession) cacheMessage(msg models.Message) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.SaveMessage(msg); err != nil {
		log.Printf("chat: cache write failed: %v", err)
	}
}

func (s *AdminSession) cachePreview(userID string, preview models.Preview) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.UpsertPreview(userID, preview); err != nil {
		log.Printf("chat: cache preview write failed for %s: %v", userID, err)
	}
}
