package chat

import (
	"context"
	"errors"
	"sync"

	"supportchat/models"
	"supportchat/notify"
	"supportchat/realtime"
)

// fakeAPI is an in-memory API with per-user gates so tests can hold a fetch
// in flight.
type fakeAPI struct {
	mu         sync.Mutex
	histories  map[string][]models.Message
	historyErr map[string]error
	users      []models.User
	usersErr   error
	sendErr    error

	listCalls    int
	historyCalls map[string]int
	sent         []sentCall

	gates map[string]chan struct{}
}

type sentCall struct {
	userID string
	msg    models.Message
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		histories:    make(map[string][]models.Message),
		historyErr:   make(map[string]error),
		historyCalls: make(map[string]int),
		gates:        make(map[string]chan struct{}),
	}
}

func (a *fakeAPI) gate(userID string) chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	gate := make(chan struct{})
	a.gates[userID] = gate
	return gate
}

func (a *fakeAPI) History(ctx context.Context, userID string) ([]models.Message, error) {
	a.mu.Lock()
	a.historyCalls[userID]++
	gate := a.gates[userID]
	err := a.historyErr[userID]
	history := append([]models.Message(nil), a.histories[userID]...)
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (a *fakeAPI) SendMessage(ctx context.Context, userID string, msg models.Message) (models.Message, error) {
	a.mu.Lock()
	gate := a.gates["send:"+userID]
	err := a.sendErr
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Message{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Message{}, err
	}

	a.mu.Lock()
	a.sent = append(a.sent, sentCall{userID: userID, msg: msg})
	a.mu.Unlock()

	stored := msg
	stored.Pending = false
	return stored, nil
}

func (a *fakeAPI) ListUsers(ctx context.Context) ([]models.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++
	if a.usersErr != nil {
		return nil, a.usersErr
	}
	return append([]models.User(nil), a.users...), nil
}

func (a *fakeAPI) sentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sent)
}

// fakeTransport records emits and lets tests push inbound events by invoking
// the registered handlers directly.
type fakeTransport struct {
	mu         sync.Mutex
	logins     []realtime.LoginPayload
	joined     []string
	receipts   []realtime.ReadReceipt
	mirrored   []realtime.OutgoingMessage
	onMessage  func(models.Message)
	onReceipt  func(string)
	onNote     func(realtime.AdminNotification)
	onPresence func(map[string]bool)
}

func (t *fakeTransport) AnnouncePresence(userID string, isAdmin bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logins = append(t.logins, realtime.LoginPayload{UserID: userID, IsAdmin: isAdmin})
	return nil
}

func (t *fakeTransport) JoinRoom(room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined = append(t.joined, room)
	return nil
}

func (t *fakeTransport) MarkAsRead(userID, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receipts = append(t.receipts, realtime.ReadReceipt{UserID: userID, Room: room})
	return nil
}

func (t *fakeTransport) SendMessage(msg models.Message, receiver string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirrored = append(t.mirrored, realtime.OutgoingMessage{Message: msg, Receiver: receiver})
	return nil
}

func (t *fakeTransport) OnMessage(handler func(models.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = handler
}

func (t *fakeTransport) OnMarkedAsRead(handler func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReceipt = handler
}

func (t *fakeTransport) OnAdminNotification(handler func(realtime.AdminNotification)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNote = handler
}

func (t *fakeTransport) OnStatusUpdate(handler func(map[string]bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPresence = handler
}

func (t *fakeTransport) pushMessage(msg models.Message) {
	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (t *fakeTransport) pushReceipt(userID string) {
	t.mu.Lock()
	handler := t.onReceipt
	t.mu.Unlock()
	if handler != nil {
		handler(userID)
	}
}

func (t *fakeTransport) pushNotification(note realtime.AdminNotification) {
	t.mu.Lock()
	handler := t.onNote
	t.mu.Unlock()
	if handler != nil {
		handler(note)
	}
}

func (t *fakeTransport) pushStatus(status map[string]bool) {
	t.mu.Lock()
	handler := t.onPresence
	t.mu.Unlock()
	if handler != nil {
		handler(status)
	}
}

func (t *fakeTransport) mirroredCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.mirrored)
}

// recordingNotifier collects transient alerts.
type recordingNotifier struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (n *recordingNotifier) Notify(alert notify.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	mu       sync.Mutex
	messages map[string][]models.Message // room -> arrival order
	contacts []models.User
	previews map[string]models.Preview
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		messages: make(map[string][]models.Message),
		previews: make(map[string]models.Preview),
	}
}

func (c *fakeCache) SaveMessage(msg models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.messages[msg.Room] {
		if existing.ID == msg.ID {
			c.messages[msg.Room][i] = msg
			return nil
		}
	}
	c.messages[msg.Room] = append(c.messages[msg.Room], msg)
	return nil
}

func (c *fakeCache) SaveMessages(msgs []models.Message) error {
	for _, msg := range msgs {
		if err := c.SaveMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeCache) MessagesByRoom(room string) ([]models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages[room]...), nil
}

func (c *fakeCache) LastMessageByRoom(room string) (models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.messages[room]
	if len(msgs) == 0 {
		return models.Message{}, errors.New("no cached messages")
	}
	return msgs[len(msgs)-1], nil
}

func (c *fakeCache) MarkSenderRead(room, sender string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages[room] {
		if c.messages[room][i].Sender == sender {
			c.messages[room][i].IsRead = true
		}
	}
	return nil
}

func (c *fakeCache) SaveContacts(users []models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = append([]models.User(nil), users...)
	return nil
}

func (c *fakeCache) ListContacts() ([]models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.contacts...), nil
}

func (c *fakeCache) UpsertPreview(userID string, preview models.Preview) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.previews[userID] = preview
	return nil
}

func (c *fakeCache) MarkPreviewRead(userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	preview := c.previews[userID]
	preview.Unread = false
	c.previews[userID] = preview
	return nil
}

func (c *fakeCache) ListPreviews() (map[string]models.Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.Preview, len(c.previews))
	for id, preview := range c.previews {
		out[id] = preview
	}
	return out, nil
}
