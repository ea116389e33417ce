package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"supportchat/models"
	"supportchat/notify"
)

func startedUserSession(t *testing.T, api *fakeAPI, transport *fakeTransport) *UserSession {
	t.Helper()

	session := NewUserSession("U1", Deps{API: api, Transport: transport})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestUserSessionGate(t *testing.T) {
	session := NewUserSession("", Deps{API: newFakeAPI()})
	if err := session.Start(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for absent identity, got %v", err)
	}
}

func TestUserStartJoinsRoomAndAnnouncesPresence(t *testing.T) {
	api := newFakeAPI()
	api.histories["U1"] = []models.Message{
		{ID: "m1", Sender: models.AdminSender, Content: "hi", Room: "admin-U1", Timestamp: 100},
		{ID: "m2", Sender: "U1", Content: "hello", Room: "admin-U1", Timestamp: 200},
	}
	transport := &fakeTransport{}

	session := startedUserSession(t, api, transport)

	messages := session.Messages()
	if len(messages) != 2 || messages[0].ID != "m1" || messages[1].ID != "m2" {
		t.Fatalf("expected history in arrival order, got %+v", messages)
	}
	if len(transport.joined) != 1 || transport.joined[0] != "admin-U1" {
		t.Fatalf("expected join of own room, got %v", transport.joined)
	}
	if len(transport.logins) != 1 || transport.logins[0].UserID != "U1" || transport.logins[0].IsAdmin {
		t.Fatalf("unexpected presence announcement %+v", transport.logins)
	}
}

func TestUserSendAppendsExactlyOneOptimisticMessage(t *testing.T) {
	api := newFakeAPI()
	transport := &fakeTransport{}
	session := startedUserSession(t, api, transport)

	var updates [][]models.Message
	session.OnUpdate(func(msgs []models.Message) {
		updates = append(updates, msgs)
	})

	if err := session.Send(context.Background(), "hello there"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	messages := session.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(messages))
	}
	if messages[0].Pending {
		t.Fatalf("expected message confirmed after successful persist")
	}
	if messages[0].Sender != "U1" || messages[0].Room != "admin-U1" {
		t.Fatalf("unexpected message %+v", messages[0])
	}
	if messages[0].ID == "" {
		t.Fatalf("expected a correlation id on the outgoing message")
	}

	// The optimistic copy must have been visible before the persist settled.
	if len(updates) < 2 {
		t.Fatalf("expected an optimistic render before confirmation, got %d updates", len(updates))
	}
	if len(updates[0]) != 1 || !updates[0][0].Pending {
		t.Fatalf("expected first render to carry the pending optimistic copy, got %+v", updates[0])
	}

	if transport.mirroredCount() != 1 {
		t.Fatalf("expected one mirrored push event, got %d", transport.mirroredCount())
	}
	transport.mu.Lock()
	mirrored := transport.mirrored[0]
	transport.mu.Unlock()
	if mirrored.Receiver != models.AdminSender {
		t.Fatalf("expected mirror receiver %q, got %q", models.AdminSender, mirrored.Receiver)
	}
}

func TestUserSendRollsBackOnFailureOnly(t *testing.T) {
	api := newFakeAPI()
	api.histories["U1"] = []models.Message{
		{ID: "old", Sender: models.AdminSender, Content: "hi", Room: "admin-U1", Timestamp: 500},
	}
	api.sendErr = errors.New("backend down")
	session := startedUserSession(t, api, &fakeTransport{})

	if err := session.Send(context.Background(), "does not persist"); err == nil {
		t.Fatalf("expected Send to surface the persist failure")
	}

	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != "old" {
		t.Fatalf("expected only the pre-existing message after rollback, got %+v", messages)
	}
}

func TestUserSendRejectsBlankInput(t *testing.T) {
	api := newFakeAPI()
	session := startedUserSession(t, api, &fakeTransport{})

	for _, input := range []string{"", "   ", "\n\t "} {
		if err := session.Send(context.Background(), input); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage for %q, got %v", input, err)
		}
	}

	if len(session.Messages()) != 0 {
		t.Fatalf("blank input must not append")
	}
	if api.sentCount() != 0 {
		t.Fatalf("blank input must not issue a request")
	}
}

func TestUserSendExclusiveWhileInFlight(t *testing.T) {
	api := newFakeAPI()
	gate := api.gate("send:U1")
	session := startedUserSession(t, api, &fakeTransport{})

	done := make(chan error, 1)
	go func() {
		done <- session.Send(context.Background(), "first")
	}()

	waitFor(t, session.Sending)

	if err := session.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight while a send is unsettled, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if len(session.Messages()) != 1 {
		t.Fatalf("expected only the first send appended, got %d", len(session.Messages()))
	}
}

func TestUserRoomIsolation(t *testing.T) {
	api := newFakeAPI()
	transport := &fakeTransport{}
	session := startedUserSession(t, api, transport)

	// Admin message for someone else's room: never appended.
	transport.pushMessage(models.Message{ID: "x1", Sender: models.AdminSender, Content: "wrong", Room: "admin-U2"})
	// Non-admin sender for own room: discarded too.
	transport.pushMessage(models.Message{ID: "x2", Sender: "U2", Content: "spoof", Room: "admin-U1"})
	// Admin message for own room: accepted.
	transport.pushMessage(models.Message{ID: "ok", Sender: models.AdminSender, Content: "hi", Room: "admin-U1"})

	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != "ok" {
		t.Fatalf("expected only the own-room admin message, got %+v", messages)
	}
}

func TestUserInactiveViewRaisesAlertAndUnseenFlag(t *testing.T) {
	api := newFakeAPI()
	transport := &fakeTransport{}
	notifier := &recordingNotifier{}
	var unseen notify.Flag

	session := NewUserSession("U1", Deps{
		API:       api,
		Transport: transport,
		Notifier:  notifier,
		Unseen:    &unseen,
	})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer session.Close()

	transport.pushMessage(models.Message{ID: "m1", Sender: models.AdminSender, Content: "anyone there?", Room: "admin-U1"})
	if notifier.count() != 1 {
		t.Fatalf("expected an alert while the drawer is closed, got %d", notifier.count())
	}
	if !unseen.Value() {
		t.Fatalf("expected unseen flag set while the drawer is closed")
	}

	session.SetActive(true)
	transport.pushMessage(models.Message{ID: "m2", Sender: models.AdminSender, Content: "hello again", Room: "admin-U1"})
	if notifier.count() != 1 {
		t.Fatalf("expected no alert while the drawer is open, got %d", notifier.count())
	}
}

func TestUserHistoryFailureFallsBackToCache(t *testing.T) {
	api := newFakeAPI()
	api.historyErr["U1"] = errors.New("backend down")
	cache := newFakeCache()
	_ = cache.SaveMessage(models.Message{ID: "c1", Sender: models.AdminSender, Content: "stale", Room: "admin-U1", Timestamp: 10})

	session := NewUserSession("U1", Deps{API: api, Cache: cache})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer session.Close()

	messages := session.Messages()
	if len(messages) != 1 || messages[0].ID != "c1" {
		t.Fatalf("expected cached stale state, got %+v", messages)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
