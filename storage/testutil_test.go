package storage

import (
	"testing"

	"supportchat/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustSaveMessage(t *testing.T, store *Store, msg models.Message) {
	t.Helper()

	if err := store.SaveMessage(msg); err != nil {
		t.Fatalf("save message %q: %v", msg.ID, err)
	}
}
