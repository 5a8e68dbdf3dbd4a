package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

func newTestHub(t *testing.T) (*Hub, *store.MemoryStore, context.CancelFunc) {
	t.Helper()
	s := store.NewMemoryStore()
	hub := NewHub(s, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, s, cancel
}

func TestHub_RegisterAndConnectedUsers(t *testing.T) {
	hub, _, cancel := newTestHub(t)
	defer cancel()

	client := &Client{hub: hub, send: make(chan []byte, 16), userID: uuid.New(), connectedAt: time.Now()}
	hub.register <- client

	deadline := time.Now().Add(time.Second)
	for {
		if ids := hub.ConnectedUsers(); len(ids) == 1 && ids[0] == client.userID {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.unregister <- client
	deadline = time.Now().Add(time.Second)
	for {
		if len(hub.ConnectedUsers()) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastsStoreEvents(t *testing.T) {
	hub, s, cancel := newTestHub(t)
	defer cancel()

	client := &Client{hub: hub, send: make(chan []byte, 16), userID: uuid.New(), connectedAt: time.Now()}
	hub.register <- client

	msg := models.Message{
		ID:         uuid.New(),
		ChannelID:  models.DefaultChannel,
		AuthorID:   uuid.New(),
		AuthorName: "Alice",
		Body:       "hello there",
		CreatedAt:  time.Now(),
		Validated:  true,
	}
	if err := s.Write(context.Background(), store.Join(store.MessagesPrefix, msg.ID.String()), msg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var envelope models.WSMessage
	select {
	case data := <-client.send:
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("failed to decode envelope: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}

	if envelope.Event != models.EventMessageNew {
		t.Errorf("event = %s, want %s", envelope.Event, models.EventMessageNew)
	}
	payload, err := json.Marshal(envelope.Payload)
	if err != nil {
		t.Fatalf("failed to re-encode payload: %v", err)
	}
	var got models.Message
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if got.ID != msg.ID || got.Body != msg.Body {
		t.Errorf("payload = %+v, want the stored message", got)
	}
}

func TestHub_ForwardsDeletes(t *testing.T) {
	hub, s, cancel := newTestHub(t)
	defer cancel()

	client := &Client{hub: hub, send: make(chan []byte, 16), userID: uuid.New(), connectedAt: time.Now()}
	hub.register <- client

	path := store.Join(store.MessagesPrefix, uuid.New().String())
	if err := s.Write(context.Background(), path, models.Message{ID: uuid.New(), Body: "soon gone"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := s.Delete(context.Background(), path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	sawDelete := false
	deadline := time.After(2 * time.Second)
	for !sawDelete {
		select {
		case data := <-client.send:
			var envelope models.WSMessage
			if err := json.Unmarshal(data, &envelope); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			if envelope.Event == models.EventMessageDeleted {
				sawDelete = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for delete event")
		}
	}
}

func waitForEvent(t *testing.T, client *Client, event string) models.WSMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-client.send:
			var envelope models.WSMessage
			if err := json.Unmarshal(data, &envelope); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			if envelope.Event == event {
				return envelope
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", event)
		}
	}
}

func TestHub_ForwardsFlags(t *testing.T) {
	hub, s, cancel := newTestHub(t)
	defer cancel()

	client := &Client{hub: hub, send: make(chan []byte, 16), userID: uuid.New(), connectedAt: time.Now()}
	hub.register <- client

	flag := models.FlaggedMessage{
		MessageID:   uuid.New(),
		AuthorID:    uuid.New(),
		Body:        "this is shit",
		Reason:      models.ReasonProfanity,
		Severity:    models.SeverityMedium,
		AutoFlagged: true,
		FlaggedAt:   time.Now(),
	}
	if err := s.Write(context.Background(), store.Join(store.FlagsPrefix, flag.MessageID.String()), flag); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	envelope := waitForEvent(t, client, models.EventMessageFlagged)
	payload, _ := envelope.Payload.(map[string]interface{})
	if payload["message_id"] != flag.MessageID.String() {
		t.Errorf("payload = %+v, want only the message id", envelope.Payload)
	}
	if _, leaked := payload["body"]; leaked {
		t.Error("flag details must not reach clients")
	}
}

func TestHub_ForwardsStatusChanges(t *testing.T) {
	hub, s, cancel := newTestHub(t)
	defer cancel()

	client := &Client{hub: hub, send: make(chan []byte, 16), userID: uuid.New(), connectedAt: time.Now()}
	hub.register <- client

	user := models.UserProfile{
		ID:          uuid.New(),
		Email:       "watched@example.com",
		DisplayName: "Watched",
		Role:        models.RoleUser,
		Status:      models.StatusActive,
	}
	path := store.Join(store.UsersPrefix, user.ID.String())
	if err := s.Write(context.Background(), path, user); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// A counter bump with no status change must not broadcast; the
	// following ban must. Give the watcher a moment to see the first write.
	time.Sleep(20 * time.Millisecond)
	if err := s.Merge(context.Background(), path, map[string]interface{}{"message_count": 1}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if err := s.Merge(context.Background(), path, map[string]interface{}{"status": models.StatusBanned}); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	envelope := waitForEvent(t, client, models.EventUserStatus)
	payload, _ := envelope.Payload.(map[string]interface{})
	if payload["user_id"] != user.ID.String() {
		t.Errorf("user_id = %v, want %s", payload["user_id"], user.ID)
	}
	if payload["status"] != string(models.StatusBanned) {
		t.Errorf("status = %v, want banned", payload["status"])
	}
}
