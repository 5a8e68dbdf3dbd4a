package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/models"
	"github.com/parley/backend/internal/store"
)

// Hub maintains the set of connected clients and fans record-store change
// events out to them.
type Hub struct {
	clients    map[uuid.UUID]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	store store.RecordStore
	log   zerolog.Logger

	// statuses tracks last-seen account statuses. Touched only by the
	// users watcher goroutine.
	statuses map[uuid.UUID]models.Status

	mu sync.RWMutex
}

func NewHub(s store.RecordStore, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		store:      s,
		log:        log,
		statuses:   make(map[uuid.UUID]models.Status),
	}
}

// Run blocks until ctx ends, pumping registrations and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	go h.watch(ctx, store.MessagesPrefix, h.forwardMessage)
	go h.watch(ctx, store.FlagsPrefix, h.forwardFlag)
	go h.watch(ctx, store.UsersPrefix, h.forwardUserStatus)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()
			h.log.Debug().Str("user_id", client.userID.String()).Msg("websocket client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Str("user_id", client.userID.String()).Msg("websocket client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client.userID)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			return
		}
	}
}

// watch pipes record changes under prefix through fn until ctx ends.
func (h *Hub) watch(ctx context.Context, prefix string, fn func(store.Event)) {
	events, cancel, err := h.store.Subscribe(ctx, prefix)
	if err != nil {
		h.log.Error().Err(err).Str("prefix", prefix).Msg("websocket hub could not subscribe to store")
		return
	}
	defer cancel()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			fn(ev)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) forwardMessage(ev store.Event) {
	envelope := models.WSMessage{Event: models.EventMessageNew}
	if ev.Deleted {
		envelope.Event = models.EventMessageDeleted
		envelope.Payload = map[string]string{"path": ev.Path}
	} else {
		var message models.Message
		if err := json.Unmarshal(ev.Value, &message); err != nil {
			return
		}
		envelope.Payload = message
	}
	h.send(envelope)
}

// forwardFlag announces that a message entered review. Only the id is
// pushed; flag details stay on the admin API.
func (h *Hub) forwardFlag(ev store.Event) {
	if ev.Deleted {
		return
	}
	var flag models.FlaggedMessage
	if err := json.Unmarshal(ev.Value, &flag); err != nil {
		return
	}
	if flag.Reviewed {
		return
	}
	h.send(models.WSMessage{
		Event:   models.EventMessageFlagged,
		Payload: map[string]string{"message_id": flag.MessageID.String()},
	})
}

// forwardUserStatus pushes account standing changes, skipping the profile
// writes that only bump counters.
func (h *Hub) forwardUserStatus(ev store.Event) {
	if ev.Deleted {
		return
	}
	var user models.UserProfile
	if err := json.Unmarshal(ev.Value, &user); err != nil {
		return
	}
	prev, seen := h.statuses[user.ID]
	h.statuses[user.ID] = user.Status
	// First sight of a user primes the map from the subscription snapshot
	// without broadcasting.
	if !seen || prev == user.Status {
		return
	}
	h.send(models.WSMessage{
		Event: models.EventUserStatus,
		Payload: map[string]string{
			"user_id": user.ID.String(),
			"status":  string(user.Status),
		},
	})
}

func (h *Hub) send(envelope models.WSMessage) {
	data, err := json.Marshal(envelope)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn().Msg("websocket broadcast buffer full, dropping event")
	}
}

// ConnectedUsers lists the user ids with an open socket.
func (h *Hub) ConnectedUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
