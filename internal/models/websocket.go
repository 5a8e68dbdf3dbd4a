package models

// WebSocket event types pushed to connected clients.
const (
	EventMessageNew     = "message:new"
	EventMessageDeleted = "message:deleted"
	EventMessageFlagged = "message:flagged"
	EventUserStatus     = "user:status"
)

// WSMessage is the envelope for every event sent over the socket.
type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}
