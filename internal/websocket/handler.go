package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parley/backend/internal/auth"
)

// Handler upgrades authenticated requests to websocket sessions.
type Handler struct {
	hub        *Hub
	jwtService *auth.JWTService
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewHandler(hub *Hub, jwtService *auth.JWTService, allowedOrigins []string, log zerolog.Logger) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		hub:        hub,
		jwtService: jwtService,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin] || allowed["*"]
			},
		},
	}
}

// HandleWebSocket authenticates via the token query parameter (browsers
// cannot set headers on websocket dials) and joins the hub.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
		return
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, 64),
		userID:      claims.UserID,
		connectedAt: time.Now(),
	}
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// GetOnlineUsers lists connected user ids.
func (h *Handler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": h.hub.ConnectedUsers()})
}
