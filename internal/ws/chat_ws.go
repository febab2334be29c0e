package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/Siddharthrai7i/NAJARIA/internal/auth"
	"github.com/Siddharthrai7i/NAJARIA/internal/middleware"
	"github.com/Siddharthrai7i/NAJARIA/internal/observability"
	"github.com/Siddharthrai7i/NAJARIA/internal/repositories"
)

// ChatWebSocketHandler upgrades clients onto a conversation fanout channel.
type ChatWebSocketHandler struct {
	hub           *Hub
	conversations repositories.ConversationRepository
	tokens        *auth.TokenManager
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, conversations repositories.ConversationRepository, tokens *auth.TokenManager) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, conversations: conversations, tokens: tokens}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what connected clients may send; only typing indicators are
// accepted, everything else goes through the HTTP API.
type inboundFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// Handle authenticates the caller, verifies conversation membership and joins
// the connection to the conversation room.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("village-messaging/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	ident, err := h.tokens.Verify(middleware.TokenFromRequest(c))
	if err != nil || !ident.Active {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.conversations.IsParticipant(ctx, conversationID, ident.UserID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for conversation"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      ident.UserID,
		Username:    ident.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(conversationID, conn, info)

	observability.IncWSActive()
	publishWSEvent(ctx, "ws_connect", conversationID, info, "")

	go h.readLoop(conversationID, conn, info)
}

// readLoop consumes inbound frames until the connection dies. Typing frames
// are relayed to the rest of the room; anything else is ignored.
func (h *ChatWebSocketHandler) readLoop(conversationID string, conn *websocket.Conn, info ConnInfo) {
	ctx := context.Background()
	var closeReason string
	defer func() {
		h.hub.RemoveClient(conversationID, conn)
		observability.DecWSActive()
		publishWSEvent(ctx, "ws_disconnect", conversationID, info, closeReason)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishWSEvent(ctx, "ws_error", conversationID, info, closeReason)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type == EventTyping {
			h.hub.RelayTyping(conversationID, conn, info.UserID, info.Username, frame.IsTyping)
		}
	}
}
