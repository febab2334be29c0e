package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
	"github.com/Siddharthrai7i/NAJARIA/internal/observability"
)

// Event type values sent over the fanout channel.
const (
	EventNewMessage     = "new_message"
	EventMessagesRead   = "messages_read"
	EventMessageDeleted = "message_deleted"
	EventTyping         = "typing"
)

// Hub maintains the active websocket rooms, one per conversation id. It is
// the concrete real-time fanout the messaging service publishes into.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
	log      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
		log:      log,
	}
}

// AddClient registers a websocket connection in a conversation room.
func (h *Hub) AddClient(conversationID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[conversationID]; !ok {
		h.rooms[conversationID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[conversationID][conn] = true
	if _, ok := h.connInfo[conversationID]; !ok {
		h.connInfo[conversationID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[conversationID][conn] = info
}

// RemoveClient removes a websocket connection from a conversation room.
func (h *Hub) RemoveClient(conversationID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	if infos, ok := h.connInfo[conversationID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, conversationID)
		}
	}
}

// PublishNewMessage pushes a freshly created message to the conversation room.
func (h *Hub) PublishNewMessage(conversationID string, msg models.MessageWithSender) {
	h.broadcast(conversationID, models.ChatEvent{Type: EventNewMessage, Message: &msg}, nil)
}

// PublishRead pushes a read receipt for the given message ids.
func (h *Hub) PublishRead(conversationID string, messageIDs []int64, readAt time.Time) {
	h.broadcast(conversationID, models.ChatEvent{Type: EventMessagesRead, MessageIDs: messageIDs, ReadAt: &readAt}, nil)
}

// PublishDeletion notifies the room that a message was removed by its sender.
func (h *Hub) PublishDeletion(conversationID string, messageID int64) {
	h.broadcast(conversationID, models.ChatEvent{Type: EventMessageDeleted, MessageID: messageID}, nil)
}

// RelayTyping forwards a typing indicator to everyone in the room except the
// originating connection.
func (h *Hub) RelayTyping(conversationID string, from *websocket.Conn, userID, username string, isTyping bool) {
	h.broadcast(conversationID, models.ChatEvent{
		Type:     EventTyping,
		UserID:   userID,
		Username: username,
		IsTyping: isTyping,
	}, from)
}

func (h *Hub) broadcast(conversationID string, event models.ChatEvent, except *websocket.Conn) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[conversationID]))
	for conn := range h.rooms[conversationID] {
		if conn != except {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Type).Msg("marshal websocket event")
		return
	}

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.log.Warn().Err(err).Str("conversation_id", conversationID).Msg("websocket write error")
			conn.Close()
			h.publishWSError(conversationID, conn, err)
			h.RemoveClient(conversationID, conn)
		}
	}
}

func (h *Hub) publishWSError(conversationID string, conn *websocket.Conn, cause error) {
	info, ok := h.getConnInfo(conversationID, conn)
	if !ok {
		return
	}
	publishWSEvent(context.Background(), "ws_error", conversationID, info, cause.Error())
}

func (h *Hub) getConnInfo(conversationID string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[conversationID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

// publishWSEvent reports a websocket lifecycle event to the broker and the
// metrics registry.
func publishWSEvent(ctx context.Context, event, conversationID string, info ConnInfo, reason string) {
	observability.IncWSEvent(event)
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"conversation_id": conversationID,
			"event":           event,
			"conn_id":         info.ConnID,
			"duration_ms":     time.Since(info.ConnectedAt).Milliseconds(),
			"reason":          reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
