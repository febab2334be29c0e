package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Siddharthrai7i/NAJARIA/internal/messaging"
	"github.com/Siddharthrai7i/NAJARIA/internal/middleware"
	"github.com/Siddharthrai7i/NAJARIA/internal/telemetry"
)

// MessageHandler exposes the direct-messaging endpoints.
type MessageHandler struct {
	service *messaging.Service
	audit   *telemetry.AuditEmitter
	log     zerolog.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(service *messaging.Service, audit *telemetry.AuditEmitter, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{service: service, audit: audit, log: log}
}

// ListConversations returns the caller's conversations with unread counts.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	actor := actorFromContext(c)

	conversations, err := h.service.ListConversations(c.Request.Context(), actor.ID)
	if err != nil {
		h.respondError(c, err, "failed to load conversations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "conversations": conversations})
}

// OpenChat returns the history with the target user and marks incoming
// messages read.
func (h *MessageHandler) OpenChat(c *gin.Context) {
	actor := actorFromContext(c)
	targetUserID := c.Param("user_id")

	result, err := h.service.OpenChat(c.Request.Context(), actor, targetUserID)
	if err != nil {
		h.respondError(c, err, "failed to load chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"conversation_id": result.Conversation.ConversationID,
		"conversation":    result.Conversation,
		"friend":          result.Friend,
		"messages":        result.Messages,
	})
}

// SendMessage appends a message to the conversation with the target user.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	actor := actorFromContext(c)
	targetUserID := c.Param("user_id")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), actor, targetUserID, req.Content)
	if err != nil {
		h.respondError(c, err, "failed to send message")
		return
	}

	h.audit.Emit(c.Request.Context(), actor.ID, requestIDFromContext(c), telemetry.AuditPayload{
		Action:         "message_sent",
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

// PollNewMessages returns messages newer than the last seen one and marks the
// returned set read. The literal path value "null" means "from the beginning".
func (h *MessageHandler) PollNewMessages(c *gin.Context) {
	actor := actorFromContext(c)
	conversationID := c.Param("conversation_id")

	var lastSeenID *int64
	if raw := c.Param("last_message_id"); raw != "null" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last message id"})
			return
		}
		lastSeenID = &parsed
	}

	msgs, err := h.service.PollNewMessages(c.Request.Context(), actor, conversationID, lastSeenID)
	if err != nil {
		h.respondError(c, err, "failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "messages": msgs})
}

// ReadStatus reports read state for a comma-separated list of message ids the
// caller sent.
func (h *MessageHandler) ReadStatus(c *gin.Context) {
	actor := actorFromContext(c)
	conversationID := c.Param("conversation_id")

	rawIDs := strings.Split(c.Param("message_ids"), ",")
	messageIDs := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id list"})
			return
		}
		messageIDs = append(messageIDs, id)
	}

	statuses, err := h.service.ReadStatus(c.Request.Context(), actor, conversationID, lo.Uniq(messageIDs))
	if err != nil {
		h.respondError(c, err, "failed to load read status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "statuses": statuses})
}

// DeleteMessage removes a message the caller sent.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	actor := actorFromContext(c)

	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	if err := h.service.DeleteMessage(c.Request.Context(), actor, messageID); err != nil {
		h.respondError(c, err, "failed to delete message")
		return
	}

	h.audit.Emit(c.Request.Context(), actor.ID, requestIDFromContext(c), telemetry.AuditPayload{
		Action:    "message_deleted",
		MessageID: messageID,
	})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// respondError maps the service error taxonomy onto HTTP statuses. Store
// failures stay generic: the cause is logged, never exposed.
func (h *MessageHandler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, messaging.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, messaging.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
	case errors.Is(err, messaging.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("store failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func actorFromContext(c *gin.Context) messaging.Actor {
	return messaging.Actor{
		ID:        c.GetString(middleware.UserIDKey),
		VillageID: c.GetString(middleware.VillageIDKey),
	}
}
