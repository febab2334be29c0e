package messaging

import (
	"time"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
)

// Fanout pushes live updates to clients subscribed to a conversation channel.
// The service only emits into it; connection lifecycle belongs to the ws layer.
type Fanout interface {
	PublishNewMessage(conversationID string, msg models.MessageWithSender)
	PublishRead(conversationID string, messageIDs []int64, readAt time.Time)
	PublishDeletion(conversationID string, messageID int64)
}

// NoopFanout discards every event. Used when no real-time layer is attached.
type NoopFanout struct{}

func (NoopFanout) PublishNewMessage(string, models.MessageWithSender) {}
func (NoopFanout) PublishRead(string, []int64, time.Time)             {}
func (NoopFanout) PublishDeletion(string, int64)                      {}
