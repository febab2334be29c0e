package models

import "time"

// Message is a single direct message inside a conversation. The read state is
// mutated exactly once, by the receiver, and never reverted.
type Message struct {
	ID             int64      `db:"id" json:"id"`
	ConversationID string     `db:"conversation_id" json:"conversation_id"`
	SenderID       string     `db:"sender_id" json:"sender_id"`
	ReceiverID     string     `db:"receiver_id" json:"receiver_id"`
	VillageID      string     `db:"village_id" json:"village_id"`
	Content        string     `db:"content" json:"content"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// MessageWithSender carries a message together with the sender's resolved
// display fields for rendering.
type MessageWithSender struct {
	Message
	SenderUsername string `json:"sender_username,omitempty"`
	SenderFullName string `json:"sender_full_name,omitempty"`
}

// ReadStatus reports the read state of a single message to its sender.
type ReadStatus struct {
	ID     int64      `db:"id" json:"id"`
	IsRead bool       `db:"is_read" json:"is_read"`
	ReadAt *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// ChatEvent is broadcast through the websocket fanout channel named by the
// conversation id.
type ChatEvent struct {
	Type       string             `json:"type"`
	Message    *MessageWithSender `json:"message,omitempty"`
	MessageID  int64              `json:"message_id,omitempty"`
	MessageIDs []int64            `json:"message_ids,omitempty"`
	ReadAt     *time.Time         `json:"read_at,omitempty"`
	UserID     string             `json:"user_id,omitempty"`
	Username   string             `json:"username,omitempty"`
	IsTyping   bool               `json:"is_typing,omitempty"`
}
