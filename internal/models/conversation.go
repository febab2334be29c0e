package models

import "time"

// Conversation groups all messages between exactly two members of the same
// village. The id is derived from the sorted participant pair, so the primary
// key doubles as the uniqueness guarantee for the pair.
type Conversation struct {
	ConversationID  string    `db:"conversation_id" json:"conversation_id"`
	ParticipantLow  string    `db:"participant_low" json:"participant_low"`
	ParticipantHigh string    `db:"participant_high" json:"participant_high"`
	VillageID       string    `db:"village_id" json:"village_id"`
	LastMessage     string    `db:"last_message" json:"last_message"`
	LastMessageAt   time.Time `db:"last_message_at" json:"last_message_at"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// OtherParticipant returns the participant that is not the given user.
func (c Conversation) OtherParticipant(userID string) string {
	if c.ParticipantLow == userID {
		return c.ParticipantHigh
	}
	return c.ParticipantLow
}

// ConversationSummary is the API-friendly view of a conversation for one user:
// the counterpart's display identity plus the derived unread count.
type ConversationSummary struct {
	Conversation
	FriendID       string `json:"friend_id"`
	FriendUsername string `json:"friend_username,omitempty"`
	FriendFullName string `json:"friend_full_name,omitempty"`
	UnreadCount    int    `json:"unread_count"`
}
