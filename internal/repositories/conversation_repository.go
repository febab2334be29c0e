package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindByID(ctx context.Context, conversationID string) (models.Conversation, error)
	FindByParticipants(ctx context.Context, userA, userB string) (models.Conversation, error)
	GetOrCreate(ctx context.Context, userA, userB, villageID string) (models.Conversation, error)
	TouchSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error
	ListForUser(ctx context.Context, userID string) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `conversation_id, participant_low, participant_high, village_id, last_message, last_message_at, created_at`

// FindByID fetches a conversation by its derived id.
func (r *ConversationRepo) FindByID(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE conversation_id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// FindByParticipants looks up the conversation for an unordered pair. The
// lookup goes through the derived id, never a pair scan.
func (r *ConversationRepo) FindByParticipants(ctx context.Context, userA, userB string) (models.Conversation, error) {
	return r.FindByID(ctx, DeriveConversationID(userA, userB))
}

// GetOrCreate returns the conversation for the pair, creating it if absent.
// Creation is an insert-if-absent on the derived id so two concurrent first
// contacts cannot produce two rows.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, userA, userB, villageID string) (models.Conversation, error) {
	low, high := orderPair(userA, userB)
	conversationID := DeriveConversationID(userA, userB)

	_, err := r.db.ExecContext(ctx, `INSERT INTO conversations (conversation_id, participant_low, participant_high, village_id)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (conversation_id) DO NOTHING`, conversationID, low, high, villageID)
	if err != nil {
		return models.Conversation{}, err
	}

	return r.FindByID(ctx, conversationID)
}

// TouchSummary updates the denormalized last-message preview. The upsert is
// safe to call standalone: a missing conversation row is created on the spot.
func (r *ConversationRepo) TouchSummary(ctx context.Context, conversationID, lastMessage string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE conversations SET last_message=$2, last_message_at=$3 WHERE conversation_id=$1`,
		conversationID, lastMessage, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		low, high, ok := SplitConversationID(conversationID)
		if !ok {
			return ErrConversationNotFound
		}
		_, err = r.db.ExecContext(ctx, `INSERT INTO conversations (conversation_id, participant_low, participant_high, village_id, last_message, last_message_at)
            VALUES ($1, $2, $3, '', $4, $5)
            ON CONFLICT (conversation_id) DO UPDATE SET last_message = EXCLUDED.last_message, last_message_at = EXCLUDED.last_message_at`,
			conversationID, low, high, lastMessage, at)
	}
	return err
}

// ListForUser returns conversations with the user as a participant, most
// recently active first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT `+conversationColumns+` FROM conversations
        WHERE participant_low=$1 OR participant_high=$1
        ORDER BY last_message_at DESC`, userID)
	return convs, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM conversations WHERE conversation_id=$1 AND (participant_low=$2 OR participant_high=$2))`,
		conversationID, userID)
	return exists, err
}

func orderPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
