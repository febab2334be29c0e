package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotMessageOwner = errors.New("requester is not the message sender")
	ErrEmptyContent    = errors.New("message content is empty")
)

// MessageRepository defines interactions for direct messages.
type MessageRepository interface {
	Append(ctx context.Context, conversationID, senderID, receiverID, villageID, content string) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	ListNewerThan(ctx context.Context, conversationID string, afterMessageID *int64, receiverID string) ([]models.Message, error)
	MarkRead(ctx context.Context, messageIDs []int64) ([]int64, error)
	MarkConversationRead(ctx context.Context, conversationID, receiverID string) ([]int64, error)
	DeleteOwned(ctx context.Context, messageID int64, requesterID string) (models.Message, error)
	ReadStatus(ctx context.Context, conversationID string, messageIDs []int64, senderID string) ([]models.ReadStatus, error)
	UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, village_id, content, is_read, read_at, created_at`

// Append stores a message with an unread state and the current timestamp.
func (r *MessageRepo) Append(ctx context.Context, conversationID, senderID, receiverID, villageID, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, receiver_id, village_id, content)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING `+messageColumns, conversationID, senderID, receiverID, villageID, content).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByConversation returns the full history in chronological order. Ties on
// created_at keep insertion order via the serial id.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at ASC, id ASC`, conversationID)
	return msgs, err
}

// ListNewerThan returns messages strictly newer than the referenced message's
// creation time, ascending. A nil or unknown reference means "from the
// beginning". A non-empty receiverID narrows the result to that receiver.
func (r *MessageRepo) ListNewerThan(ctx context.Context, conversationID string, afterMessageID *int64, receiverID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id=$1`
	args := []interface{}{conversationID}

	if afterMessageID != nil {
		ref, err := r.GetMessage(ctx, *afterMessageID)
		switch {
		case errors.Is(err, ErrMessageNotFound):
			// unknown reference falls back to the full set
		case err != nil:
			return nil, err
		default:
			args = append(args, ref.CreatedAt)
			query += ` AND created_at > $2`
		}
	}

	if receiverID != "" {
		args = append(args, receiverID)
		query += ` AND receiver_id=$` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at ASC, id ASC`

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// MarkRead flips is_read for the given ids where it is still false and returns
// the ids actually affected. Already-read rows keep their original read_at, so
// concurrent invocations cannot re-timestamp each other.
func (r *MessageRepo) MarkRead(ctx context.Context, messageIDs []int64) ([]int64, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var affected []int64
	err := r.db.SelectContext(ctx, &affected, `UPDATE messages SET is_read=TRUE, read_at=NOW()
        WHERE id = ANY($1) AND is_read=FALSE
        RETURNING id`, pq.Array(messageIDs))
	return affected, err
}

// MarkConversationRead marks every unread message addressed to the receiver in
// the conversation, returning the affected ids.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID, receiverID string) ([]int64, error) {
	var affected []int64
	err := r.db.SelectContext(ctx, &affected, `UPDATE messages SET is_read=TRUE, read_at=NOW()
        WHERE conversation_id=$1 AND receiver_id=$2 AND is_read=FALSE
        RETURNING id`, conversationID, receiverID)
	return affected, err
}

// DeleteOwned removes a message when the requester is its sender and returns
// the deleted record.
func (r *MessageRepo) DeleteOwned(ctx context.Context, messageID int64, requesterID string) (models.Message, error) {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != requesterID {
		return models.Message{}, ErrNotMessageOwner
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1 AND sender_id=$2`, messageID, requesterID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, nil
}

// ReadStatus reports read state for the given ids, restricted to messages the
// requester sent.
func (r *MessageRepo) ReadStatus(ctx context.Context, conversationID string, messageIDs []int64, senderID string) ([]models.ReadStatus, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var statuses []models.ReadStatus
	err := r.db.SelectContext(ctx, &statuses, `SELECT id, is_read, read_at FROM messages
        WHERE conversation_id=$1 AND id = ANY($2) AND sender_id=$3
        ORDER BY id ASC`, conversationID, pq.Array(messageIDs), senderID)
	return statuses, err
}

// UnreadCounts returns, per conversation, how many unread messages are
// addressed to the receiver. Derived on demand so it can never drift from the
// message rows.
func (r *MessageRepo) UnreadCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT conversation_id, COUNT(*) AS unread FROM messages
        WHERE receiver_id=$1 AND is_read=FALSE
        GROUP BY conversation_id`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var conversationID string
		var unread int
		if err := rows.Scan(&conversationID, &unread); err != nil {
			return nil, err
		}
		counts[conversationID] = unread
	}
	return counts, rows.Err()
}
