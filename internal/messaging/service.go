package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
	"github.com/Siddharthrai7i/NAJARIA/internal/observability"
	"github.com/Siddharthrai7i/NAJARIA/internal/repositories"
)

// Actor is the verified identity of the caller, normalized by the auth layer:
// the user id plus a scalar village id.
type Actor struct {
	ID        string
	VillageID string
}

// Service orchestrates conversations and messages: same-village authorization,
// conversation keying, read tracking and real-time fanout.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	fanout        Fanout
	log           zerolog.Logger
}

// NewService builds a Service. A nil fanout falls back to a noop.
func NewService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	fanout Fanout,
	log zerolog.Logger,
) *Service {
	if fanout == nil {
		fanout = NoopFanout{}
	}
	return &Service{
		conversations: conversations,
		messages:      messages,
		users:         users,
		fanout:        fanout,
		log:           log,
	}
}

// OpenChatResult is the payload of a chat-open: the conversation, its ordered
// history and the counterpart's display identity.
type OpenChatResult struct {
	Conversation models.Conversation        `json:"conversation"`
	Messages     []models.MessageWithSender `json:"messages"`
	Friend       models.User                `json:"friend"`
}

// ListConversations returns the user's conversations newest-activity first,
// each with the counterpart identity and the derived unread count attached.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	counts, err := s.messages.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}

	friendIDs := lo.Uniq(lo.Map(convs, func(c models.Conversation, _ int) string {
		return c.OtherParticipant(userID)
	}))
	friends, err := s.users.BulkUsers(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	friendByID := lo.KeyBy(friends, func(u models.User) string { return u.ID })

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		friendID := conv.OtherParticipant(userID)
		friend := friendByID[friendID]
		summaries = append(summaries, models.ConversationSummary{
			Conversation:   conv,
			FriendID:       friendID,
			FriendUsername: friend.Username,
			FriendFullName: friend.FullName,
			UnreadCount:    counts[conv.ConversationID],
		})
	}
	return summaries, nil
}

// OpenChat loads (or lazily creates) the conversation with the target user and
// returns the full history. Opening the chat is a read-receipt trigger: every
// message addressed to the requester is marked read before the history is
// fetched, and the newly read ids are pushed to the fanout channel.
func (s *Service) OpenChat(ctx context.Context, actor Actor, targetUserID string) (OpenChatResult, error) {
	target, err := s.authorizeTarget(ctx, actor, targetUserID)
	if err != nil {
		return OpenChatResult{}, err
	}

	conv, err := s.conversations.GetOrCreate(ctx, actor.ID, target.ID, actor.VillageID)
	if err != nil {
		return OpenChatResult{}, fmt.Errorf("get or create conversation: %w", err)
	}

	readIDs, err := s.messages.MarkConversationRead(ctx, conv.ConversationID, actor.ID)
	if err != nil {
		return OpenChatResult{}, fmt.Errorf("mark conversation read: %w", err)
	}
	s.publishReadReceipts(conv.ConversationID, readIDs)

	msgs, err := s.messages.ListByConversation(ctx, conv.ConversationID)
	if err != nil {
		return OpenChatResult{}, fmt.Errorf("list messages: %w", err)
	}

	withSenders, err := s.resolveSenders(ctx, msgs)
	if err != nil {
		return OpenChatResult{}, err
	}

	return OpenChatResult{Conversation: conv, Messages: withSenders, Friend: target}, nil
}

// SendMessage validates, appends the message, refreshes the conversation
// summary and notifies the fanout channel. A summary-update failure is logged
// and swallowed: the message record already exists and stays visible.
func (s *Service) SendMessage(ctx context.Context, actor Actor, targetUserID, content string) (models.MessageWithSender, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.MessageWithSender{}, fmt.Errorf("empty message content: %w", ErrValidation)
	}

	target, err := s.authorizeTarget(ctx, actor, targetUserID)
	if err != nil {
		return models.MessageWithSender{}, err
	}

	conv, err := s.conversations.GetOrCreate(ctx, actor.ID, target.ID, actor.VillageID)
	if err != nil {
		return models.MessageWithSender{}, fmt.Errorf("get or create conversation: %w", err)
	}

	msg, err := s.messages.Append(ctx, conv.ConversationID, actor.ID, target.ID, actor.VillageID, content)
	if err != nil {
		return models.MessageWithSender{}, fmt.Errorf("append message: %w", err)
	}

	if err := s.conversations.TouchSummary(ctx, conv.ConversationID, msg.Content, msg.CreatedAt); err != nil {
		// The message is authoritative; a stale preview is acceptable.
		s.log.Warn().Err(err).Str("conversation_id", conv.ConversationID).Msg("conversation summary update failed")
	}

	out := models.MessageWithSender{Message: msg}
	if sender, err := s.users.GetUser(ctx, actor.ID); err == nil {
		out.SenderUsername = sender.Username
		out.SenderFullName = sender.FullName
	} else {
		s.log.Warn().Err(err).Str("user_id", actor.ID).Msg("sender display resolution failed")
	}

	s.fanout.PublishNewMessage(conv.ConversationID, out)
	observability.IncMessageSent()
	return out, nil
}

// PollNewMessages returns messages addressed to the caller that are newer than
// the last seen one, marking exactly the returned ids as read. Safe to call
// repeatedly with the same reference: the returned set is stable and already
// read rows are never re-timestamped.
func (s *Service) PollNewMessages(ctx context.Context, actor Actor, conversationID string, lastSeenID *int64) ([]models.MessageWithSender, error) {
	member, err := s.conversations.IsParticipant(ctx, conversationID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("verify membership: %w", err)
	}
	if !member {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrForbidden)
	}

	msgs, err := s.messages.ListNewerThan(ctx, conversationID, lastSeenID, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list new messages: %w", err)
	}

	ids := lo.Map(msgs, func(m models.Message, _ int) int64 { return m.ID })
	readIDs, err := s.messages.MarkRead(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	s.publishReadReceipts(conversationID, readIDs)

	return s.resolveSenders(ctx, msgs)
}

// ReadStatus reports read state for the given message ids, restricted to
// messages the caller sent.
func (s *Service) ReadStatus(ctx context.Context, actor Actor, conversationID string, messageIDs []int64) ([]models.ReadStatus, error) {
	statuses, err := s.messages.ReadStatus(ctx, conversationID, messageIDs, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	return statuses, nil
}

// DeleteMessage removes a message the caller owns and broadcasts the deletion.
func (s *Service) DeleteMessage(ctx context.Context, actor Actor, messageID int64) error {
	msg, err := s.messages.DeleteOwned(ctx, messageID, actor.ID)
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		return fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	case errors.Is(err, repositories.ErrNotMessageOwner):
		return fmt.Errorf("message %d: %w", messageID, ErrForbidden)
	case err != nil:
		return fmt.Errorf("delete message: %w", err)
	}

	s.fanout.PublishDeletion(msg.ConversationID, msg.ID)
	return nil
}

func (s *Service) authorizeTarget(ctx context.Context, actor Actor, targetUserID string) (models.User, error) {
	if targetUserID == actor.ID {
		return models.User{}, fmt.Errorf("cannot message yourself: %w", ErrValidation)
	}

	target, err := s.users.GetUser(ctx, targetUserID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("user %s: %w", targetUserID, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load target user: %w", err)
	}

	if target.VillageID != actor.VillageID {
		return models.User{}, fmt.Errorf("users are not in the same village: %w", ErrForbidden)
	}
	return target, nil
}

func (s *Service) publishReadReceipts(conversationID string, readIDs []int64) {
	if len(readIDs) == 0 {
		return
	}
	s.fanout.PublishRead(conversationID, readIDs, time.Now().UTC())
	observability.IncMessagesRead(len(readIDs))
}

func (s *Service) resolveSenders(ctx context.Context, msgs []models.Message) ([]models.MessageWithSender, error) {
	senderIDs := lo.Uniq(lo.Map(msgs, func(m models.Message, _ int) string { return m.SenderID }))
	senders, err := s.users.BulkUsers(ctx, senderIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve senders: %w", err)
	}
	senderByID := lo.KeyBy(senders, func(u models.User) string { return u.ID })

	out := make([]models.MessageWithSender, 0, len(msgs))
	for _, m := range msgs {
		sender := senderByID[m.SenderID]
		out = append(out, models.MessageWithSender{
			Message:        m,
			SenderUsername: sender.Username,
			SenderFullName: sender.FullName,
		})
	}
	return out, nil
}
