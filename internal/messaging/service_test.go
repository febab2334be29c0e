package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Siddharthrai7i/NAJARIA/internal/mocks"
	"github.com/Siddharthrai7i/NAJARIA/internal/models"
	"github.com/Siddharthrai7i/NAJARIA/internal/repositories"
)

type serviceFixture struct {
	conversations *mocks.ConversationRepositoryMock
	messages      *mocks.MessageRepositoryMock
	users         *mocks.UserRepositoryMock
	fanout        *mocks.FanoutRecorder
	service       *Service
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		conversations: new(mocks.ConversationRepositoryMock),
		messages:      new(mocks.MessageRepositoryMock),
		users:         new(mocks.UserRepositoryMock),
		fanout:        &mocks.FanoutRecorder{},
	}
	f.service = NewService(f.conversations, f.messages, f.users, f.fanout, zerolog.Nop())
	return f
}

var (
	alice = Actor{ID: "alice", VillageID: "village-1"}
	bob   = models.User{ID: "bob", Username: "bob", FullName: "Bob B", VillageID: "village-1", Active: true}
)

func TestSendMessageEmptyContent(t *testing.T) {
	f := newFixture()

	_, err := f.service.SendMessage(context.Background(), alice, "bob", "   \t\n")
	require.ErrorIs(t, err, ErrValidation)

	f.users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.fanout.Messages)
}

func TestSendMessageToSelf(t *testing.T) {
	f := newFixture()

	_, err := f.service.SendMessage(context.Background(), alice, "alice", "hi")
	require.ErrorIs(t, err, ErrValidation)
}

func TestSendMessageUnknownUser(t *testing.T) {
	f := newFixture()
	f.users.On("GetUser", mock.Anything, "ghost").Return(models.User{}, repositories.ErrUserNotFound).Once()

	_, err := f.service.SendMessage(context.Background(), alice, "ghost", "hi")
	require.ErrorIs(t, err, ErrNotFound)
	f.conversations.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageCrossVillage(t *testing.T) {
	f := newFixture()
	stranger := models.User{ID: "carol", VillageID: "village-2", Active: true}
	f.users.On("GetUser", mock.Anything, "carol").Return(stranger, nil).Once()

	_, err := f.service.SendMessage(context.Background(), alice, "carol", "hi")
	require.ErrorIs(t, err, ErrForbidden)

	f.conversations.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.fanout.Messages)
}

func TestSendMessageSuccess(t *testing.T) {
	f := newFixture()
	convID := repositories.DeriveConversationID("alice", "bob")
	now := time.Now()

	f.users.On("GetUser", mock.Anything, "bob").Return(bob, nil).Once()
	f.conversations.On("GetOrCreate", mock.Anything, "alice", "bob", "village-1").
		Return(models.Conversation{ConversationID: convID, VillageID: "village-1"}, nil).Once()
	f.messages.On("Append", mock.Anything, convID, "alice", "bob", "village-1", "hello").
		Return(models.Message{ID: 7, ConversationID: convID, SenderID: "alice", ReceiverID: "bob", Content: "hello", CreatedAt: now}, nil).Once()
	f.conversations.On("TouchSummary", mock.Anything, convID, "hello", now).Return(nil).Once()
	f.users.On("GetUser", mock.Anything, "alice").
		Return(models.User{ID: "alice", Username: "alice", FullName: "Alice A", VillageID: "village-1", Active: true}, nil).Once()

	msg, err := f.service.SendMessage(context.Background(), alice, "bob", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "alice", msg.SenderUsername)
	assert.False(t, msg.IsRead)

	require.Len(t, f.fanout.Messages, 1)
	assert.Equal(t, convID, f.fanout.Messages[0].ConversationID)
	assert.Equal(t, int64(7), f.fanout.Messages[0].Message.ID)

	f.conversations.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestSendMessageSummaryFailureStillDelivers(t *testing.T) {
	f := newFixture()
	convID := repositories.DeriveConversationID("alice", "bob")

	f.users.On("GetUser", mock.Anything, "bob").Return(bob, nil).Once()
	f.conversations.On("GetOrCreate", mock.Anything, "alice", "bob", "village-1").
		Return(models.Conversation{ConversationID: convID}, nil).Once()
	f.messages.On("Append", mock.Anything, convID, "alice", "bob", "village-1", "hi").
		Return(models.Message{ID: 1, ConversationID: convID, SenderID: "alice", Content: "hi"}, nil).Once()
	f.conversations.On("TouchSummary", mock.Anything, convID, "hi", mock.Anything).Return(assert.AnError).Once()
	f.users.On("GetUser", mock.Anything, "alice").Return(models.User{ID: "alice", Username: "alice"}, nil).Once()

	msg, err := f.service.SendMessage(context.Background(), alice, "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.ID)
	assert.Len(t, f.fanout.Messages, 1)
}

func TestOpenChatMarksRead(t *testing.T) {
	f := newFixture()
	convID := repositories.DeriveConversationID("alice", "bob")
	history := []models.Message{
		{ID: 1, ConversationID: convID, SenderID: "bob", ReceiverID: "alice", Content: "hi"},
		{ID: 2, ConversationID: convID, SenderID: "alice", ReceiverID: "bob", Content: "hey"},
	}

	f.users.On("GetUser", mock.Anything, "bob").Return(bob, nil).Once()
	f.conversations.On("GetOrCreate", mock.Anything, "alice", "bob", "village-1").
		Return(models.Conversation{ConversationID: convID}, nil).Once()
	f.messages.On("MarkConversationRead", mock.Anything, convID, "alice").Return([]int64{1}, nil).Once()
	f.messages.On("ListByConversation", mock.Anything, convID).Return(history, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []string{"bob", "alice"}).
		Return([]models.User{bob, {ID: "alice", Username: "alice"}}, nil).Once()

	result, err := f.service.OpenChat(context.Background(), alice, "bob")
	require.NoError(t, err)
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "bob", result.Messages[0].SenderUsername)
	assert.Equal(t, bob, result.Friend)

	require.Len(t, f.fanout.Reads, 1)
	assert.Equal(t, []int64{1}, f.fanout.Reads[0].MessageIDs)

	f.messages.AssertExpectations(t)
}

func TestOpenChatNoUnreadIsQuiet(t *testing.T) {
	f := newFixture()
	convID := repositories.DeriveConversationID("alice", "bob")

	f.users.On("GetUser", mock.Anything, "bob").Return(bob, nil).Once()
	f.conversations.On("GetOrCreate", mock.Anything, "alice", "bob", "village-1").
		Return(models.Conversation{ConversationID: convID}, nil).Once()
	f.messages.On("MarkConversationRead", mock.Anything, convID, "alice").Return([]int64(nil), nil).Once()
	f.messages.On("ListByConversation", mock.Anything, convID).Return([]models.Message(nil), nil).Once()
	f.users.On("BulkUsers", mock.Anything, []string{}).Return([]models.User(nil), nil).Once()

	_, err := f.service.OpenChat(context.Background(), alice, "bob")
	require.NoError(t, err)
	assert.Empty(t, f.fanout.Reads)
}

func TestPollNewMessagesMarksOnlyReturned(t *testing.T) {
	f := newFixture()
	convID := "alice_bob"
	lastSeen := int64(3)
	newMsgs := []models.Message{
		{ID: 4, ConversationID: convID, SenderID: "bob", ReceiverID: "alice", Content: "one"},
		{ID: 5, ConversationID: convID, SenderID: "bob", ReceiverID: "alice", Content: "two"},
	}

	f.conversations.On("IsParticipant", mock.Anything, convID, "alice").Return(true, nil).Once()
	f.messages.On("ListNewerThan", mock.Anything, convID, &lastSeen, "alice").Return(newMsgs, nil).Once()
	f.messages.On("MarkRead", mock.Anything, []int64{4, 5}).Return([]int64{4, 5}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []string{"bob"}).Return([]models.User{bob}, nil).Once()

	msgs, err := f.service.PollNewMessages(context.Background(), alice, convID, &lastSeen)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Len(t, f.fanout.Reads, 1)
	assert.Equal(t, []int64{4, 5}, f.fanout.Reads[0].MessageIDs)
}

func TestPollNewMessagesRepeatedCallDoesNotRepublish(t *testing.T) {
	f := newFixture()
	convID := "alice_bob"
	msgs := []models.Message{{ID: 4, SenderID: "bob", ReceiverID: "alice", ConversationID: convID}}

	f.conversations.On("IsParticipant", mock.Anything, convID, "alice").Return(true, nil).Twice()
	f.messages.On("ListNewerThan", mock.Anything, convID, (*int64)(nil), "alice").Return(msgs, nil).Twice()
	// Second MarkRead finds nothing unread, so no receipt goes out again.
	f.messages.On("MarkRead", mock.Anything, []int64{4}).Return([]int64{4}, nil).Once()
	f.messages.On("MarkRead", mock.Anything, []int64{4}).Return([]int64(nil), nil).Once()
	f.users.On("BulkUsers", mock.Anything, []string{"bob"}).Return([]models.User{bob}, nil).Twice()

	first, err := f.service.PollNewMessages(context.Background(), alice, convID, nil)
	require.NoError(t, err)
	second, err := f.service.PollNewMessages(context.Background(), alice, convID, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.fanout.Reads, 1)
}

func TestPollNewMessagesNotParticipant(t *testing.T) {
	f := newFixture()
	f.conversations.On("IsParticipant", mock.Anything, "x_y", "alice").Return(false, nil).Once()

	_, err := f.service.PollNewMessages(context.Background(), alice, "x_y", nil)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestDeleteMessageOwner(t *testing.T) {
	f := newFixture()
	f.messages.On("DeleteOwned", mock.Anything, int64(9), "alice").
		Return(models.Message{ID: 9, ConversationID: "alice_bob", SenderID: "alice"}, nil).Once()

	require.NoError(t, f.service.DeleteMessage(context.Background(), alice, 9))

	require.Len(t, f.fanout.Deletions, 1)
	assert.Equal(t, int64(9), f.fanout.Deletions[0].MessageID)
	assert.Equal(t, "alice_bob", f.fanout.Deletions[0].ConversationID)
}

func TestDeleteMessageNotOwner(t *testing.T) {
	f := newFixture()
	f.messages.On("DeleteOwned", mock.Anything, int64(9), "alice").
		Return(models.Message{}, repositories.ErrNotMessageOwner).Once()

	err := f.service.DeleteMessage(context.Background(), alice, 9)
	require.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.fanout.Deletions)
}

func TestDeleteMessageMissing(t *testing.T) {
	f := newFixture()
	f.messages.On("DeleteOwned", mock.Anything, int64(9), "alice").
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	err := f.service.DeleteMessage(context.Background(), alice, 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListConversationsAttachesUnreadCounts(t *testing.T) {
	f := newFixture()
	convs := []models.Conversation{
		{ConversationID: "alice_bob", ParticipantLow: "alice", ParticipantHigh: "bob"},
		{ConversationID: "alice_carol", ParticipantLow: "alice", ParticipantHigh: "carol"},
	}

	f.conversations.On("ListForUser", mock.Anything, "alice").Return(convs, nil).Once()
	f.messages.On("UnreadCounts", mock.Anything, "alice").Return(map[string]int{"alice_bob": 2}, nil).Once()
	f.users.On("BulkUsers", mock.Anything, []string{"bob", "carol"}).
		Return([]models.User{bob, {ID: "carol", Username: "carol"}}, nil).Once()

	summaries, err := f.service.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "bob", summaries[0].FriendID)
	assert.Equal(t, 2, summaries[0].UnreadCount)
	assert.Equal(t, "carol", summaries[1].FriendID)
	assert.Equal(t, 0, summaries[1].UnreadCount)
}

func TestReadStatusDelegates(t *testing.T) {
	f := newFixture()
	statuses := []models.ReadStatus{{ID: 1, IsRead: true}}
	f.messages.On("ReadStatus", mock.Anything, "alice_bob", []int64{1, 2}, "alice").Return(statuses, nil).Once()

	got, err := f.service.ReadStatus(context.Background(), alice, "alice_bob", []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, statuses, got)
}
