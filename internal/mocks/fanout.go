package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Siddharthrai7i/NAJARIA/internal/models"
)

// FanoutRecorder records every fanout publication for assertions.
type FanoutRecorder struct {
	mu        sync.Mutex
	Messages  []RecordedMessage
	Reads     []RecordedRead
	Deletions []RecordedDeletion
}

type RecordedMessage struct {
	ConversationID string
	Message        models.MessageWithSender
}

type RecordedRead struct {
	ConversationID string
	MessageIDs     []int64
	ReadAt         time.Time
}

type RecordedDeletion struct {
	ConversationID string
	MessageID      int64
}

func (f *FanoutRecorder) PublishNewMessage(conversationID string, msg models.MessageWithSender) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, RecordedMessage{ConversationID: conversationID, Message: msg})
}

func (f *FanoutRecorder) PublishRead(conversationID string, messageIDs []int64, readAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads = append(f.Reads, RecordedRead{ConversationID: conversationID, MessageIDs: messageIDs, ReadAt: readAt})
}

func (f *FanoutRecorder) PublishDeletion(conversationID string, messageID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deletions = append(f.Deletions, RecordedDeletion{ConversationID: conversationID, MessageID: messageID})
}

// PublisherRecorder records broker publications for assertions.
type PublisherRecorder struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

type RecordedEvent struct {
	RoutingKey string
	Event      any
	Headers    map[string]string
}

func (p *PublisherRecorder) Publish(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, RecordedEvent{RoutingKey: routingKey, Event: event, Headers: headers})
	return nil
}

func (p *PublisherRecorder) Close() error { return nil }
