package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Siddharthrai7i/NAJARIA/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	recorder := &mocks.PublisherRecorder{}
	emitter := NewAuditEmitter(recorder, "audit_log.messaging", "village-messaging", "test", zerolog.Nop())

	emitter.Emit(context.Background(), "alice", "req-1", AuditPayload{
		Action:         "message_sent",
		ConversationID: "alice_bob",
		MessageID:      7,
	})

	require.Len(t, recorder.Events, 1)
	event := recorder.Events[0]
	assert.Equal(t, "audit_log.messaging", event.RoutingKey)
	assert.Equal(t, "req-1", event.Headers["x-request-id"])

	envelope, ok := event.Event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "alice", envelope.UserID)
	assert.Equal(t, "message_sent", envelope.Payload.Action)
	assert.Equal(t, int64(7), envelope.Payload.MessageID)
}

func TestEmitNilEmitterIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "alice", "req-1", AuditPayload{Action: "message_sent"})
}
