package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publisher is the transport for audit envelopes.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

// AuditEmitter emits structured audit events for messaging operations.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	log         zerolog.Logger
}

// AuditEnvelope is the wire shape of an audit event.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

// AuditPayload carries the human-readable portion of an audit event.
type AuditPayload struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      int64  `json:"message_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

// NewAuditEmitter builds an AuditEmitter.
func NewAuditEmitter(publisher Publisher, routingKey, service, environment string, log zerolog.Logger) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		log:         log,
	}
}

// Emit publishes an audit event. A nil emitter or publisher is a no-op.
func (e *AuditEmitter) Emit(ctx context.Context, userID, requestID string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}

	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope, headers); err != nil {
		e.log.Warn().Err(err).Str("action", payload.Action).Msg("audit publish failed")
	}
}
