package app

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/callflow/engine/internal/platform/messagebroker"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

// callEventMessage is the wire shape of a call event on the broker.
type callEventMessage struct {
	EventID         string `json:"event_id"`
	Phone           string `json:"phone" validate:"required"`
	Direction       string `json:"direction" validate:"required,oneof=incoming outgoing missed"`
	ContactName     string `json:"contact_name"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
}

// EventConsumer consumes call events and config updates from NATS and
// feeds them into the engine.
type EventConsumer struct {
	natsClient *messagebroker.NATSClient
	dispatch   *DispatchService
	engine     *RuleEngine
	logger     *slog.Logger
	validate   *validator.Validate
}

// NewEventConsumer creates a new EventConsumer.
func NewEventConsumer(
	natsClient *messagebroker.NATSClient,
	dispatch *DispatchService,
	engine *RuleEngine,
	logger *slog.Logger,
	validate *validator.Validate,
) *EventConsumer {
	return &EventConsumer{
		natsClient: natsClient,
		dispatch:   dispatch,
		engine:     engine,
		logger:     logger.With("component", "event_consumer"),
		validate:   validate,
	}
}

// StartConsumingCallEvents subscribes to the call-event subject within a
// queue group so concurrent instances share the stream. Blocking; run in
// a goroutine and cancel ctx to stop.
func (c *EventConsumer) StartConsumingCallEvents(ctx context.Context, subject, queueGroup string) error {
	msgHandler := func(msg *nats.Msg) {
		c.logger.DebugContext(ctx, "Received call event message", "subject", msg.Subject, "data_len", len(msg.Data))

		var payload callEventMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.logger.ErrorContext(ctx, "Failed to deserialize call event",
				"error", err, "subject", msg.Subject, "data", string(msg.Data))
			return
		}

		if err := c.validate.StructCtx(ctx, payload); err != nil {
			c.logger.WarnContext(ctx, "Dropping call event that failed validation",
				"error", err, "event_id", payload.EventID)
			return
		}

		if payload.EventID == "" {
			payload.EventID = uuid.NewString()
		}

		event := domain.CallEvent{
			EventID:         payload.EventID,
			Phone:           payload.Phone,
			Direction:       domain.CallDirection(payload.Direction),
			ContactName:     payload.ContactName,
			DurationSeconds: payload.DurationSeconds,
		}

		evaluation, err := c.dispatch.ProcessEvent(ctx, event)
		if err != nil {
			c.logger.WarnContext(ctx, "Call event rejected", "error", err, "event_id", event.EventID)
			return
		}
		if !evaluation.Accepted {
			c.logger.InfoContext(ctx, "Call event evaluated: skipped",
				"event_id", event.EventID, "reason", evaluation.Reason)
			return
		}
		c.logger.InfoContext(ctx, "Call event evaluated: dispatch scheduled",
			"event_id", event.EventID, "delay_seconds", evaluation.DelaySeconds)
	}

	c.logger.Info("Starting call event subscription", "subject", subject, "queue_group", queueGroup)
	return c.natsClient.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, msgHandler)
}

// StartConsumingConfigUpdates subscribes to config pushes. No queue group:
// every engine instance must apply each update. Blocking; run in a
// goroutine and cancel ctx to stop.
func (c *EventConsumer) StartConsumingConfigUpdates(ctx context.Context, subject string) error {
	msgHandler := func(msg *nats.Msg) {
		c.logger.InfoContext(ctx, "Received config update", "subject", msg.Subject, "data_len", len(msg.Data))
		if err := c.engine.UpdateConfig(ctx, msg.Data); err != nil {
			c.logger.ErrorContext(ctx, "Config update rejected", "error", err)
		}
	}

	c.logger.Info("Starting config update subscription", "subject", subject)
	return c.natsClient.SubscribeToSubject(ctx, subject, msgHandler)
}
