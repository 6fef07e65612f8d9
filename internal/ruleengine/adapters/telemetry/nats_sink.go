package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/callflow/engine/internal/platform/messagebroker"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

// NATSSink publishes message log records to a NATS subject and mirrors a
// summary line to the structured log.
type NATSSink struct {
	natsClient *messagebroker.NATSClient
	subject    string
	logger     *slog.Logger
}

// NewNATSSink creates a new NATSSink.
func NewNATSSink(natsClient *messagebroker.NATSClient, subject string, logger *slog.Logger) *NATSSink {
	return &NATSSink{
		natsClient: natsClient,
		subject:    subject,
		logger:     logger.With("sink", "message_log_nats"),
	}
}

// Emit publishes the record. Emission failures are returned for the caller
// to log; they never block or fail dispatch.
func (s *NATSSink) Emit(ctx context.Context, record domain.MessageLogRecord) error {
	s.logger.InfoContext(ctx, "Message log",
		"event_id", record.EventID,
		"channel", record.Channel,
		"status", record.Status,
		"send_method", record.SendMethod,
		"sim_slot", record.SimSlot,
		"part_count", record.PartCount,
		"error_message", record.ErrorMessage)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal message log record: %w", err)
	}
	if err := s.natsClient.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("failed to publish message log record: %w", err)
	}
	return nil
}
