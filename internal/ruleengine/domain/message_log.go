package domain

import "context"

const ChannelSMS = "sms"

// Send methods resolved at dispatch time.
const (
	SendMethodSMSManager     = "sms_manager"
	SendMethodSMSManagerLink = "sms_manager_link" // message carries an attachment link
)

// Message log statuses.
const (
	LogStatusQueued = "queued"
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)

// MessageLogRecord is the structured telemetry record emitted for every
// outbound message. The queued record is emitted synchronously before the
// transport is invoked, so stats do not depend on the transport's callback.
type MessageLogRecord struct {
	Type         string `json:"type"` // always "message_log"
	EventID      string `json:"event_id"`
	Channel      string `json:"channel"`
	Status       string `json:"status"`
	SendMethod   string `json:"send_method"`
	SimSlot      int    `json:"sim_slot"`
	PartCount    int    `json:"part_count"`
	ErrorMessage string `json:"error_message"`
	SentAt       int64  `json:"sent_at"` // epoch milliseconds
}

// NewMessageLogRecord builds a record with the fixed type tag set.
func NewMessageLogRecord(eventID, channel, status string) MessageLogRecord {
	return MessageLogRecord{
		Type:    "message_log",
		EventID: eventID,
		Channel: channel,
		Status:  status,
	}
}

// TelemetrySink receives message log records. Implementations must not
// block dispatch for long; failures are logged by the caller, never fatal.
type TelemetrySink interface {
	Emit(ctx context.Context, record MessageLogRecord) error
}
