package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/callflow/engine/internal/ruleengine/adapters/smsprovider"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

// DispatchService coordinates what happens after an event is accepted:
// delay scheduling, variable substitution, message assembly, telemetry,
// and the hand-off to the send capability. A single best-effort send per
// message; failures are logged and surfaced to telemetry, never retried.
type DispatchService struct {
	engine    *RuleEngine
	provider  smsprovider.Adapter
	telemetry domain.TelemetrySink
	logger    *slog.Logger

	now func() time.Time
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	engine *RuleEngine,
	provider smsprovider.Adapter,
	telemetry domain.TelemetrySink,
	logger *slog.Logger,
) *DispatchService {
	return &DispatchService{
		engine:    engine,
		provider:  provider,
		telemetry: telemetry,
		logger:    logger.With("component", "dispatch"),
		now:       time.Now,
	}
}

// ProcessEvent evaluates one call event and, when accepted, schedules its
// dispatch. The returned evaluation reports the decision either way.
func (s *DispatchService) ProcessEvent(ctx context.Context, event domain.CallEvent) (domain.Evaluation, error) {
	if event.Phone == "" || !event.Direction.Valid() {
		s.logger.WarnContext(ctx, "Dropping invalid call event",
			"event_id", event.EventID, "direction", event.Direction)
		return domain.Evaluation{}, fmt.Errorf("%w: missing phone or unknown direction", domain.ErrInvalidEvent)
	}

	evaluation := s.engine.Evaluate(ctx, event)

	outcome := "accepted"
	if !evaluation.Accepted {
		outcome = evaluation.Reason
	}
	eventsEvaluatedCounter.WithLabelValues(string(event.Direction), outcome).Inc()

	if !evaluation.Accepted {
		s.logger.DebugContext(ctx, "Event skipped",
			"event_id", event.EventID, "reason", evaluation.Reason)
		return evaluation, nil
	}

	s.Schedule(event, evaluation)
	return evaluation, nil
}

// Schedule delays the remainder of processing by the evaluation's
// configured delay without holding any lock, then dispatches. Once
// scheduled there is no cancellation: the ledger entry is already
// committed and the message is considered spent.
func (s *DispatchService) Schedule(event domain.CallEvent, evaluation domain.Evaluation) {
	delay := time.Duration(evaluation.DelaySeconds) * time.Second
	if delay <= 0 {
		go s.dispatch(event, evaluation)
		return
	}

	s.logger.Debug("Dispatch scheduled",
		"event_id", event.EventID, "delay_seconds", evaluation.DelaySeconds)
	time.AfterFunc(delay, func() {
		s.dispatch(event, evaluation)
	})
}

// dispatch assembles the outbound message and invokes the send capability
// exactly once. The queued message log record is emitted synchronously
// before the send, so observability does not depend on the transport
// callback.
func (s *DispatchService) dispatch(event domain.CallEvent, evaluation domain.Evaluation) {
	// The originating request is long gone by dispatch time.
	ctx := context.Background()

	if !evaluation.SendSMS || evaluation.Template == nil {
		return
	}

	now := s.now()
	contactName := event.ContactName
	if contactName == "" {
		contactName = event.Phone
	}

	variables := map[string]string{
		"contact_name":  contactName,
		"business_name": s.engine.BusinessName(),
		"landing_url":   s.engine.LandingURL(),
		"phone_number":  event.Phone,
		"call_duration": formatCallDuration(event.DurationSeconds),
		"date":          now.Format("02/01/2006"),
		"time":          now.Format("03:04 PM"),
	}

	message := buildMessage(evaluation.Template.Body, variables, s.engine.LandingURL(), s.engine.ShouldAppendURL())

	attachmentPath := strings.TrimSpace(evaluation.Template.AttachmentPath)
	outbound := message
	sendMethod := domain.SendMethodSMSManager
	if attachmentPath != "" {
		sendMethod = domain.SendMethodSMSManagerLink
		if strings.TrimSpace(outbound) == "" {
			outbound = attachmentPath
		} else {
			outbound = outbound + "\n" + attachmentPath
		}
	}

	parts := CountSegments(outbound)

	queued := domain.NewMessageLogRecord(event.EventID, domain.ChannelSMS, domain.LogStatusQueued)
	queued.SendMethod = sendMethod
	queued.SimSlot = evaluation.SimSlot
	queued.PartCount = parts
	queued.SentAt = now.UnixMilli()
	if err := s.telemetry.Emit(ctx, queued); err != nil {
		s.logger.WarnContext(ctx, "Failed to emit queued message log", "error", err, "event_id", event.EventID)
	}

	timer := prometheus.NewTimer(providerSendDurationHist.WithLabelValues(s.provider.GetName()))
	response, err := s.provider.Send(ctx, smsprovider.SendRequestData{
		InternalMessageID: event.EventID,
		Recipient:         event.Phone,
		Content:           outbound,
		SimSlot:           evaluation.SimSlot,
	})
	timer.ObserveDuration()

	result := domain.NewMessageLogRecord(event.EventID, domain.ChannelSMS, domain.LogStatusSent)
	result.SendMethod = sendMethod
	result.SimSlot = evaluation.SimSlot
	result.PartCount = parts
	result.SentAt = s.now().UnixMilli()

	switch {
	case err != nil:
		result.Status = domain.LogStatusFailed
		result.ErrorMessage = err.Error()
		s.logger.ErrorContext(ctx, "Send capability reported failure",
			"error", err, "event_id", event.EventID, "provider", s.provider.GetName())
	case response != nil && !response.Success:
		result.Status = domain.LogStatusFailed
		result.ErrorMessage = response.ErrorMessage
		s.logger.ErrorContext(ctx, "Send capability rejected message",
			"error_message", response.ErrorMessage, "event_id", event.EventID, "provider", s.provider.GetName())
	default:
		s.logger.InfoContext(ctx, "Message handed to send capability",
			"event_id", event.EventID, "provider", s.provider.GetName(), "parts", parts)
	}

	dispatchesCounter.WithLabelValues(domain.ChannelSMS, result.Status).Inc()
	if err := s.telemetry.Emit(ctx, result); err != nil {
		s.logger.WarnContext(ctx, "Failed to emit send result message log", "error", err, "event_id", event.EventID)
	}
}

// buildMessage substitutes brace-wrapped variables into the template body,
// trims trailing whitespace, and appends the landing URL when configured
// and not already present. Substitution is literal: case-sensitive exact
// tokens, no recursion, unresolved tokens left verbatim.
func buildMessage(template string, variables map[string]string, landingURL string, appendURL bool) string {
	message := template
	for name, value := range variables {
		message = strings.ReplaceAll(message, "{"+name+"}", value)
	}
	message = strings.TrimRightFunc(message, unicode.IsSpace)

	url := strings.TrimSpace(landingURL)
	if !appendURL || url == "" {
		return message
	}
	if strings.Contains(strings.ToLower(message), strings.ToLower(url)) {
		return message
	}
	if strings.TrimSpace(message) == "" {
		return url
	}
	return message + "\n" + url
}

// formatCallDuration renders seconds as "2m 5s", or "45s" under a minute.
func formatCallDuration(seconds int) string {
	minutes := seconds / 60
	secs := seconds % 60
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}
