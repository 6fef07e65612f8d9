package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callflow/engine/internal/ruleengine/adapters/smsprovider"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

type fakeProvider struct {
	requests []smsprovider.SendRequestData
	response *smsprovider.SendResponseData
	err      error
	onSend   func()
}

func (f *fakeProvider) Send(ctx context.Context, request smsprovider.SendRequestData) (*smsprovider.SendResponseData, error) {
	f.requests = append(f.requests, request)
	if f.onSend != nil {
		f.onSend()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.response != nil {
		return f.response, nil
	}
	return &smsprovider.SendResponseData{Success: true, ProviderName: "fake"}, nil
}

func (f *fakeProvider) GetName() string { return "fake" }

type recordingSink struct {
	records []domain.MessageLogRecord
	err     error
}

func (s *recordingSink) Emit(ctx context.Context, record domain.MessageLogRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func newTestDispatch(t *testing.T, config string) (*DispatchService, *fakeProvider, *recordingSink) {
	t.Helper()
	engine, _, _, _ := newTestEngine(t)
	require.NoError(t, engine.UpdateConfig(context.Background(), []byte(config)))

	provider := &fakeProvider{}
	sink := &recordingSink{}
	service := NewDispatchService(engine, provider, sink, testLogger())
	service.now = func() time.Time { return testNow }
	return service, provider, sink
}

const dispatchConfig = `{
	"plan": "sms",
	"business_name": "Asha Salon",
	"landing_url": "https://callflow.page/asha",
	"rules": {
		"sms": {"enabled": true, "missed_template_id": 1},
		"sms_sim_slot": 2
	},
	"templates": [{"id": 1, "body": "Hi {contact_name}, call took {call_duration}"}]
}`

func TestProcessEventInvalidEvent(t *testing.T) {
	service, provider, _ := newTestDispatch(t, dispatchConfig)

	_, err := service.ProcessEvent(context.Background(), domain.CallEvent{
		EventID:   "evt-1",
		Direction: domain.DirectionMissed,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = service.ProcessEvent(context.Background(), domain.CallEvent{
		EventID:   "evt-2",
		Phone:     "5551234567",
		Direction: "rejected",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	assert.Empty(t, provider.requests)
}

func TestProcessEventRejectedSkipsDispatch(t *testing.T) {
	service, provider, sink := newTestDispatch(t, `{"plan": "none", "rules": {}}`)

	evaluation, err := service.ProcessEvent(context.Background(), missedEvent("5551234567"))
	require.NoError(t, err)
	assert.False(t, evaluation.Accepted)
	assert.Equal(t, domain.ReasonNoActivePlan, evaluation.Reason)
	assert.Empty(t, provider.requests)
	assert.Empty(t, sink.records)
}

func TestDispatchSubstitutesAndSends(t *testing.T) {
	service, provider, _ := newTestDispatch(t, dispatchConfig)

	event := missedEvent("5551234567")
	event.DurationSeconds = 125
	evaluation := service.engine.Evaluate(context.Background(), event)
	require.True(t, evaluation.Accepted, "reason: %s", evaluation.Reason)

	service.dispatch(event, evaluation)

	require.Len(t, provider.requests, 1)
	request := provider.requests[0]
	assert.Equal(t, "evt-1", request.InternalMessageID)
	assert.Equal(t, "5551234567", request.Recipient)
	assert.Equal(t, "Hi Asha, call took 2m 5s", request.Content)
	assert.Equal(t, 2, request.SimSlot)
}

func TestDispatchContactNameFallsBackToPhone(t *testing.T) {
	service, provider, _ := newTestDispatch(t, dispatchConfig)

	event := missedEvent("5551234567")
	event.ContactName = ""
	evaluation := service.engine.Evaluate(context.Background(), event)
	require.True(t, evaluation.Accepted, "reason: %s", evaluation.Reason)

	service.dispatch(event, evaluation)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "Hi 5551234567, call took 0s", provider.requests[0].Content)
}

func TestDispatchEmitsQueuedBeforeSend(t *testing.T) {
	service, provider, sink := newTestDispatch(t, dispatchConfig)

	var order []string
	provider.onSend = func() { order = append(order, "send") }

	event := missedEvent("5551234567")
	evaluation := service.engine.Evaluate(context.Background(), event)
	require.True(t, evaluation.Accepted)

	service.dispatch(event, evaluation)

	require.Len(t, sink.records, 2)
	queued := sink.records[0]
	assert.Equal(t, "message_log", queued.Type)
	assert.Equal(t, domain.LogStatusQueued, queued.Status)
	assert.Equal(t, domain.ChannelSMS, queued.Channel)
	assert.Equal(t, domain.SendMethodSMSManager, queued.SendMethod)
	assert.Equal(t, 2, queued.SimSlot)
	assert.Equal(t, 1, queued.PartCount)
	assert.Equal(t, testNow.UnixMilli(), queued.SentAt)

	// Provider sent only after the queued record was already out.
	assert.Equal(t, []string{"send"}, order)
	assert.Equal(t, domain.LogStatusSent, sink.records[1].Status)
}

func TestDispatchReportsSendFailure(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		service, provider, sink := newTestDispatch(t, dispatchConfig)
		provider.err = errors.New("radio off")

		event := missedEvent("5551234567")
		evaluation := service.engine.Evaluate(context.Background(), event)
		require.True(t, evaluation.Accepted)

		service.dispatch(event, evaluation)

		require.Len(t, sink.records, 2)
		result := sink.records[1]
		assert.Equal(t, domain.LogStatusFailed, result.Status)
		assert.Equal(t, "radio off", result.ErrorMessage)
	})

	t.Run("provider rejection", func(t *testing.T) {
		service, provider, sink := newTestDispatch(t, dispatchConfig)
		provider.response = &smsprovider.SendResponseData{Success: false, ErrorMessage: "invalid recipient"}

		event := missedEvent("5551234567")
		evaluation := service.engine.Evaluate(context.Background(), event)
		require.True(t, evaluation.Accepted)

		service.dispatch(event, evaluation)

		require.Len(t, sink.records, 2)
		result := sink.records[1]
		assert.Equal(t, domain.LogStatusFailed, result.Status)
		assert.Equal(t, "invalid recipient", result.ErrorMessage)
	})
}

func TestDispatchAttachmentChangesSendMethod(t *testing.T) {
	service, provider, sink := newTestDispatch(t, `{
		"plan": "sms",
		"rules": {"sms": {"enabled": true, "missed_template_id": 1}},
		"templates": [{"id": 1, "body": "See our offer", "image_path": "https://cdn.example.com/offer.jpg"}]
	}`)

	event := missedEvent("5551234567")
	evaluation := service.engine.Evaluate(context.Background(), event)
	require.True(t, evaluation.Accepted)

	service.dispatch(event, evaluation)

	require.Len(t, provider.requests, 1)
	assert.Equal(t, "See our offer\nhttps://cdn.example.com/offer.jpg", provider.requests[0].Content)
	require.Len(t, sink.records, 2)
	assert.Equal(t, domain.SendMethodSMSManagerLink, sink.records[0].SendMethod)
}

func TestBuildMessage(t *testing.T) {
	vars := map[string]string{
		"contact_name":  "Asha",
		"business_name": "Asha Salon",
	}

	tests := []struct {
		name      string
		template  string
		url       string
		appendURL bool
		want      string
	}{
		{
			"substitutes known tokens",
			"Hi {contact_name}, this is {business_name}.",
			"", false,
			"Hi Asha, this is Asha Salon.",
		},
		{
			"unresolved tokens stay verbatim",
			"Hi {contact_name}, code {verification_code}",
			"", false,
			"Hi Asha, code {verification_code}",
		},
		{
			"trailing whitespace trimmed",
			"Hi {contact_name}  \n\t ",
			"", false,
			"Hi Asha",
		},
		{
			"url appended on its own line",
			"Hi {contact_name}",
			"https://x.example", true,
			"Hi Asha\nhttps://x.example",
		},
		{
			"url append is idempotent case-insensitively",
			"Visit HTTPS://X.EXAMPLE today",
			"https://x.example", true,
			"Visit HTTPS://X.EXAMPLE today",
		},
		{
			"empty body becomes just the url",
			"   ",
			"https://x.example", true,
			"https://x.example",
		},
		{
			"append disabled leaves body alone",
			"Hi {contact_name}",
			"https://x.example", false,
			"Hi Asha",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildMessage(tt.template, vars, tt.url, tt.appendURL))
		})
	}
}

func TestFormatCallDuration(t *testing.T) {
	assert.Equal(t, "0s", formatCallDuration(0))
	assert.Equal(t, "45s", formatCallDuration(45))
	assert.Equal(t, "1m 0s", formatCallDuration(60))
	assert.Equal(t, "2m 5s", formatCallDuration(125))
}
