package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contactsdomain "github.com/callflow/engine/internal/contacts/domain"
	"github.com/callflow/engine/internal/ruleengine/adapters/smsprovider"
	"github.com/callflow/engine/internal/ruleengine/app"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

type stubLedger struct {
	day     string
	numbers []string
}

func (s *stubLedger) Load(ctx context.Context) (string, []string, error) {
	return s.day, s.numbers, nil
}

func (s *stubLedger) Save(ctx context.Context, day string, numbers []string) error {
	s.day = day
	s.numbers = numbers
	return nil
}

type stubSnapshots struct {
	payload []byte
}

func (s *stubSnapshots) Load(ctx context.Context) ([]byte, error) { return s.payload, nil }

func (s *stubSnapshots) Save(ctx context.Context, payload []byte) error {
	s.payload = payload
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, request smsprovider.SendRequestData) (*smsprovider.SendResponseData, error) {
	return &smsprovider.SendResponseData{Success: true, ProviderName: "noop"}, nil
}

func (noopProvider) GetName() string { return "noop" }

type noopSink struct{}

func (noopSink) Emit(ctx context.Context, record domain.MessageLogRecord) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandlers(t *testing.T) (*EventHandler, *ConfigHandler, *app.RuleEngine) {
	t.Helper()
	logger := discardLogger()
	engine := app.NewRuleEngine(&stubLedger{}, &stubSnapshots{}, contactsdomain.NullDirectory{}, logger)
	dispatch := app.NewDispatchService(engine, noopProvider{}, noopSink{}, logger)
	eventHandler := NewEventHandler(dispatch, logger, validator.New())
	configHandler := NewConfigHandler(engine, logger)
	return eventHandler, configHandler, engine
}

const handlerTestConfig = `{
	"plan": "sms",
	"rules": {"sms": {"enabled": true, "missed_template_id": 1}},
	"templates": [{"id": 1, "body": "Sorry we missed your call"}]
}`

func postEvent(t *testing.T, handler *EventHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.HandleCallEvent(rec, req)
	return rec
}

func TestHandleCallEventAccepted(t *testing.T) {
	eventHandler, _, engine := newTestHandlers(t)
	require.NoError(t, engine.UpdateConfig(context.Background(), []byte(handlerTestConfig)))

	rec := postEvent(t, eventHandler, `{
		"event_id": "evt-42",
		"phone": "+1 (555) 123-4567",
		"direction": "missed"
	}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "evt-42", resp.EventID)
	assert.True(t, resp.Accepted)
	assert.Empty(t, resp.Reason)
}

func TestHandleCallEventRejectedStillAccepted(t *testing.T) {
	eventHandler, _, _ := newTestHandlers(t)

	// No config pushed yet: the decision is a rejection, but the request
	// itself is well-formed, so the ingest still answers 202.
	rec := postEvent(t, eventHandler, `{"phone": "5551234567", "direction": "missed"}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)
	assert.Equal(t, domain.ReasonNoRuleConfig, resp.Reason)
	assert.NotEmpty(t, resp.EventID, "missing event ids are generated")
}

func TestHandleCallEventValidation(t *testing.T) {
	eventHandler, _, _ := newTestHandlers(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing phone", `{"direction": "missed"}`},
		{"unknown direction", `{"phone": "5551234567", "direction": "declined"}`},
		{"negative duration", `{"phone": "5551234567", "direction": "incoming", "duration_seconds": -3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEvent(t, eventHandler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandleUpdateConfig(t *testing.T) {
	eventHandler, configHandler, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(handlerTestConfig))
	rec := httptest.NewRecorder()
	configHandler.HandleUpdateConfig(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// The pushed config is live immediately.
	eventRec := postEvent(t, eventHandler, `{"phone": "5551234567", "direction": "missed"}`)
	var resp EvaluationResponse
	require.NoError(t, json.Unmarshal(eventRec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted, "reason: %s", resp.Reason)
}

func TestHandleUpdateConfigMalformed(t *testing.T) {
	_, configHandler, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	configHandler.HandleUpdateConfig(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "malformed")
}
