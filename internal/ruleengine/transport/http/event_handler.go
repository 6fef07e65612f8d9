package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/callflow/engine/internal/ruleengine/app"
	"github.com/callflow/engine/internal/ruleengine/domain"
)

// EventHandler accepts call events over HTTP and hands them to the
// dispatch service. This surface is for event sources that cannot speak
// NATS; both funnel into the same pipeline.
type EventHandler struct {
	dispatch *app.DispatchService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(dispatch *app.DispatchService, logger *slog.Logger, validate *validator.Validate) *EventHandler {
	return &EventHandler{
		dispatch: dispatch,
		logger:   logger.With("handler", "events"),
		validate: validate,
	}
}

// HandleCallEvent handles POST /api/v1/events.
func (h *EventHandler) HandleCallEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req CallEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode call event body", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "Call event failed validation", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed: " + err.Error()})
		return
	}

	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	event := domain.CallEvent{
		EventID:         req.EventID,
		Phone:           req.Phone,
		Direction:       domain.CallDirection(req.Direction),
		ContactName:     req.ContactName,
		DurationSeconds: req.DurationSeconds,
	}

	evaluation, err := h.dispatch.ProcessEvent(ctx, event)
	if err != nil {
		logger.WarnContext(ctx, "Call event rejected", "error", err, "event_id", event.EventID)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, EvaluationResponse{
		EventID:      event.EventID,
		Accepted:     evaluation.Accepted,
		Reason:       evaluation.Reason,
		DelaySeconds: evaluation.DelaySeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
