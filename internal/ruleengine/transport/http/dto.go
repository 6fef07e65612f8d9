package http

// CallEventRequest is the JSON body accepted by the event ingest endpoint.
type CallEventRequest struct {
	EventID         string `json:"event_id"`
	Phone           string `json:"phone" validate:"required"`
	Direction       string `json:"direction" validate:"required,oneof=incoming outgoing missed"`
	ContactName     string `json:"contact_name"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
}

// EvaluationResponse reports the pipeline's decision for an ingested event.
type EvaluationResponse struct {
	EventID      string `json:"event_id"`
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
	DelaySeconds int    `json:"delay_seconds,omitempty"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
