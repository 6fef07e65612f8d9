package smsprovider

import "context"

// SendRequestData holds what a transport needs to send one message.
type SendRequestData struct {
	InternalMessageID string // our event id, for correlation
	Recipient         string
	Content           string
	SimSlot           int
}

// SendResponseData holds the outcome of a send attempt.
type SendResponseData struct {
	ProviderMessageID string
	Success           bool
	StatusCode        int
	ErrorMessage      string
	ProviderName      string
}

// Adapter is the outbound send capability. The engine makes a single
// best-effort attempt per message; failures are logged, never retried.
type Adapter interface {
	Send(ctx context.Context, request SendRequestData) (*SendResponseData, error)
	GetName() string
}
