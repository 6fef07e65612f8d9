package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// GatewayProvider submits messages to the modem gateway's HTTP API. The
// gateway owns the physical SIM slots; the engine only hints which slot to
// use.
type GatewayProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiKey     string
	senderID   string
}

// NewGatewayProvider creates a new GatewayProvider.
func NewGatewayProvider(logger *slog.Logger, apiURL, apiKey, senderID string, httpClient *http.Client) *GatewayProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GatewayProvider{
		logger:     logger.With("provider", "gateway"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiKey:     apiKey,
		senderID:   senderID,
	}
}

type gatewaySendRequestBody struct {
	Messages []gatewayMessage `json:"messages"`
}

type gatewayMessage struct {
	Sender     string   `json:"sender"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
	SimSlot    int      `json:"sim_slot"`
}

type gatewaySendResponse struct {
	Status   int                        `json:"status"`
	Message  string                     `json:"message"`
	Messages []gatewaySentMessageDetail `json:"messages"`
}

type gatewaySentMessageDetail struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Status    int    `json:"status"`
}

func (p *GatewayProvider) GetName() string {
	return "gateway"
}

func (p *GatewayProvider) Send(ctx context.Context, request SendRequestData) (*SendResponseData, error) {
	p.logger.InfoContext(ctx, "GatewayProvider: Send called",
		"recipient", request.Recipient, "message_id", request.InternalMessageID, "sim_slot", request.SimSlot)

	reqBody := gatewaySendRequestBody{
		Messages: []gatewayMessage{
			{
				Sender:     p.senderID,
				Body:       request.Content,
				Recipients: []string{request.Recipient},
				SimSlot:    request.SimSlot,
			},
		},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to send request to gateway", "error", err, "message_id", request.InternalMessageID)
		return nil, fmt.Errorf("failed to send request to gateway: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		return &SendResponseData{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("gateway request returned status %d, response body unreadable: %v", httpResp.StatusCode, readErr),
			ProviderName: p.GetName(),
		}, fmt.Errorf("gateway response body unreadable (status %d): %w", httpResp.StatusCode, readErr)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "Gateway rejected send request",
			"status_code", httpResp.StatusCode, "body", string(respBytes), "message_id", request.InternalMessageID)
		return &SendResponseData{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("gateway returned status %d: %s", httpResp.StatusCode, string(respBytes)),
			ProviderName: p.GetName(),
		}, nil
	}

	var parsed gatewaySendResponse
	providerMsgID := ""
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		// HTTP success with an unparseable body still counts as submitted.
		p.logger.WarnContext(ctx, "Gateway accepted send but response body did not parse",
			"error", err, "body", string(respBytes), "message_id", request.InternalMessageID)
	} else if len(parsed.Messages) > 0 {
		providerMsgID = parsed.Messages[0].ID
	}

	p.logger.InfoContext(ctx, "Gateway accepted message",
		"provider_message_id", providerMsgID, "message_id", request.InternalMessageID)

	return &SendResponseData{
		Success:           true,
		StatusCode:        httpResp.StatusCode,
		ProviderMessageID: providerMsgID,
		ProviderName:      p.GetName(),
	}, nil
}
