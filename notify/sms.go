package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"regsync/models"

	"github.com/apex/log"
)

// SMSGateway delivers alerts through the external SMS delivery collaborator.
type SMSGateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewSMSGateway creates a gateway client with an explicit per-call timeout.
func NewSMSGateway(baseURL string, timeout time.Duration) *SMSGateway {
	return &SMSGateway{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SMSGateway) Channel() string { return "sms" }

type smsPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type smsResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Deliver posts the rendered text to the gateway and consumes the reported
// success/failure, the only feedback this engine acts on.
func (s *SMSGateway) Deliver(ctx context.Context, req models.NotificationRequest) error {
	payload, err := json.Marshal(smsPayload{To: req.Contact, Body: req.Message})
	if err != nil {
		return fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var result smsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode sms gateway response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("sms gateway reported failure: %s", result.Error)
	}

	log.Infof("Alert SMS sent to %s", req.Contact)
	return nil
}
