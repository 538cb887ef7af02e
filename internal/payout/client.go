// Package payout sends accrued platform fees to the settlement address through
// the external payout service.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/silostrike/backend/internal/config"
	log "github.com/sirupsen/logrus"
)

const maxRequestAttempts = 3

// Client talks to the payout service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoff    func(attempt int) time.Duration
}

// PayoutRequest is one transfer. Reference doubles as the idempotency key.
type PayoutRequest struct {
	Reference   string
	Destination string
	Amount      decimal.Decimal
}

// PayoutResponse is the service's answer.
type PayoutResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// NewClient returns nil when the payout service is not configured.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || cfg.PayoutBaseURL == "" || cfg.PayoutAPIKey == "" {
		log.Warn("payout service not configured, fee withdrawals will stay pending")
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.PayoutBaseURL, "/"),
		apiKey:     cfg.PayoutAPIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PayoutTimeoutSeconds) * time.Second},
		backoff:    defaultBackoff,
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(100+attempt*200) * time.Millisecond
}

// Payout sends the transfer, retrying transport errors and 5xx responses.
func (c *Client) Payout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	if c == nil {
		return nil, errors.New("payout client not initialized")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("invalid payout amount %s", req.Amount)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"destination": req.Destination,
		"amount":      req.Amount.String(),
		"reference":   req.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := c.baseURL + "/v1/payouts"
	entry := log.WithFields(log.Fields{"reference": req.Reference, "amount": req.Amount.String()})
	entry.Info("initiating payout")

	var lastErr error
	for attempt := 0; attempt < maxRequestAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		resp, status, err := c.post(ctx, endpoint, req.Reference, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if status == http.StatusOK || status == http.StatusCreated {
			entry.WithFields(log.Fields{"transaction_id": resp.TransactionID, "status": resp.Status}).Info("payout accepted")
			return resp, nil
		}
		if status >= 500 {
			lastErr = fmt.Errorf("payout failed with status %d: %s", status, resp.Message)
			continue
		}
		// 4xx errors are final
		return resp, fmt.Errorf("payout rejected: %d - %s", status, resp.Message)
	}
	return nil, fmt.Errorf("payout failed after retries: %w", lastErr)
}

func (c *Client) post(ctx context.Context, endpoint, key string, payload []byte) (*PayoutResponse, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("payout request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	var out PayoutResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			out.Message = string(body)
		}
	}
	return &out, resp.StatusCode, nil
}
