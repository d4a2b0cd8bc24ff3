package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"shortstay-server/models"
)

// TransferRequest is a single payout instruction for the provider. Reference
// is deterministic per booking so replays converge on one real transfer.
type TransferRequest struct {
	Amount      float64                          `json:"amount"`
	Currency    string                           `json:"currency"`
	Reference   string                           `json:"reference"`
	Destination models.PayoutDestinationSnapshot `json:"destination"`
	Metadata    map[string]string                `json:"metadata"`
}

type TransferResult struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// PayoutProvider abstracts the external payout rail. Implementations must
// honour the request context's deadline.
type PayoutProvider interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// HTTPPayoutProvider talks to the provider's REST API.
type HTTPPayoutProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPPayoutProvider(cfg Config) *HTTPPayoutProvider {
	return &HTTPPayoutProvider{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Client:  &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

func (p *HTTPPayoutProvider) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transfer rejected: status %d: %s", resp.StatusCode, respBody)
	}

	var result TransferResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("transfer response malformed: %w", err)
	}
	return &result, nil
}
