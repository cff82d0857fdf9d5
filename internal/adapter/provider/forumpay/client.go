package forumpay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"payment-status-relay/config"
	"payment-status-relay/internal/core/ports"

	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a provider response we read.
const maxResponseBytes = 1 << 20 // 1 MB

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.ProviderClient against the ForumPay pay API.
// The sandbox is known to return irregular shapes, so CheckPayment hands the
// decoded JSON back raw; normalization happens in the service layer.
type Client struct {
	httpClient HTTPClient
	baseURL    string
	posID      string
	apiUser    string
	apiKey     string
	log        zerolog.Logger
}

// NewClient creates a provider client. httpClient must carry the configured
// timeout so a hung provider call cannot stall the sweep indefinitely.
func NewClient(cfg config.ProviderConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		posID:      cfg.PosID,
		apiUser:    cfg.APIUser,
		apiKey:     cfg.APIKey,
		log:        log,
	}
}

// CheckPayment POSTs to the provider's CheckPayment endpoint and returns the
// decoded JSON response. Errors out on non-2xx status or an undecodable body;
// the stored record is never touched from a failed or half-parsed check.
func (c *Client) CheckPayment(ctx context.Context, req ports.CheckPaymentRequest) (map[string]any, error) {
	form := url.Values{
		"pos_id":     {c.posID},
		"payment_id": {req.PaymentID},
		"currency":   {req.Currency},
		"address":    {req.Address},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/CheckPayment/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build check payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.apiUser, c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("check payment call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read check payment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("check payment status %d: %s", resp.StatusCode, snippet(body))
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode check payment response: %w (body: %s)", err, snippet(body))
	}

	c.log.Debug().
		Str("payment_id", req.PaymentID).
		Str("currency", req.Currency).
		Msg("provider check payment succeeded")

	return decoded, nil
}

// snippet trims a raw body for error messages.
func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
