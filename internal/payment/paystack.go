package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const signatureHeader = "x-paystack-signature"

// Doer executes an outbound HTTP request. Wiring a resilient client here puts
// retries and a circuit breaker between checkout and the gateway.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Paystack implements the Provider interface against the Paystack transaction
// API. Subaccount splits carry the vendor's settlement account; the
// transaction charge is the platform's cut in kobo.
type Paystack struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
	Transport Doer
}

func (p Paystack) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if p.Transport != nil {
		return p.Transport.Do(ctx, req)
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return client.Do(req)
}

func (p Paystack) baseURL() string {
	host := strings.TrimSpace(p.BaseURL)
	if host == "" {
		return "https://api.paystack.co"
	}
	return strings.TrimRight(host, "/")
}

// InitializeSplit opens one transaction routed to the vendor's subaccount,
// with the platform fee retained as the transaction charge.
func (p Paystack) InitializeSplit(ctx context.Context, req SplitRequest) (SplitResponse, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return SplitResponse{}, errors.New("reference is required")
	}
	if req.AmountMinor <= 0 {
		return SplitResponse{}, errors.New("amount must be positive")
	}
	if strings.TrimSpace(p.SecretKey) == "" {
		return SplitResponse{}, errors.New("secret key not configured")
	}

	payload := map[string]any{
		"reference": req.Reference,
		"amount":    req.AmountMinor,
		"email":     req.Email,
		"currency":  "NGN",
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if req.SubaccountCode != "" {
		payload["subaccount"] = req.SubaccountCode
		payload["bearer"] = "subaccount"
		if req.PlatformFeeMinor > 0 {
			payload["transaction_charge"] = req.PlatformFeeMinor
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SplitResponse{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL()+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return SplitResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.do(ctx, httpReq)
	if err != nil {
		return SplitResponse{}, fmt.Errorf("initialize transaction: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return SplitResponse{}, fmt.Errorf("read response: %w", err)
	}

	var parsed struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SplitResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Status {
		return SplitResponse{}, fmt.Errorf("gateway rejected transaction: %s", parsed.Message)
	}
	return SplitResponse{
		Provider:         "paystack",
		AuthorizationURL: parsed.Data.AuthorizationURL,
		AccessCode:       parsed.Data.AccessCode,
		Reference:        parsed.Data.Reference,
	}, nil
}

// VerifyWebhook checks the HMAC-SHA512 signature over the raw body and
// normalises the event payload.
func (p Paystack) VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error) {
	provided := strings.TrimSpace(r.Header.Get(signatureHeader))
	expected := p.computeSignature(body)
	if expected == "" || provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return WebhookVerifyResult{Valid: false, Err: errors.New("invalid signature")}, nil
	}

	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookVerifyResult{Valid: false, Err: err}, nil
	}
	if payload.Data.Reference == "" {
		return WebhookVerifyResult{Valid: false, Err: errors.New("missing reference")}, nil
	}

	return WebhookVerifyResult{
		Valid:           true,
		Reference:       payload.Data.Reference,
		AmountMinor:     payload.Data.Amount,
		Status:          normalisePaystackStatus(payload.Event, payload.Data.Status),
		ProviderPayload: body,
	}, nil
}

func (p Paystack) computeSignature(body []byte) string {
	key := strings.TrimSpace(p.SecretKey)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func normalisePaystackStatus(event, status string) string {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "charge.success":
		return StatusPaid
	case "charge.failed":
		return StatusFailed
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return StatusPaid
	case "failed", "abandoned", "reversed":
		return StatusFailed
	default:
		return StatusProcessing
	}
}
