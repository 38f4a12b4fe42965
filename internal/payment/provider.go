package payment

import (
	"context"
	"net/http"
)

// Normalised payment statuses shared by providers and settlement.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusFailed     = "failed"
)

// SplitRequest captures one vendor group's gateway transaction: the full
// group total goes to the vendor's subaccount, minus the platform's
// transaction charge. Amounts are minor units (kobo).
type SplitRequest struct {
	Reference        string
	AmountMinor      int64
	Email            string
	SubaccountCode   string
	PlatformFeeMinor int64
	CallbackURL      string
}

// SplitResponse is the minimal information returned when opening a
// transaction.
type SplitResponse struct {
	Provider         string
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// WebhookVerifyResult contains the normalised data extracted from a webhook
// notification after signature verification.
type WebhookVerifyResult struct {
	Valid           bool
	Reference       string
	AmountMinor     int64
	Status          string
	ProviderPayload []byte
	Err             error
}

// Provider abstracts the operations required from an upstream payment gateway.
type Provider interface {
	InitializeSplit(ctx context.Context, req SplitRequest) (SplitResponse, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookVerifyResult, error)
}
