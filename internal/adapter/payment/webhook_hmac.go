package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

const ProviderWebhook = "webhook"

// WebhookHMAC verifies server-to-server webhook notifications signed
// with HMAC-SHA256 over the raw body. The raw map carries the body
// under "_body" and the header signature under "_signature".
type WebhookHMAC struct {
	secret []byte
}

func NewWebhookHMAC(secret string) *WebhookHMAC {
	return &WebhookHMAC{secret: []byte(secret)}
}

func (w *WebhookHMAC) Provider() string { return ProviderWebhook }

func (w *WebhookHMAC) Verify(raw map[string]string) error {
	mac := hmac.New(sha256.New, w.secret)
	mac.Write([]byte(raw["_body"]))
	expected := hex.EncodeToString(mac.Sum(nil))
	supplied := strings.ToLower(strings.TrimSpace(raw["_signature"]))
	if supplied == "" || !hmac.Equal([]byte(expected), []byte(supplied)) {
		return usecase.ErrSignatureInvalid
	}
	return nil
}

var _ usecase.SignatureVerifier = (*WebhookHMAC)(nil)

type webhookPayload struct {
	Event     string `json:"event"` // payment.captured / payment.failed
	OrderID   string `json:"orderId"`
	TxnID     string `json:"txnid"`
	PaymentID string `json:"paymentId"`
	Amount    string `json:"amount"` // rupee string
}

// ParseWebhook normalizes a webhook notification into the reconciler's
// callback shape. The exact body bytes and the header signature travel
// in Raw for the verifier.
func ParseWebhook(body []byte, signature string) (usecase.Callback, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return usecase.Callback{}, fmt.Errorf("webhook payload: %w", err)
	}
	cb := usecase.Callback{
		OrderID:   p.OrderID,
		TxnID:     p.TxnID,
		PaymentID: p.PaymentID,
		Success:   p.Event == "payment.captured",
		Raw: map[string]string{
			"_body":      string(body),
			"_signature": signature,
			"event":      p.Event,
		},
	}
	if p.Amount != "" {
		paise, err := domain.ParseRupees(p.Amount)
		if err != nil {
			return cb, fmt.Errorf("webhook amount %q: %w", p.Amount, err)
		}
		cb.AmountPaise = paise
	}
	return cb, nil
}
