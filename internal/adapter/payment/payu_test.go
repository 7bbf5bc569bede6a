package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

func testPayU() *PayU {
	return NewPayU(PayUConfig{
		MerchantKey: "gtKFFx",
		Salt:        "eCwWELxi",
		BaseURL:     "https://test.payu.in",
		SuccessURL:  "https://shop.example.com/api/payments/callback/success",
		FailureURL:  "https://shop.example.com/api/payments/callback/failure",
	})
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "3f2c8a10-9d2e-4b7f-8f1a-77f0c1ab12cd",
		UserID:      "u1",
		OrderNumber: "VT-2025-AB12CD",
		Amount:      116100,
		ShippingAddress: domain.ShippingAddress{
			Name:  "Asha Rao",
			Phone: "9876543210",
		},
	}
}

func TestPayUInitiate(t *testing.T) {
	p := testPayU()
	o := testOrder()

	form, err := p.Initiate(o, "TXN_1", "asha@example.com")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if form["amount"] != "1161.00" {
		t.Fatalf("amount = %q", form["amount"])
	}
	if form["firstname"] != "Asha" {
		t.Fatalf("firstname = %q", form["firstname"])
	}
	if form["udf1"] != o.ID || form["udf2"] != o.OrderNumber {
		t.Fatalf("udf fields = %q/%q", form["udf1"], form["udf2"])
	}
	if form["payu_url"] != "https://test.payu.in/_payment" {
		t.Fatalf("payu_url = %q", form["payu_url"])
	}
	if len(form["hash"]) != 128 {
		t.Fatalf("hash length = %d, want sha512 hex", len(form["hash"]))
	}
	if form["hash"] != p.requestHash(form) {
		t.Fatal("hash does not match the forward sequence")
	}
}

func TestPayUInitiateWithoutKeys(t *testing.T) {
	p := NewPayU(PayUConfig{})
	if _, err := p.Initiate(testOrder(), "TXN_1", "x@example.com"); !errors.Is(err, usecase.ErrGatewayDisabled) {
		t.Fatalf("err = %v, want ErrGatewayDisabled", err)
	}
}

// signedCallback builds a callback form carrying a valid reverse hash.
func signedCallback(p *PayU, status string) map[string]string {
	raw := map[string]string{
		"status":      status,
		"txnid":       "TXN_1",
		"mihpayid":    "PAYID42",
		"amount":      "1161.00",
		"productinfo": "Order VT-2025-AB12CD",
		"firstname":   "Asha",
		"email":       "asha@example.com",
		"udf1":        "3f2c8a10-9d2e-4b7f-8f1a-77f0c1ab12cd",
	}
	raw["hash"] = p.responseHash(raw)
	return raw
}

func TestPayUVerify(t *testing.T) {
	p := testPayU()

	raw := signedCallback(p, "success")
	if err := p.Verify(raw); err != nil {
		t.Fatalf("valid hash rejected: %v", err)
	}

	// Case-insensitive on the supplied hash.
	raw["hash"] = strings.ToUpper(raw["hash"])
	if err := p.Verify(raw); err != nil {
		t.Fatalf("upper-cased hash rejected: %v", err)
	}
}

func TestPayUVerifyTampered(t *testing.T) {
	p := testPayU()

	t.Run("amount changed after signing", func(t *testing.T) {
		raw := signedCallback(p, "success")
		raw["amount"] = "1.00"
		if err := p.Verify(raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("status flipped after signing", func(t *testing.T) {
		raw := signedCallback(p, "failure")
		raw["status"] = "success"
		if err := p.Verify(raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("missing hash", func(t *testing.T) {
		raw := signedCallback(p, "success")
		delete(raw, "hash")
		if err := p.Verify(raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("wrong salt", func(t *testing.T) {
		other := NewPayU(PayUConfig{MerchantKey: "gtKFFx", Salt: "different"})
		raw := signedCallback(other, "success")
		if err := p.Verify(raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})
}

func TestPayUVerifyAdditionalCharges(t *testing.T) {
	p := testPayU()
	raw := signedCallback(p, "success")
	raw["additionalCharges"] = "10.00"
	raw["hash"] = p.responseHash(raw)
	if err := p.Verify(raw); err != nil {
		t.Fatalf("additionalCharges variant rejected: %v", err)
	}
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback(map[string]string{
		"status":   "success",
		"txnid":    "TXN_1",
		"mihpayid": "PAYID42",
		"amount":   "1161.00",
		"udf1":     "order-1",
	})
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if !cb.Success || cb.OrderID != "order-1" || cb.TxnID != "TXN_1" || cb.PaymentID != "PAYID42" {
		t.Fatalf("callback = %+v", cb)
	}
	if cb.AmountPaise != 116100 {
		t.Fatalf("amount = %d", cb.AmountPaise)
	}

	if cb, _ := ParseCallback(map[string]string{"status": "failure", "txnid": "TXN_1"}); cb.Success {
		t.Fatal("failure status parsed as success")
	}

	if _, err := ParseCallback(map[string]string{"status": "success", "amount": "12.345"}); err == nil {
		t.Fatal("garbled amount accepted")
	}
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerify(t *testing.T) {
	w := NewWebhookHMAC("whsec")
	body := []byte(`{"event":"payment.captured","orderId":"o1","txnid":"TXN_1","paymentId":"PAYID42","amount":"1161.00"}`)

	cb, err := ParseWebhook(body, signBody("whsec", body))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if err := w.Verify(cb.Raw); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if !cb.Success || cb.OrderID != "o1" || cb.AmountPaise != 116100 {
		t.Fatalf("callback = %+v", cb)
	}

	t.Run("tampered body", func(t *testing.T) {
		sig := signBody("whsec", body)
		tampered := []byte(`{"event":"payment.captured","orderId":"o1","txnid":"TXN_1","amount":"1.00"}`)
		cb, err := ParseWebhook(tampered, sig)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Verify(cb.Raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		cb, err := ParseWebhook(body, signBody("other", body))
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Verify(cb.Raw); !errors.Is(err, usecase.ErrSignatureInvalid) {
			t.Fatalf("err = %v, want ErrSignatureInvalid", err)
		}
	})

	t.Run("failed event", func(t *testing.T) {
		body := []byte(`{"event":"payment.failed","orderId":"o1","txnid":"TXN_1","amount":"1161.00"}`)
		cb, err := ParseWebhook(body, signBody("whsec", body))
		if err != nil {
			t.Fatal(err)
		}
		if cb.Success {
			t.Fatal("payment.failed parsed as success")
		}
	})
}
