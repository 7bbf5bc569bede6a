package payment

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

const ProviderPayU = "payu"

type PayUConfig struct {
	MerchantKey string
	Salt        string
	BaseURL     string // https://secure.payu.in or https://test.payu.in
	SuccessURL  string
	FailureURL  string
	Timeout     time.Duration
}

// PayU implements payment initiation, callback signature verification
// and refunds against the PayU merchant API. Amounts cross the wire as
// two-decimal rupee strings; everything local stays in paise.
type PayU struct {
	cfg    PayUConfig
	client *http.Client
}

func NewPayU(cfg PayUConfig) *PayU {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PayU{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *PayU) Provider() string { return ProviderPayU }

func sha512hex(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}

// requestHash is the forward hash sent with a payment request:
// key|txnid|amount|productinfo|firstname|email|udf1..5||||||salt
func (p *PayU) requestHash(f map[string]string) string {
	parts := []string{
		p.cfg.MerchantKey,
		f["txnid"], f["amount"], f["productinfo"], f["firstname"], f["email"],
		f["udf1"], f["udf2"], f["udf3"], f["udf4"], f["udf5"],
		"", "", "", "", "",
		p.cfg.Salt,
	}
	return sha512hex(strings.Join(parts, "|"))
}

// responseHash is the documented reverse sequence:
// [additionalCharges|]salt|status|udf10..udf1|email|firstname|productinfo|amount|txnid|key
func (p *PayU) responseHash(raw map[string]string) string {
	head := p.cfg.Salt + "|" + raw["status"]
	if ac := raw["additionalCharges"]; ac != "" {
		head = ac + "|" + head
	}
	tail := strings.Join([]string{
		raw["udf10"], raw["udf9"], raw["udf8"], raw["udf7"], raw["udf6"],
		raw["udf5"], raw["udf4"], raw["udf3"], raw["udf2"], raw["udf1"],
		raw["email"], raw["firstname"], raw["productinfo"], raw["amount"], raw["txnid"],
		p.cfg.MerchantKey,
	}, "|")
	return sha512hex(head + "|" + tail)
}

// Verify recomputes the reverse hash and compares in constant time.
func (p *PayU) Verify(raw map[string]string) error {
	supplied := strings.ToLower(strings.TrimSpace(raw["hash"]))
	expected := p.responseHash(raw)
	if supplied == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) != 1 {
		return usecase.ErrSignatureInvalid
	}
	return nil
}

// Initiate builds the signed redirect form for the hosted checkout.
// udf1 carries the order id so the callback can find its way back.
func (p *PayU) Initiate(o *domain.Order, txnid, email string) (map[string]string, error) {
	if p.cfg.MerchantKey == "" || p.cfg.Salt == "" {
		return nil, usecase.ErrGatewayDisabled
	}
	firstname := o.ShippingAddress.Name
	if i := strings.IndexByte(firstname, ' '); i > 0 {
		firstname = firstname[:i]
	}
	form := map[string]string{
		"key":         p.cfg.MerchantKey,
		"txnid":       txnid,
		"amount":      o.Amount.Rupees(),
		"productinfo": "Order " + o.OrderNumber,
		"firstname":   firstname,
		"email":       email,
		"phone":       o.ShippingAddress.Phone,
		"surl":        p.cfg.SuccessURL,
		"furl":        p.cfg.FailureURL,
		"udf1":        o.ID,
		"udf2":        o.OrderNumber,
		"udf3":        o.UserID,
		"udf4":        "",
		"udf5":        "",
	}
	form["hash"] = p.requestHash(form)
	form["payu_url"] = p.cfg.BaseURL + "/_payment"
	return form, nil
}

// ParseCallback normalizes a raw callback form into the reconciler's
// shape. The amount string is parsed strictly; a garbled amount on a
// success callback is a rejection, not a zero.
func ParseCallback(form map[string]string) (usecase.Callback, error) {
	cb := usecase.Callback{
		OrderID:   form["udf1"],
		TxnID:     form["txnid"],
		PaymentID: form["mihpayid"],
		Success:   form["status"] == "success",
		Raw:       form,
	}
	if amt := form["amount"]; amt != "" {
		paise, err := domain.ParseRupees(amt)
		if err != nil {
			return cb, fmt.Errorf("callback amount %q: %w", amt, err)
		}
		cb.AmountPaise = paise
	}
	return cb, nil
}

// Refund calls the merchant web service. Fail closed: only an explicit
// status=1 answer counts as accepted.
func (p *PayU) Refund(ctx context.Context, paymentID string, amount domain.Paise) (usecase.RefundResult, error) {
	if p.cfg.MerchantKey == "" || p.cfg.Salt == "" {
		return usecase.RefundResult{}, usecase.ErrGatewayDisabled
	}
	command := "cancel_refund_transaction"
	hash := sha512hex(strings.Join([]string{p.cfg.MerchantKey, command, paymentID, p.cfg.Salt}, "|"))

	form := url.Values{}
	form.Set("key", p.cfg.MerchantKey)
	form.Set("command", command)
	form.Set("var1", paymentID)
	form.Set("var2", fmt.Sprintf("REF_%d", time.Now().UnixMilli()))
	form.Set("var3", amount.Rupees())
	form.Set("hash", hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/merchant/postservice?form=2",
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return usecase.RefundResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return usecase.RefundResult{}, fmt.Errorf("payu refund call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return usecase.RefundResult{}, fmt.Errorf("payu refund: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Status    int    `json:"status"`
		Message   string `json:"msg"`
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return usecase.RefundResult{}, fmt.Errorf("payu refund decode: %w", err)
	}
	return usecase.RefundResult{
		Accepted:    out.Status == 1,
		ProviderRef: out.RequestID,
	}, nil
}

var (
	_ usecase.SignatureVerifier = (*PayU)(nil)
	_ usecase.PaymentProvider   = (*PayU)(nil)
	_ usecase.RefundProvider    = (*PayU)(nil)
)
