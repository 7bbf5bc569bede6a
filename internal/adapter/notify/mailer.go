// Package notify delivers customer-facing emails for order lifecycle
// events consumed off the notification queue.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPMailer sends plain SMTP mail with STARTTLS negotiated by the
// net/smtp client. One connection per message; volume is low enough
// that pooling is not worth the complexity.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.FromName == "" {
		cfg.FromName = "Velvet Tails"
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) send(to, subject, html string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %q <%s>\r\n", m.cfg.FromName, m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	return smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(b.String()))
}

// SendDeliveryEmail tells the customer their order arrived.
func (m *SMTPMailer) SendDeliveryEmail(o *domain.Order, to string) error {
	subject := fmt.Sprintf("Order Delivered - %s", o.OrderNumber)

	var items strings.Builder
	for _, it := range o.Items {
		fmt.Fprintf(&items, "<li>%s × %d</li>", it.Title, it.Qty)
	}
	addr := o.ShippingAddress
	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px">
  <h2>Your order has been delivered!</h2>
  <p>Hi,<br/><br/>Your order <strong>%s</strong> has been successfully delivered.</p>
  <h3>Delivery Address</h3>
  <p>%s<br/>%s<br/>%s, %s<br/>%s</p>
  <h3>Order Summary</h3>
  <ul>%s</ul>
  <p>If you need any help, just reply to this email.<br/><br/>Thank you for shopping with us!</p>
</div>`,
		o.OrderNumber,
		addr.Name, addr.Street, addr.City, addr.State, addr.Pincode,
		items.String())

	return m.send(to, subject, html)
}

// SendOrderStatusEmail covers the short confirmations (confirmed,
// cancelled, shipped, refund processed).
func (m *SMTPMailer) SendOrderStatusEmail(o *domain.Order, to, subject, line string) error {
	html := fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px">
  <p>Hi,<br/><br/>%s</p>
  <p>Order: <strong>%s</strong><br/>Amount: ₹%s</p>
  <p>Thank you for shopping with us!</p>
</div>`, line, o.OrderNumber, o.Amount.Rupees())
	return m.send(to, subject, html)
}
