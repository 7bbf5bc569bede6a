package queue

import (
	"context"
	"fmt"
	"log/slog"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

// Mailer is implemented by the SMTP adapter.
type Mailer interface {
	SendDeliveryEmail(o *domain.Order, to string) error
	SendOrderStatusEmail(o *domain.Order, to, subject, line string) error
}

// NotifyHandler consumes order lifecycle events and emails the
// customer. Deliveries are at-least-once; the delivery email is the
// only one guarded by a latch upstream, the rest are harmless to
// repeat.
type NotifyHandler struct {
	orders usecase.OrderRepo
	users  usecase.UserRepo
	mail   Mailer
	log    *slog.Logger
}

func NewNotifyHandler(orders usecase.OrderRepo, users usecase.UserRepo, mail Mailer) *NotifyHandler {
	return &NotifyHandler{orders: orders, users: users, mail: mail, log: logging.New("notify-handler")}
}

// HandleEvent is registered through queue.JSONHandler[usecase.OrderEventMsg].
func (h *NotifyHandler) HandleEvent(ctx context.Context, msg usecase.OrderEventMsg) error {
	o, err := h.orders.GetByID(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", msg.OrderID, err)
	}
	u, err := h.users.GetByID(ctx, o.UserID)
	if err != nil {
		return fmt.Errorf("load user %s: %w", o.UserID, err)
	}

	switch msg.Event {
	case usecase.EventOrderDelivered:
		err = h.mail.SendDeliveryEmail(o, u.Email)
	case usecase.EventOrderConfirmed:
		err = h.mail.SendOrderStatusEmail(o, u.Email,
			"Order Confirmed - "+o.OrderNumber,
			"We received your payment and your order is confirmed.")
	case usecase.EventOrderCancelled:
		err = h.mail.SendOrderStatusEmail(o, u.Email,
			"Order Cancelled - "+o.OrderNumber,
			"Your order has been cancelled.")
	case usecase.EventOrderShipped:
		line := "Your order is on its way."
		if o.Logistics.TrackingID != "" {
			line = "Your order is on its way. Tracking ID: " + o.Logistics.TrackingID
		}
		err = h.mail.SendOrderStatusEmail(o, u.Email, "Order Shipped - "+o.OrderNumber, line)
	case usecase.EventRefundProcessed:
		err = h.mail.SendOrderStatusEmail(o, u.Email,
			"Refund Processed - "+o.OrderNumber,
			"Your refund of ₹"+o.Payment.RefundAmount.Rupees()+" has been processed.")
	default:
		h.log.Warn("unknown event, dropping", "event", msg.Event, "orderId", msg.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("send %s mail: %w", msg.Event, err)
	}
	return nil
}
