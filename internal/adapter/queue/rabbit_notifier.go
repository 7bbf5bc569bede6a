package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "order.events"

	// NotifyQueue is bound to every order.* and refund.* routing key;
	// the email worker consumes it.
	NotifyQueue = "order.events.notify"
)

// RabbitNotifier publishes order lifecycle events to a topic exchange.
// Notify is fire-and-forget: a broker hiccup must never fail the order
// operation that triggered it, so errors are logged and swallowed.
type RabbitNotifier struct {
	ch  *amqp.Channel
	log *slog.Logger
}

// NewRabbitNotifier declares the exchange, the notification queue, and
// binds every event routing key once at startup.
func NewRabbitNotifier(ch *amqp.Channel) (*RabbitNotifier, error) {
	if err := ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		NotifyQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	// order.* and refund.* both land on the notification queue
	for _, rk := range []string{"order.*", "refund.*"} {
		if err := ch.QueueBind(q.Name, rk, exchangeName, false, nil); err != nil {
			return nil, fmt.Errorf("queue bind %s: %w", rk, err)
		}
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &RabbitNotifier{ch: ch, log: logging.New("rabbit-notifier")}, nil
}

// Notify publishes the event keyed by its name ("order.confirmed",
// "refund.processed", ...). Never returns an error to the caller.
func (p *RabbitNotifier) Notify(ctx context.Context, event string, o *domain.Order) {
	msg := usecase.OrderEventMsg{
		Event:       event,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(o.Status),
		AmountPaise: int64(o.Amount),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal event", "event", event, "orderId", o.ID, "err", err)
		return
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Body:         body,
	}

	if err := p.ch.PublishWithContext(ctx, exchangeName, event, false, false, pub); err != nil {
		p.log.Error("publish event", "event", event, "orderId", o.ID, "err", err)
	}
}

var _ usecase.Notifier = (*RabbitNotifier)(nil)
