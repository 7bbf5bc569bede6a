package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/usecase"
)

var ErrNotFound = errors.New("not found")

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

const orderCols = `
id, user_id, order_number, items_json,
subtotal, discount, discount_code, tax, shipping_cost, amount, status,
payment_method, payment_status, txn_id, payment_id, paid_at, refunded_at, refund_amount,
lg_provider, lg_shipment_id, lg_tracking_id, lg_courier, lg_status, shipped_at, delivered_at, delivery_notified,
addr_name, addr_phone, addr_street, addr_city, addr_state, addr_pincode, addr_country,
cancelled_by, cancelled_at, cancellation_reason, inventory_restored,
refund_requested, refund_requested_at, refund_reason, refund_status,
ret_requested, ret_requested_at, ret_reason, ret_status, ret_admin_notes, ret_processed_at, ret_processed_by,
ret_shipment_id, ret_tracking_id, ret_courier,
invoice_number, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o         domain.Order
		itemsJSON string

		paidAt, refundedAt, shippedAt, deliveredAt  sql.NullTime
		cancelledAt, refundReqAt, retReqAt, retProc sql.NullTime
		cancelledBy, retStatus                      sql.NullString
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &itemsJSON,
		&o.Subtotal, &o.Discount, &o.DiscountCode, &o.Tax, &o.ShippingCost, &o.Amount, &o.Status,
		&o.Payment.Method, &o.Payment.Status, &o.Payment.TransactionID, &o.Payment.PaymentID,
		&paidAt, &refundedAt, &o.Payment.RefundAmount,
		&o.Logistics.Provider, &o.Logistics.ShipmentID, &o.Logistics.TrackingID, &o.Logistics.CourierName,
		&o.Logistics.Status, &shippedAt, &deliveredAt, &o.Logistics.DeliveryNotified,
		&o.ShippingAddress.Name, &o.ShippingAddress.Phone, &o.ShippingAddress.Street,
		&o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.Pincode, &o.ShippingAddress.Country,
		&cancelledBy, &cancelledAt, &o.CancellationReason, &o.InventoryRestored,
		&o.RefundRequested, &refundReqAt, &o.RefundReason, &o.RefundStatus,
		&o.Return.Requested, &retReqAt, &o.Return.Reason, &retStatus, &o.Return.AdminNotes, &retProc, &o.Return.ProcessedBy,
		&o.Return.ShipmentID, &o.Return.TrackingID, &o.Return.CourierName,
		&o.InvoiceNumber, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if paidAt.Valid {
		o.Payment.PaidAt = &paidAt.Time
	}
	if refundedAt.Valid {
		o.Payment.RefundedAt = &refundedAt.Time
	}
	if shippedAt.Valid {
		o.Logistics.ShippedAt = &shippedAt.Time
	}
	if deliveredAt.Valid {
		o.Logistics.DeliveredAt = &deliveredAt.Time
	}
	if cancelledAt.Valid {
		o.CancelledAt = &cancelledAt.Time
	}
	if cancelledBy.Valid {
		o.CancelledBy = domain.Actor(cancelledBy.String)
	}
	if refundReqAt.Valid {
		o.RefundRequestedAt = &refundReqAt.Time
	}
	if retReqAt.Valid {
		o.Return.RequestedAt = &retReqAt.Time
	}
	if retProc.Valid {
		o.Return.ProcessedAt = &retProc.Time
	}
	o.Return.Status = domain.ReturnNone
	if retStatus.Valid && retStatus.String != "" {
		o.Return.Status = domain.ReturnStatus(retStatus.String)
	}
	return &o, nil
}

func (r *MySQLOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if err := o.ValidateAmount(); err != nil {
		return err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO orders (
  id, user_id, order_number, items_json,
  subtotal, discount, discount_code, tax, shipping_cost, amount, status,
  payment_method, payment_status, refund_status, ret_status,
  addr_name, addr_phone, addr_street, addr_city, addr_state, addr_pincode, addr_country,
  created_at, updated_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,NOW(),NOW())`,
		o.ID, o.UserID, o.OrderNumber, string(items),
		o.Subtotal, o.Discount, o.DiscountCode, o.Tax, o.ShippingCost, o.Amount, o.Status,
		o.Payment.Method, o.Payment.Status, o.RefundStatus, o.Return.Status,
		o.ShippingAddress.Name, o.ShippingAddress.Phone, o.ShippingAddress.Street,
		o.ShippingAddress.City, o.ShippingAddress.State, o.ShippingAddress.Pincode, o.ShippingAddress.Country,
	)
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id=?`, id))
}

func (r *MySQLOrderRepo) GetByTxnID(ctx context.Context, txnid string) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE txn_id=?`, txnid))
}

func (r *MySQLOrderRepo) GetByTrackingID(ctx context.Context, awb string) (*domain.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE lg_tracking_id=?`, awb))
}

func (r *MySQLOrderRepo) queryOrders(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *MySQLOrderRepo) ListByUser(ctx context.Context, userID string, status domain.Status) ([]domain.Order, error) {
	if status != "" {
		return r.queryOrders(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=? AND status=? ORDER BY created_at DESC`, userID, status)
	}
	return r.queryOrders(ctx, `SELECT `+orderCols+` FROM orders WHERE user_id=? ORDER BY created_at DESC`, userID)
}

func (r *MySQLOrderRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id=?`, userID).Scan(&n)
	return n, err
}

func (r *MySQLOrderRepo) ListPendingExpired(ctx context.Context, olderThan time.Time) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
SELECT `+orderCols+` FROM orders
WHERE status='pending' AND payment_status='pending' AND created_at < ?`, olderThan)
}

func (r *MySQLOrderRepo) ListShippedTracked(ctx context.Context) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
SELECT `+orderCols+` FROM orders
WHERE status='shipped' AND lg_tracking_id <> ''`)
}

func (r *MySQLOrderRepo) SetTransactionID(ctx context.Context, id, txnid string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE orders SET txn_id=?, updated_at=NOW() WHERE id=?`, txnid, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *MySQLOrderRepo) AppendAttempt(ctx context.Context, id string, a domain.PaymentAttempt) error {
	// Append-only: this table is never updated or pruned.
	_, err := r.db.ExecContext(ctx, `
INSERT INTO payment_attempts (order_id, txnid, payment_id, amount_paise, status, raw_response, created_at)
VALUES (?,?,?,?,?,?,?)`,
		id, a.TxnID, a.PaymentID, a.AmountPaise, a.Status, a.RawResponse, a.CreatedAt)
	return err
}

func (r *MySQLOrderRepo) ListAttempts(ctx context.Context, id string) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT txnid, payment_id, amount_paise, status, raw_response, created_at
FROM payment_attempts WHERE order_id=? ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PaymentAttempt
	for rows.Next() {
		var a domain.PaymentAttempt
		if err := rows.Scan(&a.TxnID, &a.PaymentID, &a.AmountPaise, &a.Status, &a.RawResponse, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkPaid applies a success callback at most once: the WHERE clause
// loses against an already-paid order, and the provider ids are only
// written when still empty.
func (r *MySQLOrderRepo) MarkPaid(ctx context.Context, id, txnid, paymentID string, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET
  payment_status='paid', paid_at=?,
  txn_id=IF(txn_id='', ?, txn_id),
  payment_id=IF(payment_id='', ?, payment_id),
  invoice_number=IF(invoice_number='', CONCAT('INV-', order_number), invoice_number),
  updated_at=NOW()
WHERE id=? AND payment_status <> 'paid'`,
		paidAt, txnid, paymentID, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkPaymentFailed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET payment_status='failed', updated_at=NOW()
WHERE id=? AND payment_status <> 'paid'`, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkVerificationFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE orders SET payment_status='verification_failed', updated_at=NOW()
WHERE id=? AND payment_status <> 'paid'`, id)
	return err
}

// CasStatus commits a transition only while the stored status still
// matches, rows==0 means a concurrent writer won.
func (r *MySQLOrderRepo) CasStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status=?, updated_at=NOW() WHERE id=? AND status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkCancelled(ctx context.Context, id string, from []domain.Status, by domain.Actor, reason string, at time.Time) (bool, error) {
	placeholders := strings.Repeat("?,", len(from))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{by, at, reason, id}
	for _, s := range from {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status='cancelled', cancelled_by=?, cancelled_at=?, cancellation_reason=?, updated_at=NOW()
WHERE id=? AND status IN (`+placeholders+`) AND lg_tracking_id=''`, args...)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// MarkCancelledUnpaid cancels a pending order only while its payment
// is still outstanding. The payment check lives inside the UPDATE so a
// MarkPaid racing the caller's read cannot be cancelled over.
func (r *MySQLOrderRepo) MarkCancelledUnpaid(ctx context.Context, id string, by domain.Actor, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status='cancelled', cancelled_by=?, cancelled_at=?, cancellation_reason=?, updated_at=NOW()
WHERE id=? AND status='pending' AND payment_status <> 'paid' AND lg_tracking_id=''`, by, at, reason, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkShipped(ctx context.Context, id string, lg domain.Logistics, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET
  status='shipped',
  lg_provider=?, lg_shipment_id=?, lg_tracking_id=?, lg_courier=?, lg_status=?, shipped_at=?,
  updated_at=NOW()
WHERE id=? AND status='processing' AND payment_status='paid' AND lg_tracking_id=''`,
		lg.Provider, lg.ShipmentID, lg.TrackingID, lg.CourierName, lg.Status, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// MarkDelivered sets deliveredAt exactly once: repeats lose the CAS
// and leave the original timestamp untouched.
func (r *MySQLOrderRepo) MarkDelivered(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET status='delivered', lg_status='delivered', delivered_at=?, updated_at=NOW()
WHERE id=? AND status='shipped'`, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) SetLogisticsStatus(ctx context.Context, id string, status domain.LogisticsStatus) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET lg_status=?, updated_at=NOW() WHERE id=?`, status, id)
	return err
}

func (r *MySQLOrderRepo) MarkInventoryRestored(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET inventory_restored=1, updated_at=NOW()
WHERE id=? AND inventory_restored=0`, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkDeliveryNotified(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET delivery_notified=1, updated_at=NOW()
WHERE id=? AND delivery_notified=0`, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) SetRefundRequested(ctx context.Context, id, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET refund_requested=1, refund_requested_at=?, refund_reason=?, refund_status='requested', updated_at=NOW()
WHERE id=?`, at, reason, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *MySQLOrderRepo) CasRefundStatus(ctx context.Context, id string, from, to domain.RefundStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET refund_status=?, updated_at=NOW() WHERE id=? AND refund_status=?`, to, id, from)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) MarkRefunded(ctx context.Context, id string, amount domain.Paise, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET payment_status='refunded', refund_amount=?, refunded_at=?, updated_at=NOW()
WHERE id=?`, amount, at, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (r *MySQLOrderRepo) ClearRefundRequest(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE orders SET refund_requested=0, updated_at=NOW() WHERE id=?`, id)
	return err
}

func (r *MySQLOrderRepo) SetReturnRequested(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET ret_requested=1, ret_requested_at=?, ret_reason=?, ret_status='requested', updated_at=NOW()
WHERE id=? AND ret_requested=0 AND status='delivered'`, at, reason, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) CasReturnStatus(ctx context.Context, id string, from, to domain.ReturnStatus, notes, by string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders SET ret_status=?, ret_admin_notes=?, ret_processed_at=?, ret_processed_by=?, updated_at=NOW()
WHERE id=? AND ret_status=?`, to, notes, at, by, id, from)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *MySQLOrderRepo) SetReturnShipment(ctx context.Context, id string, shipmentID, awb, courier string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE orders SET ret_shipment_id=?, ret_tracking_id=?, ret_courier=?, updated_at=NOW() WHERE id=?`,
		shipmentID, awb, courier, id)
	return err
}

func affected(res sql.Result) (bool, error) {
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func mustAffect(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
