package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

// fakeOrderRepo mirrors the conditional-update semantics of the MySQL
// repo in memory so the services can be exercised without a database.
type fakeOrderRepo struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	attempts map[string][]domain.PaymentAttempt

	refundReqErr error // next SetRefundRequested fails once with this
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:   make(map[string]*domain.Order),
		attempts: make(map[string][]domain.PaymentAttempt),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = append([]domain.OrderItem(nil), o.Items...)
	return &c
}

// put seeds an order directly, bypassing Create.
func (r *fakeOrderRepo) put(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = cloneOrder(o)
}

// stored returns the persisted state of an order for assertions.
func (r *fakeOrderRepo) stored(id string) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return cloneOrder(o)
	}
	return nil
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("duplicate order id %s", o.ID)
	}
	r.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return cloneOrder(o), nil
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetByTxnID(_ context.Context, txnid string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Payment.TransactionID == txnid {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetByTrackingID(_ context.Context, awb string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Logistics.TrackingID == awb {
			return cloneOrder(o), nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string, status domain.Status) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID != userID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (r *fakeOrderRepo) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, o := range r.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) ListPendingExpired(_ context.Context, olderThan time.Time) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusPending && o.Payment.Status == domain.PaymentPending && o.CreatedAt.Before(olderThan) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListShippedTracked(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusShipped && o.Logistics.TrackingID != "" {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) SetTransactionID(_ context.Context, id, txnid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.Payment.TransactionID = txnid
	return nil
}

func (r *fakeOrderRepo) AppendAttempt(_ context.Context, id string, a domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[id] = append(r.attempts[id], a)
	return nil
}

func (r *fakeOrderRepo) ListAttempts(_ context.Context, id string) ([]domain.PaymentAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PaymentAttempt(nil), r.attempts[id]...), nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, id, txnid, paymentID string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Payment.Status != domain.PaymentPending {
		return false, nil
	}
	o.Payment.Status = domain.PaymentPaid
	o.Payment.PaidAt = &paidAt
	if o.Payment.TransactionID == "" {
		o.Payment.TransactionID = txnid
	}
	if o.Payment.PaymentID == "" {
		o.Payment.PaymentID = paymentID
	}
	return true, nil
}

func (r *fakeOrderRepo) MarkPaymentFailed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Payment.Status != domain.PaymentPending {
		return false, nil
	}
	o.Payment.Status = domain.PaymentFailed
	return true, nil
}

func (r *fakeOrderRepo) MarkVerificationFailed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Payment.Status = domain.PaymentVerificationFailed
	}
	return nil
}

func (r *fakeOrderRepo) CasStatus(_ context.Context, id string, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeOrderRepo) MarkCancelled(_ context.Context, id string, from []domain.Status, by domain.Actor, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Logistics.TrackingID != "" {
		return false, nil
	}
	eligible := false
	for _, s := range from {
		if o.Status == s {
			eligible = true
			break
		}
	}
	if !eligible {
		return false, nil
	}
	o.Status = domain.StatusCancelled
	o.CancelledBy = by
	o.CancelledAt = &at
	o.CancellationReason = reason
	return true, nil
}

func (r *fakeOrderRepo) MarkCancelledUnpaid(_ context.Context, id string, by domain.Actor, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusPending || o.Payment.Status == domain.PaymentPaid || o.Logistics.TrackingID != "" {
		return false, nil
	}
	o.Status = domain.StatusCancelled
	o.CancelledBy = by
	o.CancelledAt = &at
	o.CancellationReason = reason
	return true, nil
}

func (r *fakeOrderRepo) MarkShipped(_ context.Context, id string, lg domain.Logistics, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusProcessing || o.Logistics.TrackingID != "" {
		return false, nil
	}
	o.Status = domain.StatusShipped
	o.Logistics = lg
	o.UpdatedAt = at
	return true, nil
}

func (r *fakeOrderRepo) MarkDelivered(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusShipped {
		return false, nil
	}
	o.Status = domain.StatusDelivered
	o.Logistics.Status = domain.LogisticsDelivered
	o.Logistics.DeliveredAt = &at
	return true, nil
}

func (r *fakeOrderRepo) SetLogisticsStatus(_ context.Context, id string, status domain.LogisticsStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.Logistics.Status = status
	}
	return nil
}

func (r *fakeOrderRepo) MarkInventoryRestored(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.InventoryRestored {
		return false, nil
	}
	o.InventoryRestored = true
	return true, nil
}

func (r *fakeOrderRepo) MarkDeliveryNotified(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Logistics.DeliveryNotified {
		return false, nil
	}
	o.Logistics.DeliveryNotified = true
	return true, nil
}

func (r *fakeOrderRepo) SetRefundRequested(_ context.Context, id, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refundReqErr != nil {
		err := r.refundReqErr
		r.refundReqErr = nil
		return err
	}
	o, ok := r.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.RefundRequested = true
	o.RefundRequestedAt = &at
	o.RefundReason = reason
	o.RefundStatus = domain.RefundRequested
	return nil
}

func (r *fakeOrderRepo) CasRefundStatus(_ context.Context, id string, from, to domain.RefundStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.RefundStatus != from {
		return false, nil
	}
	o.RefundStatus = to
	return true, nil
}

func (r *fakeOrderRepo) MarkRefunded(_ context.Context, id string, amount domain.Paise, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.Payment.Status = domain.PaymentRefunded
	o.Payment.RefundAmount = amount
	o.Payment.RefundedAt = &at
	return nil
}

func (r *fakeOrderRepo) ClearRefundRequest(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.RefundRequested = false
	}
	return nil
}

func (r *fakeOrderRepo) SetReturnRequested(_ context.Context, id, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Return.Requested {
		return false, nil
	}
	o.Return.Requested = true
	o.Return.RequestedAt = &at
	o.Return.Reason = reason
	o.Return.Status = domain.ReturnRequested
	return true, nil
}

func (r *fakeOrderRepo) CasReturnStatus(_ context.Context, id string, from, to domain.ReturnStatus, notes, by string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Return.Status != from {
		return false, nil
	}
	o.Return.Status = to
	o.Return.AdminNotes = notes
	o.Return.ProcessedBy = by
	o.Return.ProcessedAt = &at
	return true, nil
}

func (r *fakeOrderRepo) SetReturnShipment(_ context.Context, id, shipmentID, awb, courier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	o.Return.ShipmentID = shipmentID
	o.Return.TrackingID = awb
	o.Return.CourierName = courier
	return nil
}

type fakeProductRepo struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	reserveErr map[string]error // forced Reserve failures by product id
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{products: make(map[string]*domain.Product)}
	for _, p := range products {
		cp := *p
		r.products[p.ID] = &cp
	}
	return r
}

func (r *fakeProductRepo) stock(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		return p.Inventory
	}
	return -1
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeProductRepo) Reserve(_ context.Context, id string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reserveErr[id]; err != nil {
		return err
	}
	p, ok := r.products[id]
	if !ok {
		return errors.New("product not found")
	}
	if p.Inventory < qty {
		return domain.ErrInsufficientStock
	}
	p.Inventory -= qty
	return nil
}

func (r *fakeProductRepo) AdjustInventory(_ context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return errors.New("product not found")
	}
	p.Inventory += delta
	return nil
}

type fakeDiscountRepo struct {
	mu        sync.Mutex
	discounts map[string]*domain.Discount // keyed by code
	usages    map[string]map[string]bool  // discount id -> user ids
}

func newFakeDiscountRepo(discounts ...*domain.Discount) *fakeDiscountRepo {
	r := &fakeDiscountRepo{
		discounts: make(map[string]*domain.Discount),
		usages:    make(map[string]map[string]bool),
	}
	for _, d := range discounts {
		cp := *d
		r.discounts[d.Code] = &cp
	}
	return r
}

func (r *fakeDiscountRepo) GetByCode(_ context.Context, code string) (*domain.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.discounts[code]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeDiscountRepo) IncrementUsage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.discounts {
		if d.ID == id {
			d.UsedCount++
			return nil
		}
	}
	return errors.New("discount not found")
}

func (r *fakeDiscountRepo) RecordUsage(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usages[id] == nil {
		r.usages[id] = make(map[string]bool)
	}
	r.usages[id][userID] = true
	return nil
}

func (r *fakeDiscountRepo) HasUsed(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usages[id][userID], nil
}

type fakeTaxRepo struct {
	cfg *domain.TaxConfig
}

func (r *fakeTaxRepo) GetActive(context.Context) (*domain.TaxConfig, error) {
	return r.cfg, nil
}

type fakeIdemStore struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{locks: make(map[string]bool), values: make(map[string]string)}
}

func (s *fakeIdemStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + key
	if s.locks[k] {
		return false, nil
	}
	s.locks[k] = true
	return true, nil
}

func (s *fakeIdemStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[scope+":"+key] = value
	return nil
}

func (s *fakeIdemStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[scope+":"+key]
	return v, ok, nil
}

type notified struct {
	event   string
	orderID string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

func (n *recordingNotifier) Notify(_ context.Context, event string, o *domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{event: event, orderID: o.ID})
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.event == event {
			c++
		}
	}
	return c
}

type fakeShipping struct {
	mu         sync.Mutex
	shipment   Shipment
	trackBy    map[string]string // awb -> courier status
	createErr  error
	cancelled  []string
	created    int
	returnPick int
}

func (s *fakeShipping) CreateShipment(_ context.Context, _ *domain.Order) (Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Shipment{}, s.createErr
	}
	s.created++
	return s.shipment, nil
}

func (s *fakeShipping) TrackShipment(_ context.Context, awb string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.trackBy[awb]
	if !ok {
		return "", errors.New("unknown awb")
	}
	return st, nil
}

func (s *fakeShipping) CancelShipment(_ context.Context, shipmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, shipmentID)
	return nil
}

func (s *fakeShipping) CreateReturnPickup(_ context.Context, _ *domain.Order) (Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return Shipment{}, s.createErr
	}
	s.returnPick++
	return s.shipment, nil
}

type fakeRefundProvider struct {
	mu       sync.Mutex
	accepted bool
	err      error
	calls    []domain.Paise
}

func (p *fakeRefundProvider) Refund(_ context.Context, _ string, amount domain.Paise) (RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, amount)
	if p.err != nil {
		return RefundResult{}, p.err
	}
	return RefundResult{Accepted: p.accepted, ProviderRef: "REF123"}, nil
}

// fakeVerifier accepts callbacks whose raw map carries sig=ok.
type fakeVerifier struct{ name string }

func (v *fakeVerifier) Provider() string { return v.name }

func (v *fakeVerifier) Verify(raw map[string]string) error {
	if raw["sig"] != "ok" {
		return ErrSignatureInvalid
	}
	return nil
}

// fixedNow pins the service clock for deterministic assertions.
func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
