package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/google/uuid"
)

var (
	ErrDuplicate      = errors.New("duplicate idempotency key")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmptyOrder     = errors.New("order must contain at least one item")
	ErrProductMissing = errors.New("product not found")
)

var (
	phonePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodePattern = regexp.MustCompile(`^\d{6}$`)
)

type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

type CreateOrderInput struct {
	UserID         string
	IdempotencyKey string
	Items          []CreateOrderItem
	ShippingAddr   domain.ShippingAddress
	DiscountCode   string
	ShippingCost   domain.Paise
}

type CreateOrder struct {
	orders    OrderRepo
	products  ProductRepo
	taxes     TaxRepo
	discounts *DiscountEngine
	inventory *Inventory
	idem      IdempotencyStore
	now       func() time.Time
}

func NewCreateOrder(orders OrderRepo, products ProductRepo, taxes TaxRepo, discounts *DiscountEngine, inv *Inventory, idem IdempotencyStore) *CreateOrder {
	return &CreateOrder{
		orders:    orders,
		products:  products,
		taxes:     taxes,
		discounts: discounts,
		inventory: inv,
		idem:      idem,
		now:       time.Now,
	}
}

func validateAddress(a domain.ShippingAddress) error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	case !phonePattern.MatchString(a.Phone):
		return fmt.Errorf("%w: invalid phone number", ErrInvalidInput)
	case strings.TrimSpace(a.Street) == "":
		return fmt.Errorf("%w: street address is required", ErrInvalidInput)
	case strings.TrimSpace(a.City) == "":
		return fmt.Errorf("%w: city is required", ErrInvalidInput)
	case strings.TrimSpace(a.State) == "":
		return fmt.Errorf("%w: state is required", ErrInvalidInput)
	case !pincodePattern.MatchString(a.Pincode):
		return fmt.Errorf("%w: invalid pincode", ErrInvalidInput)
	}
	return nil
}

// Execute prices the order from server-side catalog data, applies the
// discount and tax, reserves stock and persists the aggregate in
// pending/unpaid state. Validation failures happen before anything is
// written; a reservation failure on one line rolls the others back.
func (uc *CreateOrder) Execute(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if err := validateAddress(in.ShippingAddr); err != nil {
		return nil, err
	}
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity < 1 {
			return nil, fmt.Errorf("%w: product id and quantity (min 1) required", ErrInvalidInput)
		}
	}
	if in.ShippingCost < 0 {
		return nil, fmt.Errorf("%w: negative shipping cost", ErrInvalidInput)
	}

	if in.IdempotencyKey != "" {
		if id, ok, _ := uc.idem.Recall(ctx, in.UserID, in.IdempotencyKey); ok {
			return uc.orders.GetByID(ctx, id)
		}
		ok, err := uc.idem.TryLock(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDuplicate
		}
	}

	// Snapshot server prices; the order never re-reads the catalog.
	items := make([]domain.OrderItem, 0, len(in.Items))
	var subtotal domain.Paise
	for _, it := range in.Items {
		p, err := uc.products.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductMissing, it.ProductID)
		}
		if !p.HasEnoughStock(it.Quantity) {
			return nil, fmt.Errorf("%w: only %d of %q available", domain.ErrInsufficientStock, p.Inventory, p.Title)
		}
		items = append(items, domain.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Qty:       it.Quantity,
		})
		subtotal += p.Price * domain.Paise(it.Quantity)
	}

	var discountAmt domain.Paise
	var discount *domain.Discount
	if in.DiscountCode != "" {
		d, err := uc.discounts.Validate(ctx, in.DiscountCode, subtotal, in.UserID)
		if err != nil {
			return nil, err
		}
		discount = d
		discountAmt = d.ComputeAmount(subtotal)
	}

	taxCfg, err := uc.taxes.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	breakdown, err := ComputeTotals(subtotal, discountAmt, taxCfg, in.ShippingCost)
	if err != nil {
		return nil, err
	}

	if err := uc.inventory.Reserve(ctx, items); err != nil {
		return nil, err
	}

	now := uc.now()
	order := &domain.Order{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		Items:        items,
		Subtotal:     breakdown.Subtotal,
		Discount:     breakdown.Discount,
		Tax:          breakdown.Tax,
		ShippingCost: breakdown.ShippingCost,
		Amount:       breakdown.Amount,
		Status:       domain.StatusPending,
		Payment: domain.Payment{
			Method: "payu",
			Status: domain.PaymentPending,
		},
		ShippingAddress: in.ShippingAddr,
		RefundStatus:    domain.RefundNone,
		Return:          domain.ReturnRequest{Status: domain.ReturnNone},
		CreatedAt:       now,
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = "India"
	}
	order.OrderNumber = domain.OrderNumberFor(order.ID, now)
	if discount != nil {
		order.DiscountCode = discount.Code
	}
	if err := order.ValidateAmount(); err != nil {
		return nil, err
	}

	if err := uc.orders.Create(ctx, order); err != nil {
		// Undo the reservation so a persistence failure cannot leak
		// stock. The order does not exist, so this cannot double with
		// the restore latch.
		for _, it := range items {
			_ = uc.products.AdjustInventory(ctx, it.ProductID, it.Qty)
		}
		return nil, err
	}

	if discount != nil {
		// Fire and forget relative to the order write.
		uc.discounts.CommitUsage(ctx, discount, in.UserID)
	}
	if in.IdempotencyKey != "" {
		_ = uc.idem.Remember(ctx, in.UserID, in.IdempotencyKey, order.ID)
	}
	return order, nil
}
