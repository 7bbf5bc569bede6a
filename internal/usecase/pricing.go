package usecase

import (
	"errors"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
)

var ErrZeroTotal = errors.New("order total must be greater than 0")

// Breakdown is the immutable monetary snapshot persisted on the order.
type Breakdown struct {
	Subtotal     domain.Paise
	Discount     domain.Paise
	Tax          domain.Paise
	ShippingCost domain.Paise
	Amount       domain.Paise
}

// ComputeTotals combines server-trusted prices, discount, tax and
// shipping into the final amount. Tax applies to the subtotal after
// discount. The result satisfies
// amount == subtotal - discount + tax + shippingCost by construction.
func ComputeTotals(subtotal, discount domain.Paise, tax *domain.TaxConfig, shipping domain.Paise) (Breakdown, error) {
	if discount > subtotal {
		discount = subtotal
	}
	taxed := tax.CalculateTax(subtotal - discount)
	b := Breakdown{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          taxed,
		ShippingCost: shipping,
		Amount:       subtotal - discount + taxed + shipping,
	}
	if b.Amount <= 0 {
		return Breakdown{}, ErrZeroTotal
	}
	return b, nil
}
