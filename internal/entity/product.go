package domain

import "errors"

var ErrInsufficientStock = errors.New("insufficient stock")

// Product is an external collaborator referenced by orders; only its
// price and inventory matter here. Inventory is mutated exclusively
// through atomic increments at the storage layer.
type Product struct {
	ID        string
	Title     string
	Slug      string
	Price     Paise
	Inventory int
}

func (p *Product) HasEnoughStock(qty int) bool {
	return p.Inventory >= qty
}
