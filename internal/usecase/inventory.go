package usecase

import (
	"context"
	"fmt"

	domain "github.com/GovindKumar26/petstore-api/internal/entity"
	"github.com/GovindKumar26/petstore-api/internal/logging"
)

// Inventory owns the reserve/restore discipline. Only the order
// lifecycle services call Restore; nothing else returns stock.
type Inventory struct {
	orders   OrderRepo
	products ProductRepo
}

func NewInventory(orders OrderRepo, products ProductRepo) *Inventory {
	return &Inventory{orders: orders, products: products}
}

// Reserve decrements stock for every line of the order. The decrement
// is conditional at the storage layer (inventory >= qty), so a race
// between two orders on the last unit fails one of them instead of
// overselling. On a mid-list failure the already-reserved lines are
// returned to stock before the error propagates.
func (s *Inventory) Reserve(ctx context.Context, items []domain.OrderItem) error {
	for i, item := range items {
		if err := s.products.Reserve(ctx, item.ProductID, item.Qty); err != nil {
			for j := 0; j < i; j++ {
				if rbErr := s.products.AdjustInventory(ctx, items[j].ProductID, items[j].Qty); rbErr != nil {
					logging.FromCtx(ctx).Error("reserve rollback failed",
						"product", items[j].ProductID, "qty", items[j].Qty, "err", rbErr)
				}
			}
			return fmt.Errorf("reserve %s: %w", item.ProductID, err)
		}
	}
	return nil
}

// Restore returns every line's quantity to stock at most once per
// order. The inventoryRestored latch is claimed with a conditional
// update first; only the claimant performs the increments, so N
// concurrent calls restore exactly once.
func (s *Inventory) Restore(ctx context.Context, o *domain.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	won, err := s.orders.MarkInventoryRestored(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("claim restore latch: %w", err)
	}
	if !won {
		return nil
	}
	for _, item := range o.Items {
		if err := s.products.AdjustInventory(ctx, item.ProductID, item.Qty); err != nil {
			// The latch is already claimed; surface the failure for
			// manual review instead of retrying into a double credit.
			logging.FromCtx(ctx).Error("inventory restore failed",
				"order", o.ID, "product", item.ProductID, "qty", item.Qty, "err", err)
			return fmt.Errorf("restore %s: %w", item.ProductID, err)
		}
	}
	o.InventoryRestored = true
	return nil
}
