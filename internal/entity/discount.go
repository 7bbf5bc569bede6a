package domain

import (
	"errors"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount code validation failures, in the order the checks run.
var (
	ErrDiscountNotFound     = errors.New("invalid discount code")
	ErrDiscountInactive     = errors.New("discount code is inactive")
	ErrDiscountNotStarted   = errors.New("discount code is not yet active")
	ErrDiscountExpired      = errors.New("discount code has expired")
	ErrDiscountUsedUp       = errors.New("discount code usage limit reached")
	ErrDiscountFirstOnly    = errors.New("discount code is for first orders only")
	ErrDiscountMinOrder     = errors.New("order below minimum value for discount")
	ErrDiscountInvalidValue = errors.New("invalid discount value")
)

type Discount struct {
	ID                string
	Code              string // unique, stored uppercased
	Type              DiscountType
	Value             int64 // percent for percentage, paise for fixed
	Active            bool
	StartsAt          *time.Time
	EndsAt            *time.Time
	UsageLimit        int64 // 0 = unlimited
	UsedCount         int64
	Description       string
	MinOrderValue     Paise
	MaxDiscountAmount Paise
	FirstTimeOnly     bool
}

// Validate checks the definition itself, not an application of it.
func (d *Discount) Validate() error {
	if d.Value <= 0 {
		return ErrDiscountInvalidValue
	}
	if d.Type == DiscountPercentage && d.Value > 100 {
		return ErrDiscountInvalidValue
	}
	if d.StartsAt != nil && d.EndsAt != nil && !d.EndsAt.After(*d.StartsAt) {
		return ErrDiscountInvalidValue
	}
	return nil
}

// ComputeAmount returns the discount for the given subtotal: percentage
// is rounded half-up, then capped by MaxDiscountAmount (when set) and
// finally by the subtotal itself. The result is always in
// [0, min(subtotal, maxDiscountAmount)].
func (d *Discount) ComputeAmount(subtotal Paise) Paise {
	var amount Paise
	if d.Type == DiscountPercentage {
		amount = Paise((int64(subtotal)*d.Value + 50) / 100)
	} else {
		amount = Paise(d.Value)
	}
	if d.MaxDiscountAmount > 0 && amount > d.MaxDiscountAmount {
		amount = d.MaxDiscountAmount
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}
