package domain

// TaxConfig is the singleton active tax row. The rate is stored in
// basis points (18% == 1800) so tax math stays in integers while still
// allowing two decimal places of rate precision.
type TaxConfig struct {
	ID        string
	Name      string
	RateBP    int64 // 0..10000
	Inclusive bool
}

// CalculateTax applies the rate to the taxable amount, rounding
// half-up. Inclusive pricing means tax is informational and already
// part of the item prices.
func (t *TaxConfig) CalculateTax(taxable Paise) Paise {
	if t == nil || t.RateBP <= 0 || t.Inclusive {
		return 0
	}
	return Paise((int64(taxable)*t.RateBP + 5000) / 10000)
}
