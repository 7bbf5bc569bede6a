package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Paise is a monetary amount in minor currency units (1/100 rupee).
// All arithmetic stays in integers; rupee strings only appear at the
// provider wire boundary.
type Paise int64

var ErrBadAmount = errors.New("malformed amount")

// Rupees renders the amount as a two-decimal rupee string ("1234.05").
func (p Paise) Rupees() string {
	neg := ""
	v := int64(p)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}

// ParseRupees converts a decimal rupee string from a provider payload
// into paise. Rejects more than two fractional digits rather than
// silently rounding.
func ParseRupees(s string) (Paise, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadAmount
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, ErrBadAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, ErrBadAmount
	}
	f := int64(0)
	if frac != "00" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, ErrBadAmount
		}
	}
	return Paise(w*100 + f), nil
}
