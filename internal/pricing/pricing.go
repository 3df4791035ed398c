package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/omarvaldez/threadline-backend/pkg/config"
)

// Policy holds the order total rules. Tax applies to merchandise subtotal
// only; shipping is flat-rate and waived above the free threshold.
type Policy struct {
	TaxRate                    decimal.Decimal
	FreeShippingThresholdCents int64
	FlatShippingCents          int64
}

// PolicyFromConfig builds a Policy from the loaded pricing config.
func PolicyFromConfig(cfg config.PricingConfig) (Policy, error) {
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return Policy{}, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}
	if rate.IsNegative() {
		return Policy{}, fmt.Errorf("tax rate must not be negative, got %s", rate)
	}
	if cfg.FreeShippingThresholdCents < 0 || cfg.FlatShippingCents < 0 {
		return Policy{}, fmt.Errorf("shipping amounts must not be negative")
	}
	return Policy{
		TaxRate:                    rate,
		FreeShippingThresholdCents: cfg.FreeShippingThresholdCents,
		FlatShippingCents:          cfg.FlatShippingCents,
	}, nil
}

// Line is one priced order line.
type Line struct {
	UnitPriceCents int64
	Quantity       int
}

// Totals is the calculated money breakdown for an order. All amounts are
// integer cents; the components always sum exactly to TotalCents.
type Totals struct {
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	TotalCents    int64
}

// Compute derives order totals from the given lines.
//
// Tax is rounded half-up to whole cents. Shipping is waived only when the
// subtotal exceeds the free threshold; an order at exactly the threshold
// still pays the flat rate.
func (p Policy) Compute(lines []Line) Totals {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(p.TaxRate).
		Round(0).
		IntPart()

	var shipping int64
	if subtotal <= p.FreeShippingThresholdCents {
		shipping = p.FlatShippingCents
	}

	return Totals{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		ShippingCents: shipping,
		TotalCents:    subtotal + tax + shipping,
	}
}
