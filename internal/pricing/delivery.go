package pricing

import "github.com/shopspring/decimal"

// DeliveryPolicy charges a flat fee below a free-shipping threshold.
type DeliveryPolicy struct {
	FreeThreshold decimal.Decimal
	FlatFee       decimal.Decimal
}

// DefaultDeliveryPolicy is 50 below 1000, free from 1000 up.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		FreeThreshold: decimal.NewFromInt(1000),
		FlatFee:       decimal.NewFromInt(50),
	}
}

func (p DeliveryPolicy) Fee(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return decimal.Zero
	}
	return p.FlatFee
}
