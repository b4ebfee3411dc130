// Package pricing decides what a cart line costs and which stock pool it draws from.
package pricing

import (
	"errors"
	"fmt"

	"grocery-checkout/internal/models"

	"github.com/shopspring/decimal"
)

var ErrVariantNotFound = errors.New("variant not found")

// Resolution is the price and stock pool a line item resolves to.
type Resolution struct {
	Price     decimal.Decimal
	Stock     int
	VariantID *uint // nil for flat products
	Label     string
}

// Resolve picks the effective unit price and stock pool for product and the
// requested variant label. Sale price wins over list price when set.
func Resolve(product models.Product, variantLabel string) (Resolution, error) {
	if product.HasVariants() {
		for i := range product.Variants {
			v := product.Variants[i]
			if v.Label != variantLabel {
				continue
			}
			id := v.ID
			return Resolution{
				Price:     effective(v.Price, v.SalePrice),
				Stock:     v.Stock,
				VariantID: &id,
				Label:     v.Label,
			}, nil
		}
		return Resolution{}, fmt.Errorf("%w: %q for %s", ErrVariantNotFound, variantLabel, product.Name)
	}

	label := variantLabel
	if label == "" {
		label = product.Unit
	}
	return Resolution{
		Price: effective(product.Price, product.SalePrice),
		Stock: product.Stock,
		Label: label,
	}, nil
}

func effective(price decimal.Decimal, sale decimal.NullDecimal) decimal.Decimal {
	if sale.Valid {
		return sale.Decimal
	}
	return price
}
