package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a single cart entry as returned by the commerce API.
type CartLine struct {
	ItemID     string          `json:"item_id"`
	ProductRef string          `json:"product_ref"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Size       *string         `json:"size,omitempty"`
	Color      *string         `json:"color,omitempty"`
}

// CartTotals carries aggregate amounts. The upstream values are authoritative;
// the gateway only derives them when the upstream omits the block.
type CartTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Cart is the upstream cart payload.
type Cart struct {
	ID        string      `json:"id"`
	Lines     []CartLine  `json:"items"`
	Totals    *CartTotals `json:"totals,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsEmpty reports whether the cart holds no purchasable lines.
func (c Cart) IsEmpty() bool {
	for _, line := range c.Lines {
		if line.Quantity > 0 {
			return false
		}
	}
	return true
}
