package commerce

import "github.com/norwoodlabs/storefront-gateway/pkg/types"

// AddCartItemParams mirrors POST /cart/add.
type AddCartItemParams struct {
	ProductRef string  `json:"product_ref"`
	Quantity   int     `json:"quantity"`
	Size       *string `json:"size,omitempty"`
	Color      *string `json:"color,omitempty"`
}

// UpdateCartItemParams mirrors PATCH /cart/item/{id}.
type UpdateCartItemParams struct {
	Quantity int `json:"quantity"`
}

// CreateOrderParams mirrors POST /orders. The cart is implicit server-side.
type CreateOrderParams struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           string                `json:"notes,omitempty"`
}

// OrderList is the paginated GET /orders response.
type OrderList struct {
	Orders []types.Order `json:"orders"`
	Total  int           `json:"total"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
}

// StripeSessionParams mirrors the hosted-session mint request.
type StripeSessionParams struct {
	OrderID    string `json:"order_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// StripeSession is the minted hosted-checkout handle.
type StripeSession struct {
	SessionID          string `json:"session_id"`
	CheckoutSessionURL string `json:"checkout_session_url"`
}

// PayPalOrderParams mirrors the provider order mint request.
type PayPalOrderParams struct {
	OrderID string `json:"order_id"`
}

// PayPalOrder is the minted provider order handle.
type PayPalOrder struct {
	PayPalOrderID string `json:"paypal_order_id"`
}

// CapturePayPalParams confirms a PayPal approval server-side.
type CapturePayPalParams struct {
	PayPalOrderID  string `json:"paypal_order_id"`
	OrderID        string `json:"order_id"`
	DirectCreation bool   `json:"direct_creation,omitempty"`
}
