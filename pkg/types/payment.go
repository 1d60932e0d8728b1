package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the typed selector for provider adapters.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodPayPal
}

// PaymentSession is the ephemeral bridge between an order and the external
// provider. Exactly one of CheckoutSessionURL / ProviderOrderID is set
// depending on the method. It is never persisted past the current handshake.
type PaymentSession struct {
	OrderID            string        `json:"order_id"`
	Method             PaymentMethod `json:"method"`
	CheckoutSessionURL string        `json:"checkout_session_url,omitempty"`
	ProviderOrderID    string        `json:"provider_order_id,omitempty"`
	// DirectCreation marks a provider order id synthesized locally because
	// the commerce API was unreachable. The resulting payment is unverified
	// at creation time; reconciliation treats it optimistically.
	DirectCreation bool `json:"direct_creation,omitempty"`
}

// PaymentRecord is read-only from the gateway's perspective.
type PaymentRecord struct {
	PaymentID      string          `json:"payment_id"`
	OrderID        string          `json:"order_id"`
	Method         PaymentMethod   `json:"method"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	TransactionID  string          `json:"transaction_id"`
	DirectCreation bool            `json:"direct_creation,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// PaymentConfig tells the storefront which providers are usable.
type PaymentConfig struct {
	StripeEnabled        bool   `json:"stripe_enabled"`
	StripePublishableKey string `json:"stripe_publishable_key,omitempty"`
	PayPalEnabled        bool   `json:"paypal_enabled"`
	PayPalClientID       string `json:"paypal_client_id,omitempty"`
	Currency             string `json:"currency"`
}
