package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// Snapshot is the checkout-time view of the cart. Degraded marks a snapshot
// built after an upstream failure: zero lines, zero totals, and callers must
// surface an error distinct from "empty cart" instead of proceeding.
type Snapshot struct {
	Cart     types.Cart
	Totals   types.CartTotals
	Degraded bool
}

// Empty reports whether the snapshot holds nothing purchasable.
func (s Snapshot) Empty() bool {
	return s.Cart.IsEmpty()
}

// Service reads and mutates the session cart through the commerce API. It is
// the only mutation path; no other package calls the cart endpoints directly.
type Service interface {
	Snapshot(ctx context.Context, token string) (*Snapshot, error)
	AddItem(ctx context.Context, token string, params commerce.AddCartItemParams) (*Snapshot, error)
	UpdateItem(ctx context.Context, token, itemID string, quantity int) (*Snapshot, error)
	RemoveItem(ctx context.Context, token, itemID string) (*Snapshot, error)
	Clear(ctx context.Context, token string) error
}

type service struct {
	api     commerce.API
	pricing config.PricingConfig
	logger  *logger.Logger
}

// NewService builds the cart service.
func NewService(api commerce.API, pricing config.PricingConfig, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("commerce api required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, pricing: pricing, logger: logg}, nil
}

func (s *service) Snapshot(ctx context.Context, token string) (*Snapshot, error) {
	cart, err := s.api.GetCart(ctx, token)
	if err != nil {
		// Zero snapshot, not a crash. The Degraded flag keeps the failure
		// distinguishable from a genuinely empty cart.
		s.logger.Error(ctx, "cart snapshot degraded", err)
		return &Snapshot{Degraded: true, Totals: zeroTotals()}, nil
	}
	return s.buildSnapshot(cart), nil
}

func (s *service) AddItem(ctx context.Context, token string, params commerce.AddCartItemParams) (*Snapshot, error) {
	if params.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.api.AddCartItem(ctx, token, params)
	if err != nil {
		return nil, err
	}
	return s.buildSnapshot(cart), nil
}

func (s *service) UpdateItem(ctx context.Context, token, itemID string, quantity int) (*Snapshot, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.api.UpdateCartItem(ctx, token, itemID, commerce.UpdateCartItemParams{Quantity: quantity})
	if err != nil {
		return nil, err
	}
	return s.buildSnapshot(cart), nil
}

func (s *service) RemoveItem(ctx context.Context, token, itemID string) (*Snapshot, error) {
	cart, err := s.api.RemoveCartItem(ctx, token, itemID)
	if err != nil {
		return nil, err
	}
	return s.buildSnapshot(cart), nil
}

// Clear empties the cart. Clearing an already-empty or missing cart is a
// no-op, so NOT_FOUND from upstream is swallowed.
func (s *service) Clear(ctx context.Context, token string) error {
	err := s.api.ClearCart(ctx, token)
	if err == nil || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return nil
	}
	return err
}

func (s *service) buildSnapshot(cart *types.Cart) *Snapshot {
	snapshot := &Snapshot{Cart: *cart}
	if cart.Totals != nil {
		// Upstream totals are authoritative; never recompute over them.
		snapshot.Totals = *cart.Totals
		return snapshot
	}
	snapshot.Totals = s.deriveTotals(cart.Lines, decimal.Zero)
	return snapshot
}

// deriveTotals fills the aggregate block when upstream omits it. Shipping is
// waived only when the subtotal exceeds the free-shipping threshold.
func (s *service) deriveTotals(lines []types.CartLine, discount decimal.Decimal) types.CartTotals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	tax := subtotal.Mul(s.pricing.TaxRateDecimal())

	shipping := s.pricing.FlatShippingFeeDecimal()
	if subtotal.GreaterThan(s.pricing.FreeShippingThresholdDecimal()) {
		shipping = decimal.Zero
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	return types.CartTotals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}

func zeroTotals() types.CartTotals {
	return types.CartTotals{
		Subtotal: decimal.Zero,
		Shipping: decimal.Zero,
		Tax:      decimal.Zero,
		Discount: decimal.Zero,
		Total:    decimal.Zero,
	}
}
