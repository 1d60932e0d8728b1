package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/internal/orders"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/metrics"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// PlaceOrderInput is the shopper's checkout submission.
type PlaceOrderInput struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           string                `json:"notes,omitempty"`
	Method          types.PaymentMethod   `json:"payment_method"`
}

// PlaceOrderResult pairs the drafted order with its provider handle.
type PlaceOrderResult struct {
	Order   *types.Order          `json:"order"`
	Payment *types.PaymentSession `json:"payment"`
}

// ApproveInput is the PayPal onApprove callback payload.
type ApproveInput struct {
	PayPalOrderID   string                `json:"paypal_order_id"`
	OrderID         string                `json:"order_id,omitempty"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
}

// Service drives the checkout flow end to end.
type Service interface {
	PlaceOrder(ctx context.Context, token, attemptKey, sessionID string, input PlaceOrderInput) (*PlaceOrderResult, error)
	ApprovePayPal(ctx context.Context, token, sessionID string, input ApproveInput) (*Capture, error)
	Cancel(ctx context.Context, method types.PaymentMethod, ret ReturnParams)
	AdapterFor(method types.PaymentMethod) (Adapter, error)
}

type service struct {
	registry *Registry
	orders   orders.Service
	cart     cart.Service
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
}

// NewService wires the orchestration flow over the adapter registry.
func NewService(registry *Registry, ordersSvc orders.Service, cartSvc cart.Service, m *metrics.CheckoutMetrics, logg *logger.Logger) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("adapter registry required")
	}
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{registry: registry, orders: ordersSvc, cart: cartSvc, metrics: m, logger: logg}, nil
}

// PlaceOrder validates the submission, drafts the order at most once per
// attempt, and mints the provider handle. The order draft survives a session
// minting failure so the shopper can retry payment without re-ordering.
func (s *service) PlaceOrder(ctx context.Context, token, attemptKey, sessionID string, input PlaceOrderInput) (*PlaceOrderResult, error) {
	adapter, err := s.AdapterFor(input.Method)
	if err != nil {
		return nil, err
	}
	ctx = s.logger.WithPaymentMethod(ctx, string(input.Method))
	s.metrics.IncAttempt(string(input.Method))

	order, err := s.orders.CreateDraft(ctx, token, attemptKey, orders.DraftInput{
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
	})
	if err != nil {
		s.metrics.IncOutcome(string(input.Method), "draft_failed")
		return nil, err
	}
	ctx = s.logger.WithOrderID(ctx, order.ID)

	session, err := adapter.CreateSession(ctx, token, order, sessionID)
	if err != nil {
		s.metrics.IncOutcome(string(input.Method), "session_failed")
		return nil, err
	}

	s.metrics.IncOutcome(string(input.Method), "session_created")
	s.logger.Info(ctx, "checkout handed off to provider")
	return &PlaceOrderResult{Order: order, Payment: session}, nil
}

// ApprovePayPal re-validates the submission before settling: the approval
// popup can outlive edits to the address form or the cart.
func (s *service) ApprovePayPal(ctx context.Context, token, sessionID string, input ApproveInput) (*Capture, error) {
	if err := orders.ValidateShippingAddress(input.ShippingAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PayPalOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id required")
	}

	snapshot, err := s.cart.Snapshot(ctx, token)
	if err != nil {
		return nil, err
	}
	if !snapshot.Degraded && snapshot.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	adapter, err := s.AdapterFor(types.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}

	capture, err := adapter.HandleReturn(ctx, token, ReturnParams{
		SessionID:       sessionID,
		ProviderOrderID: input.PayPalOrderID,
		OrderID:         input.OrderID,
	})
	if err != nil {
		s.metrics.IncOutcome(string(types.PaymentMethodPayPal), "capture_failed")
		return nil, err
	}
	s.metrics.IncOutcome(string(types.PaymentMethodPayPal), "captured")
	return capture, nil
}

// Cancel is the provider cancel leg. Terminal, never an error, cart intact.
func (s *service) Cancel(ctx context.Context, method types.PaymentMethod, ret ReturnParams) {
	adapter, err := s.AdapterFor(method)
	if err != nil {
		s.logger.Warn(ctx, "cancel return for unknown payment method")
		return
	}
	s.metrics.IncOutcome(string(method), "cancelled")
	adapter.HandleCancel(ctx, ret)
}

func (s *service) AdapterFor(method types.PaymentMethod) (Adapter, error) {
	adapter, ok := s.registry.For(method)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}
	return adapter, nil
}
