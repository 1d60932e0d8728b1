// Package reconcile settles the success route: it turns "the provider sent
// the shopper back here" into a confirmed order exactly once, no matter how
// many times the shopper reloads the page.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/internal/checkout"
	"github.com/norwoodlabs/storefront-gateway/internal/journal"
	"github.com/norwoodlabs/storefront-gateway/internal/payments"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/metrics"
	"github.com/norwoodlabs/storefront-gateway/pkg/redis"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

const (
	guardCartClear = "cart_clear"
	guardNotice    = "notice"

	fallbackListLimit = 10
)

// Params is the success-route query contract. Exactly which identifiers are
// present depends on the provider leg that redirected here.
type Params struct {
	SessionID       string
	Method          types.PaymentMethod
	ProviderOrderID string
	OrderID         string
}

// withInferredMethod fills Method when the redirect omitted payment_method.
// A provider order id only ever comes from a PayPal return and a bare session
// id only from a Stripe return, so the identifiers are authoritative; capture
// confirmation must not depend on the optional query param.
func (p Params) withInferredMethod() Params {
	if p.Method != "" {
		return p
	}
	switch {
	case p.ProviderOrderID != "":
		p.Method = types.PaymentMethodPayPal
	case p.SessionID != "":
		p.Method = types.PaymentMethodCard
	}
	return p
}

// Result is what the confirmation page renders. Notice is set at most once
// per checkout session; replays get the order without the notice.
type Result struct {
	Order          *types.Order         `json:"order"`
	Payment        *types.PaymentRecord `json:"payment,omitempty"`
	Notice         string               `json:"notice,omitempty"`
	CartCleared    bool                 `json:"cart_cleared"`
	DirectCreation bool                 `json:"direct_creation,omitempty"`
}

// Service runs post-payment reconciliation.
type Service interface {
	Run(ctx context.Context, token string, params Params) (*Result, error)
}

type service struct {
	checkout checkout.Service
	cart     cart.Service
	payments payments.Service
	api      commerce.API
	store    redis.SessionStore
	journal  journal.Recorder
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
	guardTTL time.Duration
}

// NewService wires reconciliation over the checkout adapters and the guard
// store. guardTTL bounds how long the cross-load dedup guards live; after
// expiry a replay re-clears an already empty cart, which is harmless.
func NewService(
	checkoutSvc checkout.Service,
	cartSvc cart.Service,
	paymentsSvc payments.Service,
	api commerce.API,
	store redis.SessionStore,
	rec journal.Recorder,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
	guardTTL time.Duration,
) (Service, error) {
	if checkoutSvc == nil || cartSvc == nil || paymentsSvc == nil || api == nil {
		return nil, fmt.Errorf("checkout, cart, payments and commerce api required")
	}
	if store == nil {
		return nil, fmt.Errorf("guard store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if guardTTL <= 0 {
		guardTTL = 2 * time.Hour
	}
	return &service{
		checkout: checkoutSvc,
		cart:     cartSvc,
		payments: paymentsSvc,
		api:      api,
		store:    store,
		journal:  rec,
		metrics:  m,
		logger:   logg,
		guardTTL: guardTTL,
	}, nil
}

// Run executes the success-route sequence: settle any pending provider leg,
// resolve the order, clear the cart once, attach the payment record, emit the
// confirmation notice once. Only an unresolvable order is terminal; every
// other branch failure is collected, logged, and survived.
func (s *service) Run(ctx context.Context, token string, params Params) (*Result, error) {
	params = params.withInferredMethod()
	ctx = s.logger.WithPaymentMethod(ctx, string(params.Method))
	run := &flags{}
	var soft error

	capture, err := s.settleProviderLeg(ctx, token, params)
	if err != nil {
		s.metrics.IncReconcile("capture_failed")
		return nil, err
	}

	order, usedFallback, err := s.resolveOrder(ctx, token, params, capture)
	if err != nil {
		s.metrics.IncReconcile("order_not_found")
		return nil, err
	}
	ctx = s.logger.WithOrderID(ctx, order.ID)
	if usedFallback {
		s.noteResolutionFallback(ctx, params, order)
	}

	result := &Result{Order: order}
	if capture != nil {
		result.DirectCreation = capture.DirectCreation
	}

	scope := guardScope(params.SessionID, order.ID)

	cleared, clearErr := s.clearCartOnce(ctx, token, run, scope)
	result.CartCleared = cleared
	soft = multierr.Append(soft, clearErr)

	payment, payErr := s.attachPayment(ctx, token, order.ID)
	result.Payment = payment
	soft = multierr.Append(soft, payErr)
	if payment != nil && payment.DirectCreation {
		result.DirectCreation = true
	}

	if notice, noticeErr := s.emitNoticeOnce(ctx, run, scope, order); noticeErr != nil {
		soft = multierr.Append(soft, noticeErr)
	} else {
		result.Notice = notice
	}

	if soft != nil {
		s.logger.Warn(ctx, fmt.Sprintf("reconciliation completed with degraded branches: %v", soft))
	}
	s.metrics.IncReconcile("ok")
	s.logger.Info(ctx, "reconciliation complete")
	return result, nil
}

// settleProviderLeg confirms a pending capture when the return carries enough
// provider context. A plain success hit with only an order id skips this.
func (s *service) settleProviderLeg(ctx context.Context, token string, params Params) (*checkout.Capture, error) {
	switch params.Method {
	case types.PaymentMethodPayPal:
		if params.ProviderOrderID == "" {
			return nil, nil
		}
	case types.PaymentMethodCard:
		if params.SessionID == "" {
			return nil, nil
		}
	default:
		return nil, nil
	}

	adapter, err := s.checkout.AdapterFor(params.Method)
	if err != nil {
		return nil, err
	}
	return adapter.HandleReturn(ctx, token, checkout.ReturnParams{
		SessionID:       params.SessionID,
		ProviderOrderID: params.ProviderOrderID,
		OrderID:         params.OrderID,
	})
}

// resolveOrder finds the order the shopper just paid for. Exact id first,
// then the freshest paid order, then the freshest order of any status. The
// boolean reports whether a fallback branch produced the result.
func (s *service) resolveOrder(ctx context.Context, token string, params Params, capture *checkout.Capture) (*types.Order, bool, error) {
	exactID := params.OrderID
	if capture != nil && capture.OrderID != "" {
		exactID = capture.OrderID
	}

	if strings.TrimSpace(exactID) != "" {
		order, err := s.api.GetOrder(ctx, token, exactID)
		if err == nil {
			return order, false, nil
		}
		if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, false, err
		}
		s.logger.Warn(ctx, fmt.Sprintf("order %s not found by id, falling back to recency", exactID))
	}

	list, err := s.api.ListOrders(ctx, token, 1, fallbackListLimit)
	if err != nil {
		return nil, false, err
	}
	if len(list.Orders) == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "no order found to reconcile")
	}

	orders := make([]types.Order, len(list.Orders))
	copy(orders, list.Orders)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	for i := range orders {
		if orders[i].PaymentStatus.Paid() {
			return &orders[i], true, nil
		}
	}
	return &orders[0], true, nil
}

// noteResolutionFallback journals a fallback resolution when an exact id was
// expected to match. Operators should know the id trail broke.
func (s *service) noteResolutionFallback(ctx context.Context, params Params, order *types.Order) {
	if params.OrderID == "" || s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, journal.Discrepancy{
		OrderID:         order.ID,
		SessionID:       params.SessionID,
		Method:          string(params.Method),
		ProviderOrderID: params.ProviderOrderID,
		Stage:           journal.StageReconcile,
		Detail:          fmt.Sprintf("expected order %s missing, reconciled against %s by recency", params.OrderID, order.ID),
	}); err != nil {
		s.logger.Error(ctx, "journal write failed", err)
	}
}

// clearCartOnce clears the cart at most once per checkout session across any
// number of success-page loads. Failure to clear is survivable; the next
// checkout attempt starts from a validated snapshot anyway.
func (s *service) clearCartOnce(ctx context.Context, token string, run *flags, scope string) (bool, error) {
	if !run.acquireCartClear() {
		return false, nil
	}
	acquired, err := s.store.SetNX(ctx, s.store.GuardKey(scope, guardCartClear), 1, s.guardTTL)
	if err != nil {
		// Guard store down: clearing twice is the lesser evil versus never
		// clearing, the operation is idempotent upstream.
		s.logger.Warn(ctx, "guard store unavailable, clearing cart unguarded")
		acquired = true
	}
	if !acquired {
		return false, nil
	}
	if err := s.cart.Clear(ctx, token); err != nil {
		return false, fmt.Errorf("clear cart: %w", err)
	}
	s.logger.Info(ctx, "cart cleared after successful payment")
	return true, nil
}

// attachPayment fetches the payment record. Absence is expected when the
// upstream has not finished writing it; the confirmation renders without it.
func (s *service) attachPayment(ctx context.Context, token, orderID string) (*types.PaymentRecord, error) {
	payment, err := s.payments.Record(ctx, token, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch payment record: %w", err)
	}
	return payment, nil
}

// emitNoticeOnce produces the one-time confirmation message.
func (s *service) emitNoticeOnce(ctx context.Context, run *flags, scope string, order *types.Order) (string, error) {
	if !run.acquireNotice() {
		return "", nil
	}
	acquired, err := s.store.SetNX(ctx, s.store.GuardKey(scope, guardNotice), 1, s.guardTTL)
	if err != nil {
		return "", fmt.Errorf("notice guard: %w", err)
	}
	if !acquired {
		return "", nil
	}
	label := order.OrderNumber
	if label == "" {
		label = order.ID
	}
	return fmt.Sprintf("Order %s confirmed. Thank you for your purchase.", label), nil
}

// guardScope keys the cross-load guards. The checkout session id is the
// natural scope; a bare return without one falls back to the order id.
func guardScope(sessionID, orderID string) string {
	if strings.TrimSpace(sessionID) != "" {
		return sessionID
	}
	return orderID
}
