package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/metrics"
	"github.com/norwoodlabs/storefront-gateway/pkg/redis"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

const (
	directOrderField = "paypal_direct_order"
	localOrderPrefix = "local-"
)

// ProviderOrderMinter is the degraded-path PayPal surface; nil when the
// gateway runs without direct PayPal credentials.
type ProviderOrderMinter interface {
	CreateOrder(ctx context.Context, referenceID, currency, amount string) (string, error)
}

// SessionInput identifies the order and the checkout session minting a
// payment handle.
type SessionInput struct {
	SessionID string
	OrderID   string
	Method    types.PaymentMethod
	Amount    decimal.Decimal
}

// DirectRecord is a parked degraded-mode provider order, keyed by checkout
// session in the ephemeral store.
type DirectRecord struct {
	ProviderOrderID string
	OrderID         string
	Synthesized     bool
}

// Service mints provider-specific payment handles for orders.
type Service interface {
	CreateSession(ctx context.Context, token string, input SessionInput) (*types.PaymentSession, error)
	LookupDirect(ctx context.Context, sessionID string) (*DirectRecord, error)
	Record(ctx context.Context, token, orderID string) (*types.PaymentRecord, error)
	Config(ctx context.Context, token string) (*types.PaymentConfig, error)
}

type service struct {
	api      commerce.API
	paypal   ProviderOrderMinter
	store    redis.SessionStore
	checkout config.CheckoutConfig
	stripe   config.StripeConfig
	paypalCf config.PayPalConfig
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
}

// NewService builds the payment session factory.
func NewService(
	api commerce.API,
	paypalClient ProviderOrderMinter,
	store redis.SessionStore,
	checkoutCfg config.CheckoutConfig,
	stripeCfg config.StripeConfig,
	paypalCfg config.PayPalConfig,
	m *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("commerce api required")
	}
	if store == nil {
		return nil, fmt.Errorf("session store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		api:      api,
		paypal:   paypalClient,
		store:    store,
		checkout: checkoutCfg,
		stripe:   stripeCfg,
		paypalCf: paypalCfg,
		metrics:  m,
		logger:   logg,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, token string, input SessionInput) (*types.PaymentSession, error) {
	if strings.TrimSpace(input.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Method.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", input.Method))
	}

	ctx = s.logger.WithOrderID(ctx, input.OrderID)
	ctx = s.logger.WithPaymentMethod(ctx, string(input.Method))

	switch input.Method {
	case types.PaymentMethodCard:
		return s.createCardSession(ctx, token, input)
	default:
		return s.createPayPalSession(ctx, token, input)
	}
}

// createCardSession mints a hosted checkout session. The caller redirects the
// whole page to the returned URL; a failure here halts the flow, there is no
// degraded card path.
func (s *service) createCardSession(ctx context.Context, token string, input SessionInput) (*types.PaymentSession, error) {
	session, err := s.api.CreateStripeSession(ctx, token, commerce.StripeSessionParams{
		OrderID:    input.OrderID,
		SuccessURL: s.checkout.SuccessURL,
		CancelURL:  s.checkout.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "stripe checkout session minted")
	return &types.PaymentSession{
		OrderID:            input.OrderID,
		Method:             types.PaymentMethodCard,
		CheckoutSessionURL: session.CheckoutSessionURL,
	}, nil
}

// createPayPalSession asks the commerce API for a provider order id. When the
// upstream is unreachable it falls back to direct creation: mint the provider
// order against PayPal itself (or synthesize a placeholder when no PayPal
// credentials are configured), park it in the ephemeral session store, and
// flag the session so reconciliation knows the record is unverified upstream.
func (s *service) createPayPalSession(ctx context.Context, token string, input SessionInput) (*types.PaymentSession, error) {
	order, err := s.api.CreatePayPalOrder(ctx, token, commerce.PayPalOrderParams{OrderID: input.OrderID})
	if err == nil {
		s.logger.Info(ctx, "paypal order minted upstream")
		return &types.PaymentSession{
			OrderID:         input.OrderID,
			Method:          types.PaymentMethodPayPal,
			ProviderOrderID: order.PayPalOrderID,
		}, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		return nil, err
	}

	s.logger.Warn(ctx, "commerce payment endpoint unreachable, entering direct creation")
	s.metrics.IncDegraded()

	providerOrderID, synthesized, directErr := s.mintDirectOrder(ctx, input)
	if directErr != nil {
		return nil, directErr
	}

	if parkErr := s.parkDirectRecord(ctx, input.SessionID, DirectRecord{
		ProviderOrderID: providerOrderID,
		OrderID:         input.OrderID,
		Synthesized:     synthesized,
	}); parkErr != nil {
		return nil, parkErr
	}

	return &types.PaymentSession{
		OrderID:         input.OrderID,
		Method:          types.PaymentMethodPayPal,
		ProviderOrderID: providerOrderID,
		DirectCreation:  true,
	}, nil
}

func (s *service) mintDirectOrder(ctx context.Context, input SessionInput) (string, bool, error) {
	if s.paypal != nil {
		id, err := s.paypal.CreateOrder(ctx, input.OrderID, s.checkout.Currency, input.Amount.StringFixed(2))
		if err != nil {
			return "", false, err
		}
		return id, false, nil
	}
	// No direct PayPal credentials either: a locally synthesized placeholder
	// keeps the button flow alive; reconciliation proceeds optimistically.
	return localOrderPrefix + uuid.NewString(), true, nil
}

func (s *service) parkDirectRecord(ctx context.Context, sessionID string, record DirectRecord) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id required for direct creation")
	}
	value := record.ProviderOrderID + "|" + record.OrderID + "|" + boolFlag(record.Synthesized)
	key := s.store.SessionKey(sessionID, directOrderField)
	if err := s.store.Set(ctx, key, value, s.sessionTTL()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "park direct creation record")
	}
	return nil
}

// LookupDirect resolves a parked degraded-mode record; nil when the session
// never entered direct creation.
func (s *service) LookupDirect(ctx context.Context, sessionID string) (*DirectRecord, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	key := s.store.SessionKey(sessionID, directOrderField)
	value, err := s.store.Get(ctx, key)
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup direct creation record")
	}
	parts := strings.SplitN(value, "|", 3)
	if len(parts) != 3 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "malformed direct creation record")
	}
	return &DirectRecord{
		ProviderOrderID: parts[0],
		OrderID:         parts[1],
		Synthesized:     parts[2] == "1",
	}, nil
}

func (s *service) Record(ctx context.Context, token, orderID string) (*types.PaymentRecord, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.api.GetPaymentByOrder(ctx, token, orderID)
}

// Config prefers the upstream's view of enabled providers. When the upstream
// cannot answer, the gateway falls back to its own credentials so the
// storefront can still render payment options; the fallback is logged.
func (s *service) Config(ctx context.Context, token string) (*types.PaymentConfig, error) {
	cfg, err := s.api.GetPaymentConfig(ctx, token)
	if err == nil {
		return cfg, nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		return nil, err
	}
	s.logger.Warn(ctx, "payment config unavailable upstream, serving local fallback")
	return &types.PaymentConfig{
		StripeEnabled:        s.stripe.PublishableKey != "",
		StripePublishableKey: s.stripe.PublishableKey,
		PayPalEnabled:        s.paypalCf.ClientID != "",
		PayPalClientID:       s.paypalCf.ClientID,
		Currency:             s.checkout.Currency,
	}, nil
}

func (s *service) sessionTTL() time.Duration {
	if s.checkout.SessionTTL > 0 {
		return s.checkout.SessionTTL
	}
	return 2 * time.Hour
}

func boolFlag(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
