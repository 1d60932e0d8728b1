package checkout

import (
	"context"

	"github.com/norwoodlabs/storefront-gateway/internal/payments"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// SessionVerifier checks provider-side settlement of a hosted checkout
// session. Nil when the gateway runs without a direct Stripe key.
type SessionVerifier interface {
	SessionPaid(ctx context.Context, sessionID string) (bool, error)
}

// stripeAdapter hands the whole page to Stripe's hosted checkout. The return
// leg only has the session id; capture already happened on Stripe's side, so
// HandleReturn verifies rather than captures.
type stripeAdapter struct {
	payments payments.Service
	verifier SessionVerifier
	logger   *logger.Logger
}

// NewStripeAdapter builds the card adapter. verifier may be nil; the return
// leg then proceeds without provider-side verification.
func NewStripeAdapter(paymentsSvc payments.Service, verifier SessionVerifier, logg *logger.Logger) Adapter {
	return &stripeAdapter{payments: paymentsSvc, verifier: verifier, logger: logg}
}

func (a *stripeAdapter) Method() types.PaymentMethod {
	return types.PaymentMethodCard
}

func (a *stripeAdapter) CreateSession(ctx context.Context, token string, order *types.Order, sessionID string) (*types.PaymentSession, error) {
	return a.payments.CreateSession(ctx, token, payments.SessionInput{
		SessionID: sessionID,
		OrderID:   order.ID,
		Method:    types.PaymentMethodCard,
		Amount:    order.Totals.Total,
	})
}

func (a *stripeAdapter) HandleReturn(ctx context.Context, token string, ret ReturnParams) (*Capture, error) {
	capture := &Capture{OrderID: ret.OrderID}

	if a.verifier == nil || ret.SessionID == "" {
		a.logger.Warn(ctx, "stripe return without verification, proceeding optimistically")
		return capture, nil
	}

	paid, err := a.verifier.SessionPaid(ctx, ret.SessionID)
	if err != nil {
		// Verification is best effort: Stripe already redirected here after
		// its own capture, so a lookup failure does not block the shopper.
		a.logger.Warn(ctx, "stripe session verification failed, proceeding optimistically")
		return capture, nil
	}
	if !paid {
		return nil, pkgerrors.New(pkgerrors.CodeProvider, "checkout session is not paid")
	}
	capture.Verified = true
	return capture, nil
}

func (a *stripeAdapter) HandleCancel(ctx context.Context, ret ReturnParams) {
	a.logger.Info(ctx, "stripe checkout cancelled by shopper, cart preserved")
}
