package checkout

import (
	"context"
	"strings"

	"github.com/norwoodlabs/storefront-gateway/internal/journal"
	"github.com/norwoodlabs/storefront-gateway/internal/payments"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// OrderCapturer settles a PayPal order directly against the provider in
// degraded mode. Nil when the gateway runs without PayPal credentials.
type OrderCapturer interface {
	CaptureOrder(ctx context.Context, providerOrderID string) (string, error)
}

// paypalAdapter runs the approve-and-capture handshake. The error contract is
// asymmetric: a capture failure surfaces to the shopper, a confirmation
// failure after the provider captured funds does not. The latter is recorded
// in the discrepancy journal for follow-up.
type paypalAdapter struct {
	api      commerce.API
	payments payments.Service
	capturer OrderCapturer
	journal  journal.Recorder
	logger   *logger.Logger
}

// NewPayPalAdapter builds the PayPal adapter. capturer may be nil; degraded
// attempts with a synthesized placeholder then skip provider-side capture.
func NewPayPalAdapter(api commerce.API, paymentsSvc payments.Service, capturer OrderCapturer, rec journal.Recorder, logg *logger.Logger) Adapter {
	return &paypalAdapter{api: api, payments: paymentsSvc, capturer: capturer, journal: rec, logger: logg}
}

func (a *paypalAdapter) Method() types.PaymentMethod {
	return types.PaymentMethodPayPal
}

func (a *paypalAdapter) CreateSession(ctx context.Context, token string, order *types.Order, sessionID string) (*types.PaymentSession, error) {
	return a.payments.CreateSession(ctx, token, payments.SessionInput{
		SessionID: sessionID,
		OrderID:   order.ID,
		Method:    types.PaymentMethodPayPal,
		Amount:    order.Totals.Total,
	})
}

func (a *paypalAdapter) HandleReturn(ctx context.Context, token string, ret ReturnParams) (*Capture, error) {
	if strings.TrimSpace(ret.ProviderOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id required")
	}

	direct, err := a.payments.LookupDirect(ctx, ret.SessionID)
	if err != nil {
		return nil, err
	}
	if direct != nil && direct.ProviderOrderID == ret.ProviderOrderID {
		return a.settleDirect(ctx, token, ret, direct)
	}
	return a.settleUpstream(ctx, token, ret)
}

// settleUpstream is the normal path: one commerce call captures at PayPal and
// marks the order paid. Its failure is the shopper's problem to retry.
func (a *paypalAdapter) settleUpstream(ctx context.Context, token string, ret ReturnParams) (*Capture, error) {
	record, err := a.api.CapturePayPalOrder(ctx, token, commerce.CapturePayPalParams{
		PayPalOrderID: ret.ProviderOrderID,
		OrderID:       ret.OrderID,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info(ctx, "paypal order captured upstream")
	return &Capture{
		OrderID:       record.OrderID,
		TransactionID: record.TransactionID,
		Verified:      true,
	}, nil
}

// settleDirect handles an attempt that started in direct-creation mode. Funds
// are captured against PayPal itself when possible; telling the commerce API
// afterwards is a confirmation, and its failure is suppressed and journaled.
func (a *paypalAdapter) settleDirect(ctx context.Context, token string, ret ReturnParams, direct *payments.DirectRecord) (*Capture, error) {
	ctx = a.logger.WithOrderID(ctx, direct.OrderID)
	capture := &Capture{
		OrderID:        direct.OrderID,
		DirectCreation: true,
	}

	if !direct.Synthesized && a.capturer != nil {
		txID, err := a.capturer.CaptureOrder(ctx, ret.ProviderOrderID)
		if err != nil {
			return nil, err
		}
		capture.TransactionID = txID
		capture.Verified = true
		a.logger.Info(ctx, "paypal order captured directly against provider")
	} else {
		a.logger.Warn(ctx, "direct creation attempt without capturable provider order, proceeding optimistically")
	}

	record, err := a.api.CapturePayPalOrder(ctx, token, commerce.CapturePayPalParams{
		PayPalOrderID:  ret.ProviderOrderID,
		OrderID:        direct.OrderID,
		DirectCreation: true,
	})
	if err != nil {
		if capture.Verified {
			// Funds moved and the upstream does not know. Shopper sees
			// success; operators see the journal.
			a.logger.Error(ctx, "capture confirmed by provider but commerce api rejected it", err)
			if recErr := a.journal.Record(ctx, journal.Discrepancy{
				OrderID:         direct.OrderID,
				SessionID:       ret.SessionID,
				Method:          string(types.PaymentMethodPayPal),
				ProviderOrderID: ret.ProviderOrderID,
				TransactionID:   capture.TransactionID,
				Stage:           journal.StageCaptureConfirm,
				Detail:          err.Error(),
			}); recErr != nil {
				a.logger.Error(ctx, "journal write failed", recErr)
			}
			capture.Suppressed = true
			return capture, nil
		}
		return nil, err
	}

	if record.TransactionID != "" {
		capture.TransactionID = record.TransactionID
	}
	return capture, nil
}

func (a *paypalAdapter) HandleCancel(ctx context.Context, ret ReturnParams) {
	a.logger.Info(ctx, "paypal approval cancelled by shopper, cart preserved")
}
