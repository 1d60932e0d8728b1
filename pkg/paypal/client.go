package paypal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/plutov/paypal/v4"

	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
)

const (
	sandboxEnv = "sandbox"
	liveEnv    = "live"
)

var (
	errClientIDRequired = errors.New("paypal client id is required")
	errSecretRequired   = errors.New("paypal client secret is required")
	errInvalidEnv       = fmt.Errorf("paypal environment must be %q or %q", sandboxEnv, liveEnv)
)

// Client wraps the PayPal Orders API for the degraded direct-creation path:
// when the commerce API cannot mint or capture a provider order, the gateway
// talks to PayPal itself and reconciles optimistically afterwards.
type Client struct {
	sdk         *paypal.Client
	environment string
	logger      *logger.Logger
}

// NewClient validates the credentials and builds the PayPal wrapper.
func NewClient(ctx context.Context, cfg config.PayPalConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errClientIDRequired
	}
	secret := strings.TrimSpace(cfg.ClientSecret)
	if secret == "" {
		return nil, errSecretRequired
	}

	base := paypal.APIBaseSandBox
	if env == liveEnv {
		base = paypal.APIBaseLive
	}

	sdk, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	if _, err := sdk.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("paypal access token: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("paypal client initialized (%s)", env))
	}

	return &Client{
		sdk:         sdk,
		environment: env,
		logger:      logg,
	}, nil
}

// Environment reports the normalized PayPal environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateOrder mints a capture-intent PayPal order for the given amount. The
// reference id ties the provider order back to the gateway's order.
func (c *Client) CreateOrder(ctx context.Context, referenceID, currency, amount string) (string, error) {
	if c == nil || c.sdk == nil {
		return "", pkgerrors.New(pkgerrors.CodeProvider, "paypal client not configured")
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: referenceID,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    amount,
		},
	}}

	order, err := c.sdk.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		if c.logger != nil {
			c.logger.Error(ctx, "paypal create order", err)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeProvider, err, "create paypal order")
	}
	return order.ID, nil
}

// CaptureOrder finalizes an approved PayPal order into a charge. Returns the
// capture transaction id.
func (c *Client) CaptureOrder(ctx context.Context, providerOrderID string) (string, error) {
	if c == nil || c.sdk == nil {
		return "", pkgerrors.New(pkgerrors.CodeProvider, "paypal client not configured")
	}
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "paypal order id required")
	}

	capture, err := c.sdk.CaptureOrder(ctx, providerOrderID, paypal.CaptureOrderRequest{})
	if err != nil {
		if c.logger != nil {
			c.logger.Error(ctx, "paypal capture order", err)
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeProvider, err, "capture paypal order")
	}
	if capture.Status != "COMPLETED" {
		return "", pkgerrors.New(pkgerrors.CodeProvider, fmt.Sprintf("capture ended in status %s", capture.Status))
	}

	for _, unit := range capture.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			if c.ID != "" {
				return c.ID, nil
			}
		}
	}
	return capture.ID, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
