package controllers

import (
	"net/http"

	"github.com/norwoodlabs/storefront-gateway/api/middleware"
	"github.com/norwoodlabs/storefront-gateway/api/responses"
	"github.com/norwoodlabs/storefront-gateway/api/validators"
	checkoutsvc "github.com/norwoodlabs/storefront-gateway/internal/checkout"
	"github.com/norwoodlabs/storefront-gateway/internal/reconcile"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// CheckoutSuccess is the provider return leg. Query contract, by provider:
// card sends session_id; paypal sends paypal_order_id plus order_id; a bare
// order_id alone also resolves. payment_method is optional; reconciliation
// infers the method from the identifiers when it is absent.
func CheckoutSuccess(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := reconcile.Params{
			SessionID:       validators.QueryString(r, "session_id"),
			Method:          types.PaymentMethod(validators.QueryString(r, "payment_method")),
			ProviderOrderID: validators.QueryString(r, "paypal_order_id"),
			OrderID:         validators.QueryString(r, "order_id"),
		}

		result, err := svc.Run(r.Context(), middleware.TokenFromContext(r.Context()), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CheckoutCancel acknowledges an abandoned provider handshake. Terminal,
// never an error, and the cart is left untouched for the next attempt.
func CheckoutCancel(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		method := types.PaymentMethod(validators.QueryString(r, "payment_method"))
		svc.Cancel(r.Context(), method, checkoutsvc.ReturnParams{
			SessionID:       validators.QueryString(r, "session_id"),
			ProviderOrderID: validators.QueryString(r, "paypal_order_id"),
			OrderID:         validators.QueryString(r, "order_id"),
		})
		responses.WriteSuccess(w, map[string]string{"status": "cancelled", "cart": "preserved"})
	}
}
