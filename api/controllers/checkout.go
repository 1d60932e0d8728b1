package controllers

import (
	"net/http"
	"strings"

	"github.com/norwoodlabs/storefront-gateway/api/middleware"
	"github.com/norwoodlabs/storefront-gateway/api/responses"
	"github.com/norwoodlabs/storefront-gateway/api/validators"
	checkoutsvc "github.com/norwoodlabs/storefront-gateway/internal/checkout"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

const checkoutSessionHeader = "X-Checkout-Session"

type placeOrderRequest struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	Notes           string                `json:"notes,omitempty"`
	PaymentMethod   string                `json:"payment_method" validate:"required,oneof=card paypal"`
}

// CheckoutPlaceOrder drafts the order and mints the provider handle. The
// Idempotency-Key doubles as the attempt key so retries of the same submission
// collapse to one order.
func CheckoutPlaceOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attemptKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		result, err := svc.PlaceOrder(
			r.Context(),
			middleware.TokenFromContext(r.Context()),
			attemptKey,
			checkoutSessionID(r),
			checkoutsvc.PlaceOrderInput{
				ShippingAddress: payload.ShippingAddress,
				Notes:           payload.Notes,
				Method:          types.PaymentMethod(payload.PaymentMethod),
			},
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type paypalApproveRequest struct {
	PayPalOrderID   string                `json:"paypal_order_id" validate:"required"`
	OrderID         string                `json:"order_id,omitempty"`
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
}

// CheckoutPayPalApprove is the onApprove leg: capture the approved PayPal
// order and confirm it upstream.
func CheckoutPayPalApprove(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload paypalApproveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		capture, err := svc.ApprovePayPal(
			r.Context(),
			middleware.TokenFromContext(r.Context()),
			checkoutSessionID(r),
			checkoutsvc.ApproveInput{
				PayPalOrderID:   payload.PayPalOrderID,
				OrderID:         payload.OrderID,
				ShippingAddress: payload.ShippingAddress,
			},
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, capture)
	}
}

// checkoutSessionID scopes degraded-mode records and reconciliation guards.
// The storefront sends a stable id per checkout attempt; without one the
// authenticated user is the next best scope.
func checkoutSessionID(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get(checkoutSessionHeader)); sid != "" {
		return sid
	}
	return middleware.UserIDFromContext(r.Context())
}
