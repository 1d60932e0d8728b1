package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/norwoodlabs/storefront-gateway/api/middleware"
	"github.com/norwoodlabs/storefront-gateway/api/responses"
	"github.com/norwoodlabs/storefront-gateway/api/validators"
	cartsvc "github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type cartResponse struct {
	Cart     types.Cart       `json:"cart"`
	Totals   types.CartTotals `json:"totals"`
	Degraded bool             `json:"degraded,omitempty"`
}

func newCartResponse(s *cartsvc.Snapshot) cartResponse {
	return cartResponse{Cart: s.Cart, Totals: s.Totals, Degraded: s.Degraded}
}

// CartGet returns the current cart snapshot. A degraded snapshot still
// renders with the marker set so the storefront can show a retry state
// instead of a false empty cart.
func CartGet(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Snapshot(r.Context(), middleware.TokenFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}

type addCartItemRequest struct {
	ProductRef string  `json:"product_ref" validate:"required"`
	Quantity   int     `json:"quantity" validate:"required,min=1"`
	Size       *string `json:"size,omitempty"`
	Color      *string `json:"color,omitempty"`
}

func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.AddItem(r.Context(), middleware.TokenFromContext(r.Context()), commerce.AddCartItemParams{
			ProductRef: payload.ProductRef,
			Quantity:   payload.Quantity,
			Size:       payload.Size,
			Color:      payload.Color,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(snapshot))
	}
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemId")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}

		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.UpdateItem(r.Context(), middleware.TokenFromContext(r.Context()), itemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemId")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id required"))
			return
		}

		snapshot, err := svc.RemoveItem(r.Context(), middleware.TokenFromContext(r.Context()), itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(snapshot))
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context(), middleware.TokenFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}
