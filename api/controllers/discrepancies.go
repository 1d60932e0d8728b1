package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/norwoodlabs/storefront-gateway/api/responses"
	"github.com/norwoodlabs/storefront-gateway/api/validators"
	"github.com/norwoodlabs/storefront-gateway/internal/journal"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
)

// AdminDiscrepancies lists the most recent payment discrepancies, newest
// first. This is the follow-up queue for captures the commerce API never
// acknowledged.
func AdminDiscrepancies(rdr journal.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := rdr.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

type orderDiscrepancyCount struct {
	OrderID string `json:"order_id"`
	Count   int64  `json:"count"`
}

func AdminOrderDiscrepancyCount(rdr journal.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderId")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		count, err := rdr.CountByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderDiscrepancyCount{OrderID: orderID, Count: count})
	}
}
