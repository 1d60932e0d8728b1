package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	ordersvc "github.com/norwoodlabs/storefront-gateway/internal/orders"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type stubOrdersService struct {
	ordersvc.Service

	list  *commerce.OrderList
	order *types.Order
	err   error

	page  int
	limit int
}

func (s *stubOrdersService) List(ctx context.Context, token string, page, limit int) (*commerce.OrderList, error) {
	s.page = page
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.list, nil
}

func (s *stubOrdersService) Get(ctx context.Context, token, orderID string) (*types.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, token, orderID string) (*types.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func orderRequest(t *testing.T, method, target, orderID string) *http.Request {
	t.Helper()
	req := authedRequest(method, target, "")
	routeCtx := chi.NewRouteContext()
	if orderID != "" {
		routeCtx.URLParams.Add("orderId", orderID)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestOrdersListDefaultsPaging(t *testing.T) {
	svc := &stubOrdersService{list: &commerce.OrderList{Orders: []types.Order{{ID: "order-1"}}, Total: 1, Page: 1, Limit: 20}}
	handler := OrdersList(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.page != 1 || svc.limit != 20 {
		t.Fatalf("expected default paging 1/20, got %d/%d", svc.page, svc.limit)
	}
}

func TestOrdersListRejectsBadPage(t *testing.T) {
	handler := OrdersList(&stubOrdersService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?page=zero", ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrdersListRejectsLimitAboveCap(t *testing.T) {
	handler := OrdersList(&stubOrdersService{}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/orders?limit=500", ""))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestOrdersGetSuccess(t *testing.T) {
	svc := &stubOrdersService{order: &types.Order{ID: "order-1", OrderNumber: "SO-1001"}}
	handler := OrdersGet(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, orderRequest(t, http.MethodGet, "/api/v1/orders/order-1", "order-1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOrdersGetNotFound(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	handler := OrdersGet(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, orderRequest(t, http.MethodGet, "/api/v1/orders/missing", "missing"))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestOrdersCancelStateConflict(t *testing.T) {
	svc := &stubOrdersService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer cancellable")}
	handler := OrdersCancel(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, orderRequest(t, http.MethodPost, "/api/v1/orders/order-1/cancel", "order-1"))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestOrdersCancelSuccess(t *testing.T) {
	svc := &stubOrdersService{order: &types.Order{ID: "order-1", Status: types.OrderStatusCancelled}}
	handler := OrdersCancel(svc, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, orderRequest(t, http.MethodPost, "/api/v1/orders/order-1/cancel", "order-1"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}
