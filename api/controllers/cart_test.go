package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/api/middleware"
	cartsvc "github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type stubCartService struct {
	cartsvc.Service

	snapshot *cartsvc.Snapshot
	err      error
	cleared  bool
}

func (s *stubCartService) Snapshot(ctx context.Context, token string) (*cartsvc.Snapshot, error) {
	return s.snapshot, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, token string, params commerce.AddCartItemParams) (*cartsvc.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snapshot, nil
}

func (s *stubCartService) Clear(ctx context.Context, token string) error {
	s.cleared = true
	return s.err
}

func filledCartSnapshot() *cartsvc.Snapshot {
	return &cartsvc.Snapshot{
		Cart: types.Cart{
			ID:    "cart-1",
			Lines: []types.CartLine{{ItemID: "i1", Quantity: 2, UnitPrice: decimal.NewFromFloat(29.99)}},
		},
		Totals: types.CartTotals{Total: decimal.NewFromFloat(75.98)},
	}
}

func authedRequest(method, target string, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithToken(req.Context(), "tok"))
}

func TestCartGetSuccess(t *testing.T) {
	handler := CartGet(&stubCartService{snapshot: filledCartSnapshot()}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Cart.ID != "cart-1" {
		t.Fatalf("unexpected cart id %q", envelope.Data.Cart.ID)
	}
	if envelope.Data.Degraded {
		t.Fatal("healthy snapshot must not be marked degraded")
	}
}

func TestCartGetDegradedStillRenders(t *testing.T) {
	handler := CartGet(&stubCartService{snapshot: &cartsvc.Snapshot{Degraded: true}}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodGet, "/api/v1/cart", ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Degraded {
		t.Fatal("degraded marker must pass through to the client")
	}
}

func TestCartAddItemValidatesBody(t *testing.T) {
	handler := CartAddItem(&stubCartService{snapshot: filledCartSnapshot()}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", `{"quantity":0}`))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestCartAddItemSuccess(t *testing.T) {
	handler := CartAddItem(&stubCartService{snapshot: filledCartSnapshot()}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodPost, "/api/v1/cart/items", `{"product_ref":"p1","quantity":2}`))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
}

func TestCartClearUpstreamErrorMapped(t *testing.T) {
	handler := CartClear(&stubCartService{err: pkgerrors.New(pkgerrors.CodeUpstream, "cart endpoint down")}, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, authedRequest(http.MethodDelete, "/api/v1/cart", ""))

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", resp.Code)
	}
}
