package cart

import (
	"context"
	"io"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type stubAPI struct {
	commerce.API

	cart       *types.Cart
	getErr     error
	clearErr   error
	clearCalls int
}

func (s *stubAPI) GetCart(ctx context.Context, token string) (*types.Cart, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.cart, nil
}

func (s *stubAPI) ClearCart(ctx context.Context, token string) error {
	s.clearCalls++
	return s.clearErr
}

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		TaxRate:               "0.10",
		FreeShippingThreshold: "100",
		FlatShippingFee:       "10",
	}
}

func newTestService(t *testing.T, api commerce.API) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(api, testPricing(), logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func mustDecimal(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return d
}

func TestSnapshotDerivesTotalsBelowFreeShippingThreshold(t *testing.T) {
	t.Parallel()

	api := &stubAPI{cart: &types.Cart{
		ID: "cart-1",
		Lines: []types.CartLine{
			{ItemID: "i1", ProductRef: "p1", Quantity: 2, UnitPrice: mustDecimal(t, "29.99")},
		},
	}}
	svc := newTestService(t, api)

	snapshot, err := svc.Snapshot(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Degraded {
		t.Fatal("snapshot should not be degraded")
	}

	if !snapshot.Totals.Subtotal.Equal(mustDecimal(t, "59.98")) {
		t.Fatalf("subtotal = %s, want 59.98", snapshot.Totals.Subtotal)
	}
	if !snapshot.Totals.Tax.Equal(mustDecimal(t, "5.998")) {
		t.Fatalf("tax = %s, want 5.998", snapshot.Totals.Tax)
	}
	if !snapshot.Totals.Shipping.Equal(mustDecimal(t, "10")) {
		t.Fatalf("shipping = %s, want 10 (subtotal below threshold)", snapshot.Totals.Shipping)
	}
	if !snapshot.Totals.Total.Equal(mustDecimal(t, "75.978")) {
		t.Fatalf("total = %s, want 75.978", snapshot.Totals.Total)
	}
}

func TestSnapshotWaivesShippingAboveThreshold(t *testing.T) {
	t.Parallel()

	api := &stubAPI{cart: &types.Cart{
		ID: "cart-1",
		Lines: []types.CartLine{
			{ItemID: "i1", ProductRef: "p1", Quantity: 1, UnitPrice: mustDecimal(t, "150")},
		},
	}}
	svc := newTestService(t, api)

	snapshot, err := svc.Snapshot(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.Totals.Shipping.IsZero() {
		t.Fatalf("shipping = %s, want 0 above threshold", snapshot.Totals.Shipping)
	}
	want := mustDecimal(t, "150").Add(mustDecimal(t, "15"))
	if !snapshot.Totals.Total.Equal(want) {
		t.Fatalf("total = %s, want %s (subtotal + tax only)", snapshot.Totals.Total, want)
	}
}

func TestSnapshotPrefersUpstreamTotals(t *testing.T) {
	t.Parallel()

	upstream := types.CartTotals{
		Subtotal: mustDecimal(t, "59.98"),
		Shipping: mustDecimal(t, "4.50"),
		Tax:      mustDecimal(t, "3.00"),
		Discount: mustDecimal(t, "5.00"),
		Total:    mustDecimal(t, "62.48"),
	}
	api := &stubAPI{cart: &types.Cart{
		ID: "cart-1",
		Lines: []types.CartLine{
			{ItemID: "i1", Quantity: 2, UnitPrice: mustDecimal(t, "29.99")},
		},
		Totals: &upstream,
	}}
	svc := newTestService(t, api)

	snapshot, err := svc.Snapshot(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snapshot.Totals.Total.Equal(upstream.Total) {
		t.Fatalf("total = %s, want the upstream value %s", snapshot.Totals.Total, upstream.Total)
	}
	if !snapshot.Totals.Shipping.Equal(upstream.Shipping) {
		t.Fatal("upstream totals must not be recomputed")
	}
}

func TestSnapshotDegradedOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	api := &stubAPI{getErr: pkgerrors.New(pkgerrors.CodeUpstream, "boom")}
	svc := newTestService(t, api)

	snapshot, err := svc.Snapshot(context.Background(), "tok")
	if err != nil {
		t.Fatalf("degraded snapshot should not error: %v", err)
	}
	if !snapshot.Degraded {
		t.Fatal("expected degraded marker")
	}
	if !snapshot.Empty() {
		t.Fatal("degraded snapshot must report empty")
	}
	if !snapshot.Totals.Total.IsZero() {
		t.Fatalf("degraded totals must be zero, got %s", snapshot.Totals.Total)
	}
}

func TestClearSwallowsNotFound(t *testing.T) {
	t.Parallel()

	api := &stubAPI{clearErr: pkgerrors.New(pkgerrors.CodeNotFound, "cart already empty")}
	svc := newTestService(t, api)

	if err := svc.Clear(context.Background(), "tok"); err != nil {
		t.Fatalf("clearing an empty cart must be a no-op, got %v", err)
	}
	if api.clearCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", api.clearCalls)
	}
}

func TestClearPropagatesUpstreamFailure(t *testing.T) {
	t.Parallel()

	api := &stubAPI{clearErr: pkgerrors.New(pkgerrors.CodeUpstream, "boom")}
	svc := newTestService(t, api)

	if err := svc.Clear(context.Background(), "tok"); !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected UPSTREAM_ERROR, got %v", err)
	}
}
