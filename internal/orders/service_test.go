package orders

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

type stubAPI struct {
	commerce.API

	createCalls atomic.Int64
	createDelay time.Duration
	createErr   error
	order       *types.Order
	cancelErr   error
}

func (s *stubAPI) CreateOrder(ctx context.Context, token string, params commerce.CreateOrderParams) (*types.Order, error) {
	s.createCalls.Add(1)
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.order, nil
}

func (s *stubAPI) GetOrder(ctx context.Context, token, orderID string) (*types.Order, error) {
	return s.order, nil
}

func (s *stubAPI) CancelOrder(ctx context.Context, token, orderID string) (*types.Order, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	cancelled := *s.order
	cancelled.Status = types.OrderStatusCancelled
	return &cancelled, nil
}

type stubCart struct {
	cart.Service

	snapshot *cart.Snapshot
}

func (s *stubCart) Snapshot(ctx context.Context, token string) (*cart.Snapshot, error) {
	return s.snapshot, nil
}

func validAddress() types.ShippingAddress {
	return types.ShippingAddress{
		FullName:   "Dana Quinn",
		Line1:      "12 Main St",
		City:       "Springfield",
		State:      "OR",
		PostalCode: "97477",
		Country:    "US",
	}
}

func filledSnapshot() *cart.Snapshot {
	return &cart.Snapshot{
		Cart: types.Cart{
			ID:    "cart-1",
			Lines: []types.CartLine{{ItemID: "i1", Quantity: 1, UnitPrice: decimal.NewFromInt(20)}},
		},
	}
}

func newTestService(t *testing.T, api commerce.API, cartSvc cart.Service) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(api, cartSvc, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateDraftValidationNeverHitsNetwork(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1"}}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	addr := validAddress()
	addr.PostalCode = " "
	_, err := svc.CreateDraft(context.Background(), "tok", "attempt-1", DraftInput{ShippingAddress: addr})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if api.createCalls.Load() != 0 {
		t.Fatal("validation failure must not reach the upstream")
	}
}

func TestCreateDraftRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1"}}
	svc := newTestService(t, api, &stubCart{snapshot: &cart.Snapshot{}})

	_, err := svc.CreateDraft(context.Background(), "tok", "attempt-1", DraftInput{ShippingAddress: validAddress()})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for empty cart, got %v", err)
	}
}

func TestCreateDraftRejectsDegradedCartDistinctly(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1"}}
	svc := newTestService(t, api, &stubCart{snapshot: &cart.Snapshot{Degraded: true}})

	_, err := svc.CreateDraft(context.Background(), "tok", "attempt-1", DraftInput{ShippingAddress: validAddress()})
	if !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		t.Fatalf("degraded cart must not read as empty cart, got %v", err)
	}
}

func TestCreateDraftCollapsesConcurrentDuplicates(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1"}, createDelay: 20 * time.Millisecond}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.CreateDraft(context.Background(), "tok", "attempt-1", DraftInput{ShippingAddress: validAddress()})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if order.ID != "ord-1" {
				t.Errorf("unexpected order id %q", order.ID)
			}
		}()
	}
	wg.Wait()

	if got := api.createCalls.Load(); got != 1 {
		t.Fatalf("expected a single upstream create, got %d", got)
	}
}

func TestCreateDraftDoesNotCollapseAcrossUsers(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1"}, createDelay: 20 * time.Millisecond}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	var wg sync.WaitGroup
	for _, token := range []string{"token-user-a", "token-user-b"} {
		token := token
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateDraft(context.Background(), token, "attempt-1", DraftInput{ShippingAddress: validAddress()}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := api.createCalls.Load(); got != 2 {
		t.Fatalf("expected one upstream create per user, got %d", got)
	}
}

func TestCreateDraftFailedAttemptCanRetry(t *testing.T) {
	t.Parallel()

	api := &stubAPI{createErr: pkgerrors.New(pkgerrors.CodeUpstream, "boom")}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	_, err := svc.CreateDraft(context.Background(), "tok", "attempt-2", DraftInput{ShippingAddress: validAddress()})
	if !pkgerrors.Is(err, pkgerrors.CodeUpstream) {
		t.Fatalf("expected UPSTREAM_ERROR, got %v", err)
	}

	api.createErr = nil
	api.order = &types.Order{ID: "ord-2"}
	order, err := svc.CreateDraft(context.Background(), "tok", "attempt-2", DraftInput{ShippingAddress: validAddress()})
	if err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if order.ID != "ord-2" {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if api.createCalls.Load() != 2 {
		t.Fatalf("expected two upstream calls, got %d", api.createCalls.Load())
	}
}

func TestCancelRefusesNonCancellableStatus(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1", Status: types.OrderStatusShipped}}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	_, err := svc.Cancel(context.Background(), "tok", "ord-1")
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	t.Parallel()

	api := &stubAPI{order: &types.Order{ID: "ord-1", Status: types.OrderStatusPending}}
	svc := newTestService(t, api, &stubCart{snapshot: filledSnapshot()})

	order, err := svc.Cancel(context.Background(), "tok", "ord-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != types.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
}
