package orders

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/norwoodlabs/storefront-gateway/internal/cart"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// Service creates and reads orders through the commerce API. Creation is
// collapsed per checkout attempt so a double-submitted request reaches the
// upstream at most once; replay across separate requests is handled by the
// idempotency middleware in front of the controller.
type Service interface {
	CreateDraft(ctx context.Context, token, attemptKey string, input DraftInput) (*types.Order, error)
	List(ctx context.Context, token string, page, limit int) (*commerce.OrderList, error)
	Get(ctx context.Context, token, orderID string) (*types.Order, error)
	Cancel(ctx context.Context, token, orderID string) (*types.Order, error)
}

type service struct {
	api     commerce.API
	cartSvc cart.Service
	group   singleflight.Group
	logger  *logger.Logger
}

// NewService builds the orders service.
func NewService(api commerce.API, cartSvc cart.Service, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("commerce api required")
	}
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, cartSvc: cartSvc, logger: logg}, nil
}

// CreateDraft validates input, checks the cart, and persists the order.
// Validation failures never reach the network. The attempt key collapses
// concurrent duplicates into one upstream call.
func (s *service) CreateDraft(ctx context.Context, token, attemptKey string, input DraftInput) (*types.Order, error) {
	if err := ValidateShippingAddress(input.ShippingAddress); err != nil {
		return nil, err
	}
	if strings.TrimSpace(attemptKey) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout attempt key required")
	}

	snapshot, err := s.cartSvc.Snapshot(ctx, token)
	if err != nil {
		return nil, err
	}
	if snapshot.Degraded {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "cart unavailable, cannot start checkout")
	}
	if snapshot.Empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	// The group is process-wide, so the key carries the caller's token;
	// two users reusing the same attempt key must not share one flight.
	result, err, _ := s.group.Do(token+"|"+attemptKey, func() (any, error) {
		order, err := s.api.CreateOrder(ctx, token, commerce.CreateOrderParams{
			ShippingAddress: input.ShippingAddress,
			Notes:           input.Notes,
		})
		if err != nil {
			return nil, err
		}
		ctx = s.logger.WithOrderID(ctx, order.ID)
		s.logger.Info(ctx, "order draft created")
		return order, nil
	})
	if err != nil {
		// Forget failed attempts so a retry with the same key can try again.
		s.group.Forget(attemptKey)
		return nil, err
	}
	return result.(*types.Order), nil
}

func (s *service) List(ctx context.Context, token string, page, limit int) (*commerce.OrderList, error) {
	return s.api.ListOrders(ctx, token, page, limit)
}

func (s *service) Get(ctx context.Context, token, orderID string) (*types.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.api.GetOrder(ctx, token, orderID)
}

// Cancel refuses client-side when the order has progressed past the
// cancellable states so the user gets a crisp error without an upstream
// mutation attempt.
func (s *service) Cancel(ctx context.Context, token, orderID string) (*types.Order, error) {
	order, err := s.Get(ctx, token, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}
	return s.api.CancelOrder(ctx, token, orderID)
}
