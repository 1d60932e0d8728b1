// Package checkout owns the payment-orchestration state machine: placing an
// order, handing off to a provider, and handling the provider's return legs.
// Provider differences live behind the Adapter interface so the flow above
// never branches on method strings.
package checkout

import (
	"context"
	"fmt"

	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// ReturnParams carries the identifiers a provider return leg may arrive with.
// Which fields are set depends on the provider and on whether the attempt ran
// in direct-creation mode.
type ReturnParams struct {
	SessionID       string
	ProviderOrderID string
	OrderID         string
}

// Capture is the outcome of a provider return leg. Verified is false when the
// gateway could not observe provider-side settlement and proceeded
// optimistically; Suppressed is true when a post-capture confirmation failure
// was swallowed and journaled instead of surfaced.
type Capture struct {
	OrderID        string
	TransactionID  string
	DirectCreation bool
	Verified       bool
	Suppressed     bool
}

// Adapter is one provider's handshake implementation.
type Adapter interface {
	Method() types.PaymentMethod

	// CreateSession mints the provider handle for a drafted order.
	CreateSession(ctx context.Context, token string, order *types.Order, sessionID string) (*types.PaymentSession, error)

	// HandleReturn settles the provider leg on the success route. Capture
	// failures are user-visible; confirmation failures after a successful
	// capture are suppressed and journaled.
	HandleReturn(ctx context.Context, token string, ret ReturnParams) (*Capture, error)

	// HandleCancel is terminal and never an error; the cart stays intact so
	// the shopper can retry.
	HandleCancel(ctx context.Context, ret ReturnParams)
}

// Registry resolves adapters by typed method.
type Registry struct {
	adapters map[types.PaymentMethod]Adapter
}

// NewRegistry indexes the given adapters by method.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	indexed := make(map[types.PaymentMethod]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		if _, dup := indexed[a.Method()]; dup {
			return nil, fmt.Errorf("duplicate adapter for method %s", a.Method())
		}
		indexed[a.Method()] = a
	}
	return &Registry{adapters: indexed}, nil
}

// For returns the adapter handling the given method.
func (r *Registry) For(method types.PaymentMethod) (Adapter, bool) {
	a, ok := r.adapters[method]
	return a, ok
}
