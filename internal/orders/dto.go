package orders

import (
	"strings"

	pkgerrors "github.com/norwoodlabs/storefront-gateway/pkg/errors"
	"github.com/norwoodlabs/storefront-gateway/pkg/types"
)

// DraftInput carries everything needed to persist an order upstream.
type DraftInput struct {
	ShippingAddress types.ShippingAddress
	Notes           string
}

// ValidateShippingAddress presence-checks every required field before any
// network call. Field names in the details map match the JSON wire names.
func ValidateShippingAddress(addr types.ShippingAddress) error {
	missing := map[string]string{}
	for field, value := range map[string]string{
		"full_name":   addr.FullName,
		"line1":       addr.Line1,
		"city":        addr.City,
		"state":       addr.State,
		"postal_code": addr.PostalCode,
		"country":     addr.Country,
	} {
		if strings.TrimSpace(value) == "" {
			missing[field] = "is required"
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").WithDetails(missing)
	}
	return nil
}
