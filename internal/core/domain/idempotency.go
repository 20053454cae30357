package domain

import (
	"github.com/google/uuid"
)

// BuildPayoutIdempotencyKey scopes a client-supplied key to the vendor.
func BuildPayoutIdempotencyKey(vendorID uuid.UUID, clientKey string) string {
	return vendorID.String() + ":payout:" + clientKey
}
