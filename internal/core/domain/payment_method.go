package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus is the state of a payout destination as reported by the
// payment-method verification service.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// IsValid reports whether s is a known verification state.
func (s VerificationStatus) IsValid() bool {
	return s == VerificationPending || s == VerificationVerified || s == VerificationRejected
}

// PaymentMethod is a vendor's payout destination.
type PaymentMethod struct {
	ID                 uuid.UUID          `json:"id"`
	VendorID           uuid.UUID          `json:"vendor_id"`
	MethodType         PaymentMethodType  `json:"method_type"`
	DisplayName        string             `json:"display_name"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// IsVerified returns true once the destination has been verified.
func (m *PaymentMethod) IsVerified() bool {
	return m.VerificationStatus == VerificationVerified
}

// BelongsTo reports whether the destination is owned by vendorID.
func (m *PaymentMethod) BelongsTo(vendorID uuid.UUID) bool {
	return m.VendorID == vendorID
}
