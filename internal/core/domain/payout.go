package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutStatus is the lifecycle state of a payout request.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusApproved   PayoutStatus = "approved"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRejected   PayoutStatus = "rejected"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// payoutTransitions is the complete forward state machine. Anything not listed is denied.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:    {PayoutStatusApproved, PayoutStatusRejected},
	PayoutStatusApproved:   {PayoutStatusProcessing},
	PayoutStatusProcessing: {PayoutStatusPaid, PayoutStatusFailed},
}

// IsValid reports whether s is a known status.
func (s PayoutStatus) IsValid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusProcessing,
		PayoutStatusPaid, PayoutStatusRejected, PayoutStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves s.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusPaid || s == PayoutStatusRejected || s == PayoutStatusFailed
}

// CanTransitionTo reports whether next directly follows s in the state machine.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	for _, candidate := range payoutTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// HoldsReservation reports whether a payout in status s still has funds in the
// vendor's pending bucket.
func (s PayoutStatus) HoldsReservation() bool {
	return s == PayoutStatusPending || s == PayoutStatusApproved || s == PayoutStatusProcessing
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	s := PayoutStatus(value)
	if !s.IsValid() {
		return "", fmt.Errorf("invalid payout status %q", value)
	}
	return s, nil
}

// PaymentMethodType is the payout rail.
type PaymentMethodType string

const (
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodUPI          PaymentMethodType = "upi"
)

// IsValid reports whether m is a supported rail.
func (m PaymentMethodType) IsValid() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodUPI
}

// PayoutRequest is a vendor's request to withdraw available funds.
type PayoutRequest struct {
	ID              uuid.UUID         `json:"id"`
	VendorID        uuid.UUID         `json:"vendor_id"`
	PaymentMethodID uuid.UUID         `json:"payment_method_id"`
	PaymentMethod   PaymentMethodType `json:"payment_method"`
	RequestedAmount decimal.Decimal   `json:"requested_amount"`
	ApprovedAmount  decimal.Decimal   `json:"approved_amount"`
	ProcessingFee   decimal.Decimal   `json:"processing_fee"`
	TDSAmount       decimal.Decimal   `json:"tds_amount"`
	OtherDeductions decimal.Decimal   `json:"other_deductions"`
	FinalAmount     decimal.Decimal   `json:"final_amount"`
	Status          PayoutStatus      `json:"status"`
	TransactionID   *string           `json:"transaction_id,omitempty"`
	ReferenceNumber *string           `json:"reference_number,omitempty"`
	IdempotencyKey  *string           `json:"idempotency_key,omitempty"`
	ConfigurationID int64             `json:"configuration_id"`
	ReservationID   int64             `json:"reservation_id"`
	ApprovedBy      *string           `json:"approved_by,omitempty"`
	ProcessedBy     *string           `json:"processed_by,omitempty"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	FailureReason   *string           `json:"failure_reason,omitempty"`
	AdminNotes      *string           `json:"admin_notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ApprovedAt      *time.Time        `json:"approved_at,omitempty"`
	ProcessingAt    *time.Time        `json:"processing_at,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	RejectedAt      *time.Time        `json:"rejected_at,omitempty"`
	FailedAt        *time.Time        `json:"failed_at,omitempty"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ReservedAmount is what currently sits in the vendor's pending bucket for this payout.
// Before approval it is the requested amount; afterwards the approved amount.
func (p *PayoutRequest) ReservedAmount() decimal.Decimal {
	if p.ApprovedAt != nil {
		return p.ApprovedAmount
	}
	return p.RequestedAmount
}

// FeeBreakdown is the monetary result of approving a payout.
type FeeBreakdown struct {
	ApprovedAmount  decimal.Decimal `json:"approved_amount"`
	ProcessingFee   decimal.Decimal `json:"processing_fee"`
	TDSAmount       decimal.Decimal `json:"tds_amount"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
	FinalAmount     decimal.Decimal `json:"final_amount"`
}

// PayoutFilter narrows payout listings.
type PayoutFilter struct {
	VendorID *uuid.UUID
	Status   *PayoutStatus
	Page     int
	PageSize int
}
