package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is the direction of a ledger movement relative to the available balance.
type TxType string

const (
	TxTypeCredit TxType = "credit"
	TxTypeDebit  TxType = "debit"
)

// IsValid reports whether t is a known transaction type.
func (t TxType) IsValid() bool {
	return t == TxTypeCredit || t == TxTypeDebit
}

// ReferenceType names what caused a ledger movement.
type ReferenceType string

const (
	RefOrderSettlement  ReferenceType = "order_settlement"
	RefPayoutRequest    ReferenceType = "payout_request"
	RefPayoutReversal   ReferenceType = "payout_reversal"
	RefPayoutSettlement ReferenceType = "payout_settlement"
	RefFeeDeduction     ReferenceType = "fee_deduction"
	RefAdjustment       ReferenceType = "adjustment"
)

var validReferenceTypes = []ReferenceType{
	RefOrderSettlement,
	RefPayoutRequest,
	RefPayoutReversal,
	RefPayoutSettlement,
	RefFeeDeduction,
	RefAdjustment,
}

// IsValid reports whether r is a known reference type.
func (r ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into a ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}

// IsManualCredit reports whether r may be credited directly by an operator or
// an order settlement, as opposed to payout bookkeeping.
func (r ReferenceType) IsManualCredit() bool {
	return r == RefOrderSettlement || r == RefAdjustment
}

// IsManualDebit reports whether r may be debited directly by an operator.
func (r ReferenceType) IsManualDebit() bool {
	return r == RefFeeDeduction || r == RefAdjustment
}

// WalletTransaction is an immutable ledger entry. Corrections are new offsetting
// entries, never edits.
type WalletTransaction struct {
	ID            int64           `json:"id"`
	VendorID      uuid.UUID       `json:"vendor_id"`
	Type          TxType          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"` // available balance after applying this entry
	ReferenceType ReferenceType   `json:"reference_type"`
	ReferenceID   *string         `json:"reference_id,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}
