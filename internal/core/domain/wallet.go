package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the number of decimal places every stored amount is rounded to.
const CurrencyPlaces int32 = 2

// MinorUnit is the smallest currency unit, used as the rounding tolerance for invariants.
var MinorUnit = decimal.New(1, -CurrencyPlaces)

// RoundMoney rounds half away from zero to CurrencyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyPlaces)
}

// VendorWallet is the materialized balance projection of a vendor's ledger.
// It is a cache of the wallet_transactions log and is only mutated by the ledger.
type VendorWallet struct {
	VendorID         uuid.UUID       `json:"vendor_id"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	TotalPayouts     decimal.Decimal `json:"total_payouts"`
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewVendorWallet returns a zero-balance wallet for the vendor.
func NewVendorWallet(vendorID uuid.UUID, now time.Time) *VendorWallet {
	return &VendorWallet{
		VendorID:         vendorID,
		TotalEarnings:    decimal.Zero,
		TotalPayouts:     decimal.Zero,
		PendingBalance:   decimal.Zero,
		AvailableBalance: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Balance is the read-only view returned to callers.
type Balance struct {
	VendorID      uuid.UUID       `json:"vendor_id"`
	Available     decimal.Decimal `json:"available"`
	Pending       decimal.Decimal `json:"pending"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`
	TotalPayouts  decimal.Decimal `json:"total_payouts"`
}

// Balance returns the wallet's balance view.
func (w *VendorWallet) Balance() Balance {
	return Balance{
		VendorID:      w.VendorID,
		Available:     w.AvailableBalance,
		Pending:       w.PendingBalance,
		TotalEarnings: w.TotalEarnings,
		TotalPayouts:  w.TotalPayouts,
	}
}

// IsConserved reports whether available + pending + payouts equals earnings
// within one minor unit and no bucket is negative.
func (w *VendorWallet) IsConserved() bool {
	if w.AvailableBalance.IsNegative() || w.PendingBalance.IsNegative() {
		return false
	}
	sum := w.AvailableBalance.Add(w.PendingBalance).Add(w.TotalPayouts)
	return sum.Sub(w.TotalEarnings).Abs().LessThan(MinorUnit)
}

// Equal compares the four balance buckets.
func (w *VendorWallet) Equal(o *VendorWallet) bool {
	return w.AvailableBalance.Equal(o.AvailableBalance) &&
		w.PendingBalance.Equal(o.PendingBalance) &&
		w.TotalEarnings.Equal(o.TotalEarnings) &&
		w.TotalPayouts.Equal(o.TotalPayouts)
}

// Apply mutates the wallet according to a ledger entry and stamps BalanceAfter.
// It returns ErrLedgerUnderflow if a bucket would go negative and
// ErrUnsupportedLedgerEntry for a type/reference combination the ledger never writes.
func (w *VendorWallet) Apply(tx *WalletTransaction) error {
	a := tx.Amount
	next := *w

	switch {
	case tx.Type == TxTypeCredit && (tx.ReferenceType == RefOrderSettlement || tx.ReferenceType == RefAdjustment):
		next.AvailableBalance = next.AvailableBalance.Add(a)
		next.TotalEarnings = next.TotalEarnings.Add(a)
	case tx.Type == TxTypeDebit && (tx.ReferenceType == RefAdjustment || tx.ReferenceType == RefFeeDeduction):
		next.AvailableBalance = next.AvailableBalance.Sub(a)
		next.TotalEarnings = next.TotalEarnings.Sub(a)
	case tx.Type == TxTypeDebit && tx.ReferenceType == RefPayoutRequest:
		next.AvailableBalance = next.AvailableBalance.Sub(a)
		next.PendingBalance = next.PendingBalance.Add(a)
	case tx.Type == TxTypeCredit && tx.ReferenceType == RefPayoutReversal:
		next.AvailableBalance = next.AvailableBalance.Add(a)
		next.PendingBalance = next.PendingBalance.Sub(a)
	case tx.Type == TxTypeDebit && tx.ReferenceType == RefPayoutSettlement:
		next.PendingBalance = next.PendingBalance.Sub(a)
		next.TotalPayouts = next.TotalPayouts.Add(a)
	default:
		return ErrUnsupportedLedgerEntry
	}

	if next.AvailableBalance.IsNegative() || next.PendingBalance.IsNegative() || next.TotalEarnings.IsNegative() {
		return ErrLedgerUnderflow
	}

	w.AvailableBalance = next.AvailableBalance
	w.PendingBalance = next.PendingBalance
	w.TotalEarnings = next.TotalEarnings
	w.TotalPayouts = next.TotalPayouts
	tx.BalanceAfter = w.AvailableBalance
	return nil
}

// Replay rebuilds a wallet from its transaction log, in the order given.
func Replay(vendorID uuid.UUID, txs []WalletTransaction) (*VendorWallet, error) {
	w := NewVendorWallet(vendorID, time.Time{})
	for i := range txs {
		entry := txs[i]
		if err := w.Apply(&entry); err != nil {
			return nil, err
		}
	}
	return w, nil
}
