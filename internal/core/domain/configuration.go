package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutConfiguration is one immutable version of the payout rules.
// Exactly one version is active at a time.
type PayoutConfiguration struct {
	ID                       int64           `json:"id"`
	MinPayoutAmount          decimal.Decimal `json:"min_payout_amount"`
	MaxPayoutAmount          decimal.Decimal `json:"max_payout_amount"`
	DailyPayoutLimit         decimal.Decimal `json:"daily_payout_limit"`
	MonthlyPayoutLimit       decimal.Decimal `json:"monthly_payout_limit"`
	ProcessingFeePercentage  decimal.Decimal `json:"processing_fee_percentage"` // fraction, 0.005 = 0.5%
	ProcessingFeeFixed       decimal.Decimal `json:"processing_fee_fixed"`
	TDSPercentage            decimal.Decimal `json:"tds_percentage"` // fraction
	AutoApprovalLimit        decimal.Decimal `json:"auto_approval_limit"`
	KYCRequiredForPayouts    bool            `json:"kyc_required_for_payouts"`
	BankVerificationRequired bool            `json:"bank_verification_required"`
	IsActive                 bool            `json:"is_active"`
	CreatedBy                string          `json:"created_by"`
	CreatedAt                time.Time       `json:"created_at"`
}

// Validate checks the internal consistency of a configuration version.
func (c *PayoutConfiguration) Validate() error {
	amounts := []decimal.Decimal{
		c.MinPayoutAmount, c.MaxPayoutAmount, c.DailyPayoutLimit, c.MonthlyPayoutLimit,
		c.ProcessingFeePercentage, c.ProcessingFeeFixed, c.TDSPercentage, c.AutoApprovalLimit,
	}
	for _, a := range amounts {
		if a.IsNegative() {
			return errors.New("configuration values must not be negative")
		}
	}
	if !c.MaxPayoutAmount.IsPositive() {
		return errors.New("max payout amount must be positive")
	}
	if c.MinPayoutAmount.GreaterThan(c.MaxPayoutAmount) {
		return errors.New("min payout amount exceeds max payout amount")
	}
	if c.MonthlyPayoutLimit.IsPositive() && c.DailyPayoutLimit.GreaterThan(c.MonthlyPayoutLimit) {
		return errors.New("daily payout limit exceeds monthly payout limit")
	}
	if c.ProcessingFeePercentage.GreaterThanOrEqual(decimal.NewFromInt(1)) ||
		c.TDSPercentage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("percentages must be fractions below 1")
	}
	return nil
}

// InRange reports whether amount is within [min, max].
func (c *PayoutConfiguration) InRange(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(c.MinPayoutAmount) && amount.LessThanOrEqual(c.MaxPayoutAmount)
}

// QualifiesForAutoApproval reports whether amount may skip manual review.
// A zero limit disables auto-approval.
func (c *PayoutConfiguration) QualifiesForAutoApproval(amount decimal.Decimal) bool {
	return c.AutoApprovalLimit.IsPositive() && amount.LessThanOrEqual(c.AutoApprovalLimit)
}

// ComputeFees derives fee, TDS and final amount for an approved amount.
// Each component is rounded to the currency unit before subtraction so the
// breakdown always sums exactly.
func (c *PayoutConfiguration) ComputeFees(approved, otherDeductions decimal.Decimal) FeeBreakdown {
	fee := RoundMoney(approved.Mul(c.ProcessingFeePercentage).Add(c.ProcessingFeeFixed))
	tds := RoundMoney(approved.Mul(c.TDSPercentage))
	other := RoundMoney(otherDeductions)
	return FeeBreakdown{
		ApprovedAmount:  approved,
		ProcessingFee:   fee,
		TDSAmount:       tds,
		OtherDeductions: other,
		FinalAmount:     approved.Sub(fee).Sub(tds).Sub(other),
	}
}
