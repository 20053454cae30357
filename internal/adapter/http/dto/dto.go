package dto

import "github.com/shopspring/decimal"

// CreatePayoutRequest is the request body for a vendor payout request.
// The Idempotency-Key header is read separately.
type CreatePayoutRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"money"`
	PaymentMethodID string          `json:"payment_method_id" binding:"required,uuid"`
}

// ApprovePayoutRequest is the request body for approval. An omitted or zero
// approved_amount approves the full requested amount.
type ApprovePayoutRequest struct {
	ApprovedAmount  decimal.Decimal `json:"approved_amount" binding:"nonneg_money"`
	OtherDeductions decimal.Decimal `json:"other_deductions" binding:"nonneg_money"`
	Notes           string          `json:"notes" binding:"max=500"`
}

// ReasonRequest is the request body for reject and fail.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

// MarkPaidRequest is the request body for confirming a bank transfer.
type MarkPaidRequest struct {
	TransactionID   string `json:"transaction_id" binding:"required,max=100,safe_id"`
	ReferenceNumber string `json:"reference_number" binding:"omitempty,max=100,safe_id"`
}

// LedgerEntryRequest is the request body for an operator credit or debit.
type LedgerEntryRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"money"`
	ReferenceType string          `json:"reference_type" binding:"required,oneof=order_settlement adjustment fee_deduction"`
	ReferenceID   string          `json:"reference_id" binding:"omitempty,max=100,safe_id"`
	Description   string          `json:"description" binding:"max=255"`
}

// ConfigurationRequest is the request body for activating a new payout
// configuration version. Percentages are fractions (0.01 is 1%).
type ConfigurationRequest struct {
	MinPayoutAmount          decimal.Decimal `json:"min_payout_amount" binding:"nonneg_money"`
	MaxPayoutAmount          decimal.Decimal `json:"max_payout_amount" binding:"money"`
	DailyPayoutLimit         decimal.Decimal `json:"daily_payout_limit" binding:"nonneg_money"`
	MonthlyPayoutLimit       decimal.Decimal `json:"monthly_payout_limit" binding:"nonneg_money"`
	ProcessingFeePercentage  decimal.Decimal `json:"processing_fee_percentage" binding:"fraction"`
	ProcessingFeeFixed       decimal.Decimal `json:"processing_fee_fixed" binding:"nonneg_money"`
	TDSPercentage            decimal.Decimal `json:"tds_percentage" binding:"fraction"`
	AutoApprovalLimit        decimal.Decimal `json:"auto_approval_limit" binding:"nonneg_money"`
	KYCRequiredForPayouts    bool            `json:"kyc_required_for_payouts"`
	BankVerificationRequired bool            `json:"bank_verification_required"`
}

// PaymentMethodSyncRequest is pushed by the payment-method verification service.
type PaymentMethodSyncRequest struct {
	MethodType         string `json:"method_type" binding:"required,oneof=bank_transfer upi"`
	DisplayName        string `json:"display_name" binding:"max=255"`
	VerificationStatus string `json:"verification_status" binding:"required,oneof=pending verified rejected"`
}

// KYCStatusRequest records a vendor's KYC outcome.
type KYCStatusRequest struct {
	Verified *bool `json:"kyc_verified" binding:"required"`
}

// PageQuery is the common pagination query.
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// PayoutListQuery filters payout listings.
type PayoutListQuery struct {
	PageQuery
	Status   string `form:"status" binding:"omitempty,oneof=pending approved processing paid rejected failed"`
	VendorID string `form:"vendor_id" binding:"omitempty,uuid"`
}

// HistoryQuery limits configuration history.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}
