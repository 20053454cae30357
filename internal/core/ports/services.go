package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// JobLock guards a background job so only one instance runs it at a time.
type JobLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// TokenService validates identity tokens issued by the identity provider.
type TokenService interface {
	Generate(subject uuid.UUID, role Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// Role is the caller's role as asserted by the identity provider.
type Role string

const (
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// TokenClaims holds the parsed identity claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    Role
}

// NotificationDispatcher receives payout events after commit. Delivery is
// best-effort and never affects the committed transition.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event domain.PayoutEvent)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the vendor wallet ledger.
type LedgerService interface {
	EnsureWallet(ctx context.Context, vendorID uuid.UUID) (*domain.VendorWallet, error)
	Credit(ctx context.Context, req LedgerEntryRequest) (*domain.WalletTransaction, error)
	Debit(ctx context.Context, req LedgerEntryRequest) (*domain.WalletTransaction, error)
	ReserveForPayout(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) (int64, error)
	ReleaseReservation(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) error
	SettleReservation(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) error
	GetBalance(ctx context.Context, vendorID uuid.UUID) (*domain.Balance, error)
	ListTransactions(ctx context.Context, vendorID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	Reconcile(ctx context.Context, vendorID uuid.UUID) (*ReconciliationReport, error)
}

// LedgerEntryRequest holds validated input for a direct credit or debit.
type LedgerEntryRequest struct {
	VendorID      uuid.UUID
	Amount        decimal.Decimal
	ReferenceType domain.ReferenceType
	ReferenceID   *string
	Description   string
}

// ReconciliationReport compares the wallet row with a replay of its ledger.
type ReconciliationReport struct {
	VendorID     uuid.UUID      `json:"vendor_id"`
	Entries      int            `json:"entries"`
	Stored       domain.Balance `json:"stored"`
	Replayed     domain.Balance `json:"replayed"`
	Consistent   bool           `json:"consistent"`
	Conserved    bool           `json:"conserved"`
	BrokenChain  []int64        `json:"broken_chain,omitempty"` // entries whose balance_after disagrees with replay
	ReconciledAt time.Time      `json:"reconciled_at"`
}

// PayoutService is the payout engine.
type PayoutService interface {
	CreateRequest(ctx context.Context, req CreatePayoutRequest) (*domain.PayoutRequest, error)
	Approve(ctx context.Context, req ApprovePayoutRequest) (*domain.PayoutRequest, error)
	Reject(ctx context.Context, payoutID uuid.UUID, adminID string, reason string) (*domain.PayoutRequest, error)
	MarkProcessing(ctx context.Context, payoutID uuid.UUID, adminID string) (*domain.PayoutRequest, error)
	MarkPaid(ctx context.Context, payoutID uuid.UUID, adminID string, transactionID string, referenceNumber string) (*domain.PayoutRequest, error)
	MarkFailed(ctx context.Context, payoutID uuid.UUID, adminID string, reason string) (*domain.PayoutRequest, error)
	GetPayout(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutRequest, error)
	ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutRequest, int64, error)
	GetAuditTrail(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error)
	ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// CreatePayoutRequest holds validated input for payout creation.
type CreatePayoutRequest struct {
	VendorID        uuid.UUID
	Amount          decimal.Decimal
	PaymentMethodID uuid.UUID
	IdempotencyKey  string // optional
}

// ApprovePayoutRequest holds validated input for approval. A zero ApprovedAmount
// approves the full requested amount.
type ApprovePayoutRequest struct {
	PayoutID        uuid.UUID
	AdminID         string
	ApprovedAmount  decimal.Decimal
	OtherDeductions decimal.Decimal
	Notes           string
}

// ConfigurationService is the configuration store.
type ConfigurationService interface {
	GetActiveConfiguration(ctx context.Context) (*domain.PayoutConfiguration, error)
	GetConfiguration(ctx context.Context, id int64) (*domain.PayoutConfiguration, error)
	UpdateConfiguration(ctx context.Context, adminID string, values ConfigurationValues) (*domain.PayoutConfiguration, error)
	ListConfigurationHistory(ctx context.Context, limit int) ([]domain.PayoutConfiguration, error)
}

// ConfigurationValues holds the admin-editable fields of a configuration version.
type ConfigurationValues struct {
	MinPayoutAmount          decimal.Decimal
	MaxPayoutAmount          decimal.Decimal
	DailyPayoutLimit         decimal.Decimal
	MonthlyPayoutLimit       decimal.Decimal
	ProcessingFeePercentage  decimal.Decimal
	ProcessingFeeFixed       decimal.Decimal
	TDSPercentage            decimal.Decimal
	AutoApprovalLimit        decimal.Decimal
	KYCRequiredForPayouts    bool
	BankVerificationRequired bool
}

// VendorDirectoryService mirrors payout destinations and KYC status pushed by
// the verification service.
type VendorDirectoryService interface {
	SyncPaymentMethod(ctx context.Context, m domain.PaymentMethod) (*domain.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, vendorID, id uuid.UUID) (*domain.PaymentMethod, error)
	SetKYCStatus(ctx context.Context, vendorID uuid.UUID, verified bool) error
}

// AuditService appends to and reads the payout audit log.
type AuditService interface {
	// Record appends inside the caller's transaction. An error must abort the transition.
	Record(ctx context.Context, tx pgx.Tx, entry *domain.PayoutAuditEntry) error
	// RecordFailure appends a standalone entry for a failed attempt. Errors are logged.
	RecordFailure(ctx context.Context, entry *domain.PayoutAuditEntry)
	Trail(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error)
}
