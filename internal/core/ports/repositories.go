package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for vendor wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.VendorWallet) error
	GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*domain.VendorWallet, error)
	GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorWallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.VendorWallet) error
}

// LedgerRepository persists the append-only wallet transaction log.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.WalletTransaction) error
	ListByVendor(ctx context.Context, vendorID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error)
	// ListAllByVendor returns every entry for the vendor in id order, for replay.
	ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error)
}

// PayoutRepository defines persistence operations for payout requests.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error)
	GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error)
	Update(ctx context.Context, tx pgx.Tx, payout *domain.PayoutRequest) error
	// SumRequestedSince totals requested amounts of the vendor's payouts created at or
	// after since, excluding payouts whose funds were returned (rejected, failed).
	SumRequestedSince(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error)
	List(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutRequest, int64, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.PayoutRequest, error)
}

// AuditRepository persists payout audit entries.
type AuditRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.PayoutAuditEntry) error
	// CreateStandalone appends outside any business transaction (failure paths).
	CreateStandalone(ctx context.Context, entry *domain.PayoutAuditEntry) error
	ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error)
}

// ConfigurationRepository persists versioned payout configuration.
type ConfigurationRepository interface {
	GetActive(ctx context.Context) (*domain.PayoutConfiguration, error)
	GetByID(ctx context.Context, id int64) (*domain.PayoutConfiguration, error)
	// Activate deactivates the current version and inserts cfg as the new active one.
	Activate(ctx context.Context, tx pgx.Tx, cfg *domain.PayoutConfiguration) error
	List(ctx context.Context, limit int) ([]domain.PayoutConfiguration, error)
}

// PaymentMethodRepository is the local read model of the payment-method
// verification service. Upsert is fed by the verification sync endpoint.
type PaymentMethodRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)
	Upsert(ctx context.Context, m *domain.PaymentMethod) error
}

// VendorKYCRepository records vendor KYC completion.
type VendorKYCRepository interface {
	IsVerified(ctx context.Context, vendorID uuid.UUID) (bool, error)
	SetVerified(ctx context.Context, vendorID uuid.UUID, verified bool, at time.Time) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
