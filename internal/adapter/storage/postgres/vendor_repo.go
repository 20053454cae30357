package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentMethodRepo implements ports.PaymentMethodRepository over the verification
// service's read model.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// GetByID fetches a payment method. Returns nil, nil when absent.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT id, vendor_id, method_type, display_name, verification_status, created_at
		FROM vendor_payment_methods WHERE id = $1`

	m := &domain.PaymentMethod{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.VendorID, &m.MethodType, &m.DisplayName, &m.VerificationStatus, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment method: %w", err)
	}
	return m, nil
}

// Upsert inserts or refreshes a payment method. A row owned by another vendor is
// left untouched and reported as an error.
func (r *PaymentMethodRepo) Upsert(ctx context.Context, m *domain.PaymentMethod) error {
	query := `INSERT INTO vendor_payment_methods (id, vendor_id, method_type, display_name, verification_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			method_type = EXCLUDED.method_type,
			display_name = EXCLUDED.display_name,
			verification_status = EXCLUDED.verification_status
		WHERE vendor_payment_methods.vendor_id = EXCLUDED.vendor_id`

	tag, err := r.pool.Exec(ctx, query,
		m.ID, m.VendorID, m.MethodType, m.DisplayName, m.VerificationStatus, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment method %s belongs to another vendor", m.ID)
	}
	return nil
}

// VendorKYCRepo implements ports.VendorKYCRepository.
type VendorKYCRepo struct {
	pool Pool
}

// NewVendorKYCRepo creates a new VendorKYCRepo.
func NewVendorKYCRepo(pool Pool) *VendorKYCRepo {
	return &VendorKYCRepo{pool: pool}
}

// IsVerified reports whether the vendor has completed KYC. Unknown vendors are not verified.
func (r *VendorKYCRepo) IsVerified(ctx context.Context, vendorID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM vendor_kyc WHERE vendor_id = $1 AND status = 'verified')`

	var verified bool
	if err := r.pool.QueryRow(ctx, query, vendorID).Scan(&verified); err != nil {
		return false, fmt.Errorf("check vendor kyc: %w", err)
	}
	return verified, nil
}

// SetVerified records the vendor's KYC outcome. verified_at is cleared when KYC is revoked.
func (r *VendorKYCRepo) SetVerified(ctx context.Context, vendorID uuid.UUID, verified bool, at time.Time) error {
	query := `INSERT INTO vendor_kyc (vendor_id, status, verified_at) VALUES ($1, $2, $3)
		ON CONFLICT (vendor_id) DO UPDATE SET status = EXCLUDED.status, verified_at = EXCLUDED.verified_at`

	status := "pending"
	var verifiedAt *time.Time
	if verified {
		status = "verified"
		verifiedAt = &at
	}
	if _, err := r.pool.Exec(ctx, query, vendorID, status, verifiedAt); err != nil {
		return fmt.Errorf("set vendor kyc: %w", err)
	}
	return nil
}
