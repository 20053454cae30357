package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const payoutColumns = `id, vendor_id, payment_method_id, payment_method, requested_amount, approved_amount,
	processing_fee, tds_amount, other_deductions, final_amount, status, transaction_id, reference_number,
	idempotency_key, configuration_id, reservation_id, approved_by, processed_by, rejection_reason,
	failure_reason, admin_notes, created_at, approved_at, processing_at, paid_at, rejected_at, failed_at, updated_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a new payout request within a transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `INSERT INTO payout_requests (` + payoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28)`

	_, err := tx.Exec(ctx, query, payoutArgs(p)...)
	if err != nil {
		return fmt.Errorf("insert payout request: %w", err)
	}
	return nil
}

// GetByID fetches a payout without locking. Returns nil, nil when absent.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1`
	return scanPayout(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a payout with pessimistic locking.
// This MUST be called within a transaction.
func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE id = $1 FOR UPDATE`
	return scanPayout(tx.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey finds the vendor's payout created with key. Returns nil, nil when absent.
func (r *PayoutRepo) GetByIdempotencyKey(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests WHERE vendor_id = $1 AND idempotency_key = $2`
	return scanPayout(tx.QueryRow(ctx, query, vendorID, key))
}

// Update persists every mutable column of a payout within a transaction.
func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	query := `UPDATE payout_requests SET
		approved_amount = $1, processing_fee = $2, tds_amount = $3, other_deductions = $4, final_amount = $5,
		status = $6, transaction_id = $7, reference_number = $8, approved_by = $9, processed_by = $10,
		rejection_reason = $11, failure_reason = $12, admin_notes = $13, approved_at = $14, processing_at = $15,
		paid_at = $16, rejected_at = $17, failed_at = $18, updated_at = $19
		WHERE id = $20`

	tag, err := tx.Exec(ctx, query,
		p.ApprovedAmount, p.ProcessingFee, p.TDSAmount, p.OtherDeductions, p.FinalAmount,
		p.Status, p.TransactionID, p.ReferenceNumber, p.ApprovedBy, p.ProcessedBy,
		p.RejectionReason, p.FailureReason, p.AdminNotes, p.ApprovedAt, p.ProcessingAt,
		p.PaidAt, p.RejectedAt, p.FailedAt, p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout request not found: %s", p.ID)
	}
	return nil
}

// SumRequestedSince totals the vendor's requested amounts since the given instant,
// skipping payouts whose funds went back to the wallet.
func (r *PayoutRepo) SumRequestedSince(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(requested_amount), 0) FROM payout_requests
		WHERE vendor_id = $1 AND created_at >= $2 AND status NOT IN ('rejected', 'failed')`

	var sum decimal.Decimal
	if err := tx.QueryRow(ctx, query, vendorID, since).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum requested payouts: %w", err)
	}
	return sum, nil
}

// List fetches payouts with filtering and pagination, newest first.
func (r *PayoutRepo) List(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutRequest, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("vendor_id = $%d", argIdx))
		args = append(args, *filter.VendorID)
		argIdx++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM payout_requests %s", where), args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count payout requests: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM payout_requests %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		payoutColumns, where, argIdx, argIdx+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payout requests: %w", err)
	}
	payouts, err := collectPayoutRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return payouts, total, nil
}

// ListPendingBefore returns up to limit pending payouts created before the cutoff, oldest first.
func (r *PayoutRepo) ListPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.PayoutRequest, error) {
	query := `SELECT ` + payoutColumns + ` FROM payout_requests
		WHERE status = 'pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payouts: %w", err)
	}
	return collectPayoutRows(rows)
}

func payoutArgs(p *domain.PayoutRequest) []any {
	return []any{
		p.ID, p.VendorID, p.PaymentMethodID, p.PaymentMethod, p.RequestedAmount, p.ApprovedAmount,
		p.ProcessingFee, p.TDSAmount, p.OtherDeductions, p.FinalAmount, p.Status, p.TransactionID, p.ReferenceNumber,
		p.IdempotencyKey, p.ConfigurationID, p.ReservationID, p.ApprovedBy, p.ProcessedBy, p.RejectionReason,
		p.FailureReason, p.AdminNotes, p.CreatedAt, p.ApprovedAt, p.ProcessingAt, p.PaidAt, p.RejectedAt, p.FailedAt, p.UpdatedAt,
	}
}

func payoutDest(p *domain.PayoutRequest) []any {
	return []any{
		&p.ID, &p.VendorID, &p.PaymentMethodID, &p.PaymentMethod, &p.RequestedAmount, &p.ApprovedAmount,
		&p.ProcessingFee, &p.TDSAmount, &p.OtherDeductions, &p.FinalAmount, &p.Status, &p.TransactionID, &p.ReferenceNumber,
		&p.IdempotencyKey, &p.ConfigurationID, &p.ReservationID, &p.ApprovedBy, &p.ProcessedBy, &p.RejectionReason,
		&p.FailureReason, &p.AdminNotes, &p.CreatedAt, &p.ApprovedAt, &p.ProcessingAt, &p.PaidAt, &p.RejectedAt, &p.FailedAt, &p.UpdatedAt,
	}
}

func scanPayout(row pgx.Row) (*domain.PayoutRequest, error) {
	p := &domain.PayoutRequest{}
	if err := row.Scan(payoutDest(p)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payout request: %w", err)
	}
	return p, nil
}

func collectPayoutRows(rows pgx.Rows) ([]domain.PayoutRequest, error) {
	defer rows.Close()

	var payouts []domain.PayoutRequest
	for rows.Next() {
		p := domain.PayoutRequest{}
		if err := rows.Scan(payoutDest(&p)...); err != nil {
			return nil, fmt.Errorf("scan payout request row: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout request rows: %w", err)
	}
	return payouts, nil
}
