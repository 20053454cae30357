package postgres

import (
	"context"
	"fmt"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumns = `id, vendor_id, type, amount, balance_after, reference_type, reference_id, description, created_at`

// LedgerRepo implements ports.LedgerRepository over wallet_transactions.
// Rows are never updated or deleted.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry within a transaction and stores the generated id on e.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions
		(vendor_id, type, amount, balance_after, reference_type, reference_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		e.VendorID, e.Type, e.Amount, e.BalanceAfter,
		e.ReferenceType, e.ReferenceID, e.Description, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByVendor returns a page of the vendor's entries, newest first.
func (r *LedgerRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE vendor_id = $1`, vendorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + ledgerColumns + ` FROM wallet_transactions
		WHERE vendor_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, vendorID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	entries, err := collectLedgerRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListAllByVendor returns every entry for the vendor in append order.
func (r *LedgerRepo) ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM wallet_transactions WHERE vendor_id = $1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, vendorID)
	if err != nil {
		return nil, fmt.Errorf("list all wallet transactions: %w", err)
	}
	return collectLedgerRows(rows)
}

func collectLedgerRows(rows pgx.Rows) ([]domain.WalletTransaction, error) {
	defer rows.Close()

	var entries []domain.WalletTransaction
	for rows.Next() {
		e := domain.WalletTransaction{}
		err := rows.Scan(
			&e.ID, &e.VendorID, &e.Type, &e.Amount, &e.BalanceAfter,
			&e.ReferenceType, &e.ReferenceID, &e.Description, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return entries, nil
}
