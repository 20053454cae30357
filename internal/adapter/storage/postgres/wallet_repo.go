package postgres

import (
	"context"
	"errors"
	"fmt"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `vendor_id, total_earnings, total_payouts, pending_balance, available_balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a zero-balance wallet. An existing wallet is left untouched.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.VendorWallet) error {
	query := `INSERT INTO vendor_wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (vendor_id) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		w.VendorID, w.TotalEarnings, w.TotalPayouts, w.PendingBalance,
		w.AvailableBalance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByVendorID fetches a wallet without locking. Returns nil, nil when absent.
func (r *WalletRepo) GetByVendorID(ctx context.Context, vendorID uuid.UUID) (*domain.VendorWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM vendor_wallets WHERE vendor_id = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, vendorID))
}

// GetByVendorIDForUpdate fetches a wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM vendor_wallets WHERE vendor_id = $1 FOR UPDATE`
	return scanWallet(tx.QueryRow(ctx, query, vendorID))
}

// UpdateBalances writes all four balance buckets within a transaction.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.VendorWallet) error {
	query := `UPDATE vendor_wallets
		SET total_earnings = $1, total_payouts = $2, pending_balance = $3, available_balance = $4, updated_at = $5
		WHERE vendor_id = $6`

	tag, err := tx.Exec(ctx, query,
		w.TotalEarnings, w.TotalPayouts, w.PendingBalance, w.AvailableBalance, w.UpdatedAt, w.VendorID,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.VendorID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.VendorWallet, error) {
	w := &domain.VendorWallet{}
	err := row.Scan(
		&w.VendorID, &w.TotalEarnings, &w.TotalPayouts, &w.PendingBalance,
		&w.AvailableBalance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
