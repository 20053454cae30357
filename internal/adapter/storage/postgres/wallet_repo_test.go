package postgres

import (
	"context"
	"testing"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet() *domain.VendorWallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	w := domain.NewVendorWallet(uuid.New(), now)
	w.TotalEarnings = decimal.RequireFromString("2000.00")
	w.AvailableBalance = decimal.RequireFromString("500.00")
	w.PendingBalance = decimal.RequireFromString("1500.00")
	return w
}

func walletRow(w *domain.VendorWallet) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"vendor_id", "total_earnings", "total_payouts", "pending_balance", "available_balance", "created_at", "updated_at",
	}).AddRow(
		w.VendorID, w.TotalEarnings, w.TotalPayouts, w.PendingBalance,
		w.AvailableBalance, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := domain.NewVendorWallet(uuid.New(), time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO vendor_wallets").
		WithArgs(w.VendorID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByVendorID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectQuery("SELECT .+ FROM vendor_wallets WHERE vendor_id").
		WithArgs(w.VendorID).
		WillReturnRows(walletRow(w))

	got, err := repo.GetByVendorID(context.Background(), w.VendorID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AvailableBalance.Equal(w.AvailableBalance))
	assert.True(t, got.PendingBalance.Equal(w.PendingBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByVendorID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM vendor_wallets WHERE vendor_id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"vendor_id"}))

	got, err := repo.GetByVendorID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByVendorIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM vendor_wallets WHERE vendor_id = .+ FOR UPDATE").
		WithArgs(w.VendorID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByVendorIDForUpdate(context.Background(), tx, w.VendorID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.VendorID, got.VendorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalances(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE vendor_wallets").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), w.UpdatedAt, w.VendorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateBalances(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalances_Missing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE vendor_wallets").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), w.UpdatedAt, w.VendorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalances(context.Background(), tx, w)
	assert.ErrorContains(t, err, "wallet not found")
}
