package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWallet(t *testing.T, s *Store, available string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	vendorID := uuid.New()
	w := domain.NewVendorWallet(vendorID, time.Now())
	w.AvailableBalance = decimal.RequireFromString(available)
	w.TotalEarnings = w.AvailableBalance

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, NewWalletRepo(s).Create(ctx, tx, w))
	require.NoError(t, tx.Commit(ctx))
	return vendorID
}

func TestStore_RollbackRestoresState(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "100.00")
	wallets, ledger := NewWalletRepo(s), NewLedgerRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	w, err := wallets.GetByVendorIDForUpdate(ctx, tx, vendorID)
	require.NoError(t, err)
	entry := &domain.WalletTransaction{VendorID: vendorID, Type: domain.TxTypeDebit, ReferenceType: domain.RefPayoutRequest, Amount: decimal.RequireFromString("40")}
	require.NoError(t, w.Apply(entry))
	require.NoError(t, ledger.Append(ctx, tx, entry))
	require.NoError(t, wallets.UpdateBalances(ctx, tx, w))

	require.NoError(t, tx.Rollback(ctx))

	got, err := wallets.GetByVendorID(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, got.AvailableBalance.Equal(decimal.RequireFromString("100")))
	entries, err := ledger.ListAllByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RollbackAfterCommitIsClosed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	_, err = NewWalletRepo(s).GetByVendorIDForUpdate(ctx, tx, uuid.New())
	assert.ErrorIs(t, err, pgx.ErrTxClosed)
}

func TestStore_RowLockSerializesWriters(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "0")
	wallets := NewWalletRepo(s)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback(ctx) //nolint:errcheck

			_, err = wallets.GetByVendorIDForUpdate(ctx, tx, vendorID)
			require.NoError(t, err)

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			require.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestStore_LockHonoursContext(t *testing.T) {
	s := NewStore()
	vendorID := seedWallet(t, s, "0")
	wallets := NewWalletRepo(s)

	holder, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = wallets.GetByVendorIDForUpdate(context.Background(), holder, vendorID)
	require.NoError(t, err)
	defer holder.Rollback(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = wallets.GetByVendorIDForUpdate(ctx, waiter, vendorID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPayoutRepo_IdempotencyKeyUniquePerVendor(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "0")
	payouts := NewPayoutRepo(s)
	key := "REQ-1"

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, payouts.Create(ctx, tx, &domain.PayoutRequest{ID: uuid.New(), VendorID: vendorID, IdempotencyKey: &key, Status: domain.PayoutStatusPending}))
	err = payouts.Create(ctx, tx, &domain.PayoutRequest{ID: uuid.New(), VendorID: vendorID, IdempotencyKey: &key, Status: domain.PayoutStatusPending})
	assert.Error(t, err)

	other := uuid.New()
	assert.NoError(t, payouts.Create(ctx, tx, &domain.PayoutRequest{ID: uuid.New(), VendorID: other, IdempotencyKey: &key, Status: domain.PayoutStatusPending}))

	found, err := payouts.GetByIdempotencyKey(ctx, tx, vendorID, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, vendorID, found.VendorID)
	require.NoError(t, tx.Commit(ctx))
}

func TestPayoutRepo_SumRequestedSinceSkipsReturnedFunds(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "0")
	payouts := NewPayoutRepo(s)
	now := time.Now()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, p := range []domain.PayoutRequest{
		{ID: uuid.New(), VendorID: vendorID, RequestedAmount: decimal.NewFromInt(100), Status: domain.PayoutStatusPending, CreatedAt: now},
		{ID: uuid.New(), VendorID: vendorID, RequestedAmount: decimal.NewFromInt(200), Status: domain.PayoutStatusRejected, CreatedAt: now},
		{ID: uuid.New(), VendorID: vendorID, RequestedAmount: decimal.NewFromInt(300), Status: domain.PayoutStatusPaid, CreatedAt: now},
		{ID: uuid.New(), VendorID: vendorID, RequestedAmount: decimal.NewFromInt(400), Status: domain.PayoutStatusPaid, CreatedAt: now.Add(-48 * time.Hour)},
	} {
		p := p
		require.NoError(t, payouts.Create(ctx, tx, &p))
	}

	sum, err := payouts.SumRequestedSince(ctx, tx, vendorID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(400)), "got %s", sum)
	require.NoError(t, tx.Commit(ctx))
}

func TestPayoutRepo_ListNewestFirstWithPaging(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "0")
	payouts := NewPayoutRepo(s)

	var ids []uuid.UUID
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		p := &domain.PayoutRequest{ID: uuid.New(), VendorID: vendorID, Status: domain.PayoutStatusPending, CreatedAt: time.Now()}
		require.NoError(t, payouts.Create(ctx, tx, p))
		ids = append(ids, p.ID)
	}
	require.NoError(t, tx.Commit(ctx))

	page, total, err := payouts.List(ctx, domain.PayoutFilter{VendorID: &vendorID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, _, err = payouts.List(ctx, domain.PayoutFilter{VendorID: &vendorID, Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)
}

func TestConfigurationRepo_ActivateKeepsSingleActive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	configs := NewConfigurationRepo(s)

	for i := 0; i < 2; i++ {
		tx, err := s.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, configs.Activate(ctx, tx, &domain.PayoutConfiguration{CreatedBy: "admin"}))
		require.NoError(t, tx.Commit(ctx))
	}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, configs.Activate(ctx, tx, &domain.PayoutConfiguration{CreatedBy: "admin"}))
	require.NoError(t, tx.Rollback(ctx))

	active, err := configs.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, int64(2), active.ID)

	history, err := configs.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	activeCount := 0
	for _, c := range history {
		if c.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestStore_PaymentMethodsAndKYC(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := uuid.New()
	m := domain.PaymentMethod{ID: uuid.New(), VendorID: vendorID, VerificationStatus: domain.VerificationVerified}
	s.PutPaymentMethod(m)
	s.SetKYCVerified(vendorID, true)

	got, err := NewPaymentMethodRepo(s).GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.IsVerified())

	missing, err := NewPaymentMethodRepo(s).GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := NewVendorKYCRepo(s).IsVerified(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_ReadersSeeOnlyCommittedRows(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "100.00")
	wallets, ledger, payouts := NewWalletRepo(s), NewLedgerRepo(s), NewPayoutRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	w, err := wallets.GetByVendorIDForUpdate(ctx, tx, vendorID)
	require.NoError(t, err)
	entry := &domain.WalletTransaction{VendorID: vendorID, Type: domain.TxTypeDebit, ReferenceType: domain.RefPayoutRequest, Amount: decimal.RequireFromString("60")}
	require.NoError(t, w.Apply(entry))
	require.NoError(t, ledger.Append(ctx, tx, entry))
	require.NoError(t, wallets.UpdateBalances(ctx, tx, w))
	p := &domain.PayoutRequest{ID: uuid.New(), VendorID: vendorID, Status: domain.PayoutStatusPending, RequestedAmount: decimal.RequireFromString("60"), CreatedAt: time.Now()}
	require.NoError(t, payouts.Create(ctx, tx, p))

	// the writer sees its own changes
	own, err := wallets.GetByVendorIDForUpdate(ctx, tx, vendorID)
	require.NoError(t, err)
	assert.True(t, own.AvailableBalance.Equal(decimal.RequireFromString("40")))

	outside, err := wallets.GetByVendorID(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, outside.AvailableBalance.Equal(decimal.RequireFromString("100")), "available %s", outside.AvailableBalance)
	assert.True(t, outside.PendingBalance.IsZero())
	entries, err := ledger.ListAllByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Empty(t, entries)
	got, err := payouts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	list, total, err := payouts.List(ctx, domain.PayoutFilter{VendorID: &vendorID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)

	require.NoError(t, tx.Commit(ctx))

	outside, err = wallets.GetByVendorID(ctx, vendorID)
	require.NoError(t, err)
	assert.True(t, outside.AvailableBalance.Equal(decimal.RequireFromString("40")))
	assert.True(t, outside.PendingBalance.Equal(decimal.RequireFromString("60")))
	entries, err = ledger.ListAllByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	got, err = payouts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestStore_UncommittedUpdateShowsPreviousImage(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	vendorID := seedWallet(t, s, "10")
	payouts := NewPayoutRepo(s)
	p := &domain.PayoutRequest{ID: uuid.New(), VendorID: vendorID, Status: domain.PayoutStatusPending, CreatedAt: time.Now()}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, payouts.Create(ctx, tx, p))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	locked, err := payouts.GetByIDForUpdate(ctx, tx, p.ID)
	require.NoError(t, err)
	locked.Status = domain.PayoutStatusApproved
	require.NoError(t, payouts.Update(ctx, tx, locked))

	got, err := payouts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, got.Status)
	stale, err := payouts.ListPendingBefore(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, tx.Rollback(ctx))
	got, err = payouts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, got.Status)
}

func TestConfigurationRepo_ActivationInvisibleUntilCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := NewConfigurationRepo(s)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Activate(ctx, tx, &domain.PayoutConfiguration{MinPayoutAmount: decimal.RequireFromString("100")}))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Activate(ctx, tx, &domain.PayoutConfiguration{MinPayoutAmount: decimal.RequireFromString("200")}))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, int64(1), active.ID)
	history, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	require.NoError(t, tx.Commit(ctx))
	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), active.ID)
}
