package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/apperror"
	"vendor-payout-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ledgerService implements ports.LedgerService.
type ledgerService struct {
	transactor ports.DBTransactor
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	metrics    *metrics.LedgerMetrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates the wallet ledger.
func NewLedgerService(
	transactor ports.DBTransactor,
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) ports.LedgerService {
	return &ledgerService{
		transactor: transactor,
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// EnsureWallet returns the vendor's wallet, creating an empty one if needed.
func (s *ledgerService) EnsureWallet(ctx context.Context, vendorID uuid.UUID) (*domain.VendorWallet, error) {
	wallet, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.walletRepo.Create(ctx, tx, domain.NewVendorWallet(vendorID, s.now())); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("create wallet: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().Str("vendor_id", vendorID.String()).Msg("wallet created")

	wallet, err = s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// Credit adds earnings to the vendor's available balance in its own transaction.
func (s *ledgerService) Credit(ctx context.Context, req ports.LedgerEntryRequest) (*domain.WalletTransaction, error) {
	if !req.ReferenceType.IsManualCredit() {
		return nil, apperror.Validation(fmt.Sprintf("reference type %q cannot be credited directly", req.ReferenceType))
	}
	return s.post(ctx, domain.TxTypeCredit, req)
}

// Debit removes earnings (fees, negative adjustments) from the available balance.
func (s *ledgerService) Debit(ctx context.Context, req ports.LedgerEntryRequest) (*domain.WalletTransaction, error) {
	if !req.ReferenceType.IsManualDebit() {
		return nil, apperror.Validation(fmt.Sprintf("reference type %q cannot be debited directly", req.ReferenceType))
	}
	return s.post(ctx, domain.TxTypeDebit, req)
}

func (s *ledgerService) post(ctx context.Context, txType domain.TxType, req ports.LedgerEntryRequest) (*domain.WalletTransaction, error) {
	if err := validateMoney(req.Amount); err != nil {
		return nil, err
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := s.apply(ctx, tx, req.VendorID, txType, req.ReferenceType, req.Amount, req.ReferenceID, req.Description)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Str("vendor_id", req.VendorID.String()).
		Str("type", string(txType)).
		Str("reference_type", string(req.ReferenceType)).
		Str("amount", req.Amount.StringFixed(domain.CurrencyPlaces)).
		Str("balance_after", entry.BalanceAfter.StringFixed(domain.CurrencyPlaces)).
		Int64("entry_id", entry.ID).
		Msg("ledger entry posted")

	return entry, nil
}

// ReserveForPayout moves amount from available to pending inside tx and returns
// the id of the reserving ledger entry.
func (s *ledgerService) ReserveForPayout(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) (int64, error) {
	ref := payoutID.String()
	entry, err := s.apply(ctx, tx, vendorID, domain.TxTypeDebit, domain.RefPayoutRequest, amount, &ref, "Payout reserved")
	if err != nil {
		return 0, err
	}
	return entry.ID, nil
}

// ReleaseReservation returns amount from pending to available inside tx.
func (s *ledgerService) ReleaseReservation(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) error {
	ref := payoutID.String()
	_, err := s.apply(ctx, tx, vendorID, domain.TxTypeCredit, domain.RefPayoutReversal, amount, &ref, "Payout reservation released")
	return err
}

// SettleReservation moves amount from pending to total payouts inside tx.
func (s *ledgerService) SettleReservation(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, payoutID uuid.UUID) error {
	ref := payoutID.String()
	_, err := s.apply(ctx, tx, vendorID, domain.TxTypeDebit, domain.RefPayoutSettlement, amount, &ref, "Payout settled")
	return err
}

// apply locks the wallet, applies one entry to it and persists both.
func (s *ledgerService) apply(
	ctx context.Context,
	tx pgx.Tx,
	vendorID uuid.UUID,
	txType domain.TxType,
	refType domain.ReferenceType,
	amount decimal.Decimal,
	refID *string,
	description string,
) (*domain.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	wallet, err := s.walletRepo.GetByVendorIDForUpdate(ctx, tx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		if txType == domain.TxTypeDebit {
			return nil, apperror.ErrInsufficientBalance()
		}
		if err := s.walletRepo.Create(ctx, tx, domain.NewVendorWallet(vendorID, s.now())); err != nil {
			return nil, apperror.StorageFailure(fmt.Errorf("create wallet: %w", err))
		}
		wallet, err = s.walletRepo.GetByVendorIDForUpdate(ctx, tx, vendorID)
		if err != nil || wallet == nil {
			return nil, apperror.StorageFailure(fmt.Errorf("lock new wallet: %w", err))
		}
	}

	entry := &domain.WalletTransaction{
		VendorID:      vendorID,
		Type:          txType,
		Amount:        amount,
		ReferenceType: refType,
		ReferenceID:   refID,
		Description:   description,
		CreatedAt:     s.now(),
	}
	if err := wallet.Apply(entry); err != nil {
		if errors.Is(err, domain.ErrLedgerUnderflow) {
			if refType == domain.RefPayoutReversal || refType == domain.RefPayoutSettlement {
				// pending no longer covers the payout: the wallet row has drifted.
				return nil, apperror.StorageFailure(fmt.Errorf("vendor %s: %w", vendorID, err))
			}
			return nil, apperror.ErrInsufficientBalance()
		}
		return nil, apperror.StorageFailure(err)
	}
	wallet.UpdatedAt = entry.CreatedAt

	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("append ledger entry: %w", err))
	}
	if err := s.walletRepo.UpdateBalances(ctx, tx, wallet); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("update wallet: %w", err))
	}

	s.metrics.IncLedgerEntry(string(txType), string(refType))
	return entry, nil
}

// GetBalance reads the wallet row. A vendor without a wallet has a zero balance.
func (s *ledgerService) GetBalance(ctx context.Context, vendorID uuid.UUID) (*domain.Balance, error) {
	wallet, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		wallet = domain.NewVendorWallet(vendorID, time.Time{})
	}
	balance := wallet.Balance()
	return &balance, nil
}

// ListTransactions returns the vendor's ledger, newest first.
func (s *ledgerService) ListTransactions(ctx context.Context, vendorID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	entries, total, err := s.ledgerRepo.ListByVendor(ctx, vendorID, page, pageSize)
	if err != nil {
		return nil, 0, apperror.StorageFailure(fmt.Errorf("list transactions: %w", err))
	}
	if entries == nil {
		entries = []domain.WalletTransaction{}
	}
	return entries, total, nil
}

// Reconcile replays the ledger and compares the result with the stored wallet.
func (s *ledgerService) Reconcile(ctx context.Context, vendorID uuid.UUID) (*ports.ReconciliationReport, error) {
	stored, err := s.walletRepo.GetByVendorID(ctx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get wallet: %w", err))
	}
	if stored == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	entries, err := s.ledgerRepo.ListAllByVendor(ctx, vendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("list ledger: %w", err))
	}

	replayed := domain.NewVendorWallet(vendorID, time.Time{})
	var broken []int64
	for i := range entries {
		entry := entries[i]
		if err := replayed.Apply(&entry); err != nil {
			broken = append(broken, entries[i].ID)
			continue
		}
		if !entry.BalanceAfter.Equal(entries[i].BalanceAfter) {
			broken = append(broken, entries[i].ID)
		}
	}

	report := &ports.ReconciliationReport{
		VendorID:     vendorID,
		Entries:      len(entries),
		Stored:       stored.Balance(),
		Replayed:     replayed.Balance(),
		Consistent:   stored.Equal(replayed) && len(broken) == 0,
		Conserved:    stored.IsConserved(),
		BrokenChain:  broken,
		ReconciledAt: s.now(),
	}
	if !report.Consistent || !report.Conserved {
		s.log.Error().
			Str("vendor_id", vendorID.String()).
			Bool("consistent", report.Consistent).
			Bool("conserved", report.Conserved).
			Int("broken_entries", len(broken)).
			Msg("wallet reconciliation mismatch")
	}
	return report, nil
}

// validateMoney rejects non-positive amounts and amounts finer than the currency unit.
func validateMoney(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(domain.RoundMoney(amount)) {
		return apperror.ErrInvalidAmount()
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
