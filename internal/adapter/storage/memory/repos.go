package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func walletKey(vendorID uuid.UUID) string { return "wallet:" + vendorID.String() }
func payoutKey(id uuid.UUID) string       { return "payout:" + id.String() }
func ledgerKey(id int64) string           { return fmt.Sprintf("ledger:%d", id) }
func auditKey(id uuid.UUID) string        { return "audit:" + id.String() }
func configRowKey(id int64) string        { return fmt.Sprintf("config:%d", id) }

const configKey = "payout_configurations"

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

// NewWalletRepo creates a wallet repository over s.
func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.VendorWallet) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, walletKey(w.VendorID)); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[w.VendorID]; ok {
		return nil
	}
	mt.stage(walletKey(w.VendorID), nil, false)
	r.s.wallets[w.VendorID] = *w
	id := w.VendorID
	mt.onRollback(func() { delete(r.s.wallets, id) })
	return nil
}

func (r *WalletRepo) GetByVendorID(_ context.Context, vendorID uuid.UUID) (*domain.VendorWallet, error) {
	return r.get(vendorID, nil)
}

func (r *WalletRepo) get(vendorID uuid.UUID, viewer *memTx) (*domain.VendorWallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	live, liveOK := r.s.wallets[vendorID]
	w, ok := visible(r.s, walletKey(vendorID), viewer, live, liveOK)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByVendorIDForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.VendorWallet, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletKey(vendorID)); err != nil {
		return nil, err
	}
	return r.get(vendorID, mt)
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.VendorWallet) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, walletKey(w.VendorID)); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.wallets[w.VendorID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", w.VendorID)
	}
	if w.AvailableBalance.IsNegative() || w.PendingBalance.IsNegative() {
		return fmt.Errorf("wallet %s: balance check constraint violated", w.VendorID)
	}
	mt.stage(walletKey(w.VendorID), prev, true)
	r.s.wallets[w.VendorID] = *w
	mt.onRollback(func() { r.s.wallets[prev.VendorID] = prev })
	return nil
}

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct{ s *Store }

// NewLedgerRepo creates a ledger repository over s.
func NewLedgerRepo(s *Store) *LedgerRepo { return &LedgerRepo{s: s} }

func (r *LedgerRepo) Append(_ context.Context, tx pgx.Tx, e *domain.WalletTransaction) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("wallet transaction amount must be positive")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[e.VendorID]; !ok {
		return fmt.Errorf("wallet not found: %s", e.VendorID)
	}
	r.s.nextLedgerID++
	e.ID = r.s.nextLedgerID
	r.s.ledger = append(r.s.ledger, *e)
	mt.stage(ledgerKey(e.ID), nil, false)
	id := e.ID
	mt.onRollback(func() {
		for i := range r.s.ledger {
			if r.s.ledger[i].ID == id {
				r.s.ledger = append(r.s.ledger[:i], r.s.ledger[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *LedgerRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page, pageSize int) ([]domain.WalletTransaction, int64, error) {
	all, _ := r.ListAllByVendor(ctx, vendorID)
	total := int64(len(all))
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return paginate(all, page, pageSize), total, nil
}

func (r *LedgerRepo) ListAllByVendor(_ context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.WalletTransaction
	for _, e := range r.s.ledger {
		if e.VendorID != vendorID {
			continue
		}
		if _, ok := visible(r.s, ledgerKey(e.ID), nil, e, true); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct{ s *Store }

// NewPayoutRepo creates a payout repository over s.
func NewPayoutRepo(s *Store) *PayoutRepo { return &PayoutRepo{s: s} }

func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, payoutKey(p.ID)); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payouts[p.ID]; ok {
		return fmt.Errorf("payout request %s already exists", p.ID)
	}
	if p.IdempotencyKey != nil {
		for _, existing := range r.s.payouts {
			if existing.VendorID == p.VendorID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *p.IdempotencyKey {
				return fmt.Errorf("duplicate idempotency key %q for vendor %s", *p.IdempotencyKey, p.VendorID)
			}
		}
	}
	mt.stage(payoutKey(p.ID), nil, false)
	r.s.payouts[p.ID] = *p
	r.s.payoutOrder = append(r.s.payoutOrder, p.ID)
	id := p.ID
	mt.onRollback(func() {
		delete(r.s.payouts, id)
		for i, candidate := range r.s.payoutOrder {
			if candidate == id {
				r.s.payoutOrder = append(r.s.payoutOrder[:i], r.s.payoutOrder[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *PayoutRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.payout(id, nil)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// payout returns the row as seen by viewer. Must be called with s.mu held.
func (r *PayoutRepo) payout(id uuid.UUID, viewer *memTx) (domain.PayoutRequest, bool) {
	live, liveOK := r.s.payouts[id]
	return visible(r.s, payoutKey(id), viewer, live, liveOK)
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, payoutKey(id)); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.payout(id, mt)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PayoutRepo) GetByIdempotencyKey(_ context.Context, tx pgx.Tx, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id := range r.s.payouts {
		p, ok := r.payout(id, mt)
		if !ok {
			continue
		}
		if p.VendorID == vendorID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, payoutKey(p.ID)); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, ok := r.s.payouts[p.ID]
	if !ok {
		return fmt.Errorf("payout request not found: %s", p.ID)
	}
	mt.stage(payoutKey(p.ID), prev, true)
	r.s.payouts[p.ID] = *p
	mt.onRollback(func() { r.s.payouts[prev.ID] = prev })
	return nil
}

func (r *PayoutRepo) SumRequestedSince(_ context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	mt, err := asTx(tx)
	if err != nil {
		return decimal.Zero, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sum := decimal.Zero
	for id := range r.s.payouts {
		p, ok := r.payout(id, mt)
		if !ok || p.VendorID != vendorID || p.CreatedAt.Before(since) {
			continue
		}
		if p.Status == domain.PayoutStatusRejected || p.Status == domain.PayoutStatusFailed {
			continue
		}
		sum = sum.Add(p.RequestedAmount)
	}
	return sum, nil
}

func (r *PayoutRepo) List(_ context.Context, filter domain.PayoutFilter) ([]domain.PayoutRequest, int64, error) {
	r.s.mu.Lock()
	var out []domain.PayoutRequest
	for i := len(r.s.payoutOrder) - 1; i >= 0; i-- {
		p, ok := r.payout(r.s.payoutOrder[i], nil)
		if !ok {
			continue
		}
		if filter.VendorID != nil && p.VendorID != *filter.VendorID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	r.s.mu.Unlock()
	return paginate(out, filter.Page, filter.PageSize), int64(len(out)), nil
}

func (r *PayoutRepo) ListPendingBefore(_ context.Context, before time.Time, limit int) ([]domain.PayoutRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PayoutRequest
	for _, id := range r.s.payoutOrder {
		p, ok := r.payout(id, nil)
		if !ok {
			continue
		}
		if p.Status == domain.PayoutStatusPending && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

// NewAuditRepo creates an audit repository over s.
func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(_ context.Context, tx pgx.Tx, e *domain.PayoutAuditEntry) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	mt.stage(auditKey(e.ID), nil, false)
	id := e.ID
	mt.onRollback(func() {
		for i := range r.s.audit {
			if r.s.audit[i].ID == id {
				r.s.audit = append(r.s.audit[:i], r.s.audit[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *AuditRepo) CreateStandalone(_ context.Context, e *domain.PayoutAuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

func (r *AuditRepo) ListByPayout(_ context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PayoutAuditEntry
	for _, e := range r.s.audit {
		if e.PayoutID != payoutID {
			continue
		}
		if _, ok := visible(r.s, auditKey(e.ID), nil, e, true); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ConfigurationRepo implements ports.ConfigurationRepository.
type ConfigurationRepo struct{ s *Store }

// NewConfigurationRepo creates a configuration repository over s.
func NewConfigurationRepo(s *Store) *ConfigurationRepo { return &ConfigurationRepo{s: s} }

func (r *ConfigurationRepo) GetActive(_ context.Context) (*domain.PayoutConfiguration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := len(r.s.configs) - 1; i >= 0; i-- {
		c, ok := r.config(i)
		if ok && c.IsActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ConfigurationRepo) GetByID(_ context.Context, id int64) (*domain.PayoutConfiguration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.configs {
		if c, ok := r.config(i); ok && c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ConfigurationRepo) Activate(ctx context.Context, tx pgx.Tx, cfg *domain.PayoutConfiguration) error {
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, configKey); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deactivated []int
	for i := range r.s.configs {
		if r.s.configs[i].IsActive {
			mt.stage(configRowKey(r.s.configs[i].ID), r.s.configs[i], true)
			r.s.configs[i].IsActive = false
			deactivated = append(deactivated, i)
		}
	}
	r.s.nextConfigID++
	cfg.ID = r.s.nextConfigID
	cfg.IsActive = true
	r.s.configs = append(r.s.configs, *cfg)
	mt.stage(configRowKey(cfg.ID), nil, false)
	id := cfg.ID
	mt.onRollback(func() {
		for _, i := range deactivated {
			r.s.configs[i].IsActive = true
		}
		for i := range r.s.configs {
			if r.s.configs[i].ID == id {
				r.s.configs = append(r.s.configs[:i], r.s.configs[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *ConfigurationRepo) List(_ context.Context, limit int) ([]domain.PayoutConfiguration, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PayoutConfiguration
	for i := len(r.s.configs) - 1; i >= 0; i-- {
		c, ok := r.config(i)
		if !ok {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// config returns the committed image of the i-th version. Must be called with s.mu held.
func (r *ConfigurationRepo) config(i int) (domain.PayoutConfiguration, bool) {
	live := r.s.configs[i]
	return visible(r.s, configRowKey(live.ID), nil, live, true)
}

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct{ s *Store }

// NewPaymentMethodRepo creates a payment-method repository over s.
func NewPaymentMethodRepo(s *Store) *PaymentMethodRepo { return &PaymentMethodRepo{s: s} }

func (r *PaymentMethodRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.methods[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// Upsert stores the verification service's view of a payout destination.
func (r *PaymentMethodRepo) Upsert(_ context.Context, m *domain.PaymentMethod) error {
	r.s.PutPaymentMethod(*m)
	return nil
}

// VendorKYCRepo implements ports.VendorKYCRepository.
type VendorKYCRepo struct{ s *Store }

// NewVendorKYCRepo creates a KYC repository over s.
func NewVendorKYCRepo(s *Store) *VendorKYCRepo { return &VendorKYCRepo{s: s} }

func (r *VendorKYCRepo) IsVerified(_ context.Context, vendorID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.kyc[vendorID], nil
}

func (r *VendorKYCRepo) SetVerified(_ context.Context, vendorID uuid.UUID, verified bool, _ time.Time) error {
	r.s.SetKYCVerified(vendorID, verified)
	return nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
