// Package memory is an in-process implementation of the storage ports. Row locks
// are held until commit or rollback, every write inside a transaction is undone
// on rollback, and readers outside a transaction see only committed rows, so
// services observe the same serialization as PostgreSQL under read committed.
// It backs the "memory" database driver and the service and handler tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds all tables.
type Store struct {
	mu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	wallets      map[uuid.UUID]domain.VendorWallet
	ledger       []domain.WalletTransaction
	nextLedgerID int64
	payouts      map[uuid.UUID]domain.PayoutRequest
	payoutOrder  []uuid.UUID
	audit        []domain.PayoutAuditEntry
	configs      []domain.PayoutConfiguration
	nextConfigID int64
	methods      map[uuid.UUID]domain.PaymentMethod
	kyc          map[uuid.UUID]bool

	// uncommitted holds the last committed image of every row an open
	// transaction has written, keyed like the row locks.
	uncommitted map[string]rowVersion
}

// rowVersion is the committed image of a row changed by owner.
type rowVersion struct {
	owner  *memTx
	exists bool
	value  any
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		locks:   make(map[string]chan struct{}),
		wallets: make(map[uuid.UUID]domain.VendorWallet),
		payouts: make(map[uuid.UUID]domain.PayoutRequest),
		methods: make(map[uuid.UUID]domain.PaymentMethod),
		kyc:     make(map[uuid.UUID]bool),

		uncommitted: make(map[string]rowVersion),
	}
}

// PutPaymentMethod registers a payout destination, as the verification service would.
func (s *Store) PutPaymentMethod(m domain.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[m.ID] = m
}

// SetKYCVerified records a vendor's KYC status.
func (s *Store) SetKYCVerified(vendorID uuid.UUID, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kyc[vendorID] = verified
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{store: s, held: make(map[string]struct{})}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(_ context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

func (s *Store) lockChan(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

// memTx is the pgx.Tx handed to repositories. Only Commit and Rollback are
// implemented; the embedded nil interface panics on anything else.
type memTx struct {
	pgx.Tx

	store *Store
	mu    sync.Mutex
	held  map[string]struct{}
	order  []string
	undo   []func()
	staged []string
	done   bool
}

// lock acquires the row lock for key, blocking until it is free or ctx ends.
func (t *memTx) lock(ctx context.Context, key string) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[key]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	ch := t.store.lockChan(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.Lock()
	t.held[key] = struct{}{}
	t.order = append(t.order, key)
	t.mu.Unlock()
	return nil
}

// onRollback registers an undo step. Must be called with store.mu held.
func (t *memTx) onRollback(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

// stage records the committed image of key before t first writes it. Rows
// inserted by t are staged with existed false. Must be called with store.mu held.
func (t *memTx) stage(key string, before any, existed bool) {
	if v, ok := t.store.uncommitted[key]; ok && v.owner == t {
		return
	}
	t.store.uncommitted[key] = rowVersion{owner: t, exists: existed, value: before}
	t.mu.Lock()
	t.staged = append(t.staged, key)
	t.mu.Unlock()
}

// visible resolves the image of a row as seen by viewer, which is nil outside
// a transaction. Rows written by another open transaction read as their
// committed image. Must be called with s.mu held.
func visible[T any](s *Store, key string, viewer *memTx, live T, liveOK bool) (T, bool) {
	v, ok := s.uncommitted[key]
	if !ok || v.owner == viewer {
		return live, liveOK
	}
	if !v.exists {
		var zero T
		return zero, false
	}
	return v.value.(T), true
}

func (t *memTx) Commit(_ context.Context) error {
	return t.finish(false)
}

func (t *memTx) Rollback(_ context.Context) error {
	return t.finish(true)
}

func (t *memTx) finish(rollback bool) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return pgx.ErrTxClosed
	}
	t.done = true
	undo := t.undo
	order := t.order
	staged := t.staged
	t.undo, t.order, t.staged = nil, nil, nil
	t.mu.Unlock()

	t.store.mu.Lock()
	if rollback {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	for _, key := range staged {
		if v, ok := t.store.uncommitted[key]; ok && v.owner == t {
			delete(t.store.uncommitted, key)
		}
	}
	t.store.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		<-t.store.lockChan(order[i])
	}
	return nil
}

func asTx(tx pgx.Tx) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if !ok || mt == nil {
		return nil, errForeignTx
	}
	mt.mu.Lock()
	done := mt.done
	mt.mu.Unlock()
	if done {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}
