package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"vendor-payout-ledger/internal/adapter/storage/memory"
	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// recordingNotifier captures dispatched events.
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.PayoutEvent
}

func (n *recordingNotifier) Dispatch(_ context.Context, event domain.PayoutEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.EventType)
	}
	return out
}

// fixture wires the real services over the in-memory store.
type fixture struct {
	store    *memory.Store
	ledger   ports.LedgerService
	configs  ports.ConfigurationService
	audit    ports.AuditService
	payouts  *PayoutServiceImpl
	notifier *recordingNotifier
	vendorID uuid.UUID
	methodID uuid.UUID
}

func defaultConfigValues() ports.ConfigurationValues {
	return ports.ConfigurationValues{
		MinPayoutAmount:         dec("100"),
		MaxPayoutAmount:         dec("50000"),
		DailyPayoutLimit:        dec("100000"),
		MonthlyPayoutLimit:      dec("1000000"),
		ProcessingFeePercentage: dec("0.005"),
		ProcessingFeeFixed:      dec("5.00"),
		TDSPercentage:           dec("0.01"),
		AutoApprovalLimit:       decimal.Zero,
	}
}

// newFixture builds the services. A nil values leaves the store unconfigured.
func newFixture(t *testing.T, values *ports.ConfigurationValues) *fixture {
	t.Helper()
	store := memory.NewStore()
	log := newTestLogger()

	ledger := NewLedgerService(store, memory.NewWalletRepo(store), memory.NewLedgerRepo(store), nil, log)
	configs := NewConfigurationService(store, memory.NewConfigurationRepo(store), log)
	audit := NewAuditService(memory.NewAuditRepo(store), log)
	notifier := &recordingNotifier{}

	payouts := NewPayoutService(PayoutServiceDeps{
		Transactor:     store,
		WalletRepo:     memory.NewWalletRepo(store),
		PayoutRepo:     memory.NewPayoutRepo(store),
		PaymentMethods: memory.NewPaymentMethodRepo(store),
		KYC:            memory.NewVendorKYCRepo(store),
		Configurations: configs,
		Ledger:         ledger,
		Audit:          audit,
		Notifier:       notifier,
		Log:            log,
	})

	f := &fixture{
		store:    store,
		ledger:   ledger,
		configs:  configs,
		audit:    audit,
		payouts:  payouts,
		notifier: notifier,
		vendorID: uuid.New(),
		methodID: uuid.New(),
	}
	store.PutPaymentMethod(domain.PaymentMethod{
		ID:                 f.methodID,
		VendorID:           f.vendorID,
		MethodType:         domain.PaymentMethodBankTransfer,
		DisplayName:        "HDFC ****4321",
		VerificationStatus: domain.VerificationVerified,
		CreatedAt:          time.Now(),
	})

	if values != nil {
		_, err := configs.UpdateConfiguration(context.Background(), "bootstrap-admin", *values)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) fund(t *testing.T, amount string) {
	t.Helper()
	ref := "ORD-" + uuid.NewString()[:8]
	_, err := f.ledger.Credit(context.Background(), ports.LedgerEntryRequest{
		VendorID:      f.vendorID,
		Amount:        dec(amount),
		ReferenceType: domain.RefOrderSettlement,
		ReferenceID:   &ref,
		Description:   "order settlement",
	})
	require.NoError(t, err)
}

func (f *fixture) request(amount string) (*domain.PayoutRequest, error) {
	return f.payouts.CreateRequest(context.Background(), ports.CreatePayoutRequest{
		VendorID:        f.vendorID,
		Amount:          dec(amount),
		PaymentMethodID: f.methodID,
	})
}

func (f *fixture) balance(t *testing.T) *domain.Balance {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), f.vendorID)
	require.NoError(t, err)
	return b
}

func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := f.ledger.Reconcile(context.Background(), f.vendorID)
	require.NoError(t, err)
	require.True(t, report.Consistent, "ledger replay disagrees with wallet: %+v", report)
	require.True(t, report.Conserved, "balance conservation violated: %+v", report)
}

func (f *fixture) actions(t *testing.T, payoutID uuid.UUID) []domain.AuditAction {
	t.Helper()
	trail, err := f.payouts.GetAuditTrail(context.Background(), payoutID)
	require.NoError(t, err)
	out := make([]domain.AuditAction, 0, len(trail))
	for _, e := range trail {
		out = append(out, e.Action)
	}
	return out
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got)
}
