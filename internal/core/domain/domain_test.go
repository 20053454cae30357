package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPayoutStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status PayoutStatus
		want   bool
	}{
		{"pending", PayoutStatusPending, false},
		{"approved", PayoutStatusApproved, false},
		{"processing", PayoutStatusProcessing, false},
		{"paid", PayoutStatusPaid, true},
		{"rejected", PayoutStatusRejected, true},
		{"failed", PayoutStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestPayoutStatus_CanTransitionTo(t *testing.T) {
	all := []PayoutStatus{
		PayoutStatusPending, PayoutStatusApproved, PayoutStatusProcessing,
		PayoutStatusPaid, PayoutStatusRejected, PayoutStatusFailed,
	}
	allowed := map[[2]PayoutStatus]bool{
		{PayoutStatusPending, PayoutStatusApproved}:    true,
		{PayoutStatusPending, PayoutStatusRejected}:    true,
		{PayoutStatusApproved, PayoutStatusProcessing}: true,
		{PayoutStatusProcessing, PayoutStatusPaid}:     true,
		{PayoutStatusProcessing, PayoutStatusFailed}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]PayoutStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestPayoutStatus_TerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range []PayoutStatus{PayoutStatusPaid, PayoutStatusRejected, PayoutStatusFailed} {
		assert.Empty(t, payoutTransitions[s], "terminal state %s must not transition", s)
	}
}

func TestParsePayoutStatus(t *testing.T) {
	s, err := ParsePayoutStatus("processing")
	require.NoError(t, err)
	assert.Equal(t, PayoutStatusProcessing, s)

	_, err = ParsePayoutStatus("cancelled")
	assert.Error(t, err)
}

func TestParseReferenceType(t *testing.T) {
	r, err := ParseReferenceType("order_settlement")
	require.NoError(t, err)
	assert.Equal(t, RefOrderSettlement, r)

	_, err = ParseReferenceType("gift")
	assert.Error(t, err)
}

func TestComputeFees_WorkedExample(t *testing.T) {
	cfg := &PayoutConfiguration{
		ProcessingFeePercentage: dec("0.005"),
		ProcessingFeeFixed:      dec("5.00"),
		TDSPercentage:           dec("0.01"),
	}

	got := cfg.ComputeFees(dec("1500.00"), decimal.Zero)

	assert.True(t, got.ProcessingFee.Equal(dec("12.50")), "fee %s", got.ProcessingFee)
	assert.True(t, got.TDSAmount.Equal(dec("15.00")), "tds %s", got.TDSAmount)
	assert.True(t, got.FinalAmount.Equal(dec("1472.50")), "final %s", got.FinalAmount)
}

func TestComputeFees_RoundsEachComponent(t *testing.T) {
	cfg := &PayoutConfiguration{
		ProcessingFeePercentage: dec("0.0125"),
		ProcessingFeeFixed:      decimal.Zero,
		TDSPercentage:           dec("0.01"),
	}

	got := cfg.ComputeFees(dec("333.33"), dec("1.005"))

	assert.True(t, got.ProcessingFee.Equal(dec("4.17")), "fee %s", got.ProcessingFee)
	assert.True(t, got.TDSAmount.Equal(dec("3.33")), "tds %s", got.TDSAmount)
	assert.True(t, got.OtherDeductions.Equal(dec("1.01")), "other %s", got.OtherDeductions)
	sum := got.FinalAmount.Add(got.ProcessingFee).Add(got.TDSAmount).Add(got.OtherDeductions)
	assert.True(t, sum.Equal(got.ApprovedAmount))
}

func TestPayoutConfiguration_Validate(t *testing.T) {
	valid := func() *PayoutConfiguration {
		return &PayoutConfiguration{
			MinPayoutAmount:         dec("100"),
			MaxPayoutAmount:         dec("50000"),
			DailyPayoutLimit:        dec("100000"),
			MonthlyPayoutLimit:      dec("1000000"),
			ProcessingFeePercentage: dec("0.005"),
			ProcessingFeeFixed:      dec("5"),
			TDSPercentage:           dec("0.01"),
		}
	}

	require.NoError(t, valid().Validate())

	c := valid()
	c.MinPayoutAmount = dec("60000")
	assert.Error(t, c.Validate())

	c = valid()
	c.DailyPayoutLimit = dec("2000000")
	assert.Error(t, c.Validate())

	c = valid()
	c.TDSPercentage = dec("1")
	assert.Error(t, c.Validate())

	c = valid()
	c.ProcessingFeeFixed = dec("-1")
	assert.Error(t, c.Validate())
}

func TestPayoutConfiguration_QualifiesForAutoApproval(t *testing.T) {
	c := &PayoutConfiguration{AutoApprovalLimit: decimal.Zero}
	assert.False(t, c.QualifiesForAutoApproval(dec("1")), "zero limit disables auto approval")

	c.AutoApprovalLimit = dec("500")
	assert.True(t, c.QualifiesForAutoApproval(dec("500")))
	assert.False(t, c.QualifiesForAutoApproval(dec("500.01")))
}

func TestVendorWallet_ApplyAndReplay(t *testing.T) {
	vendorID := uuid.New()
	w := NewVendorWallet(vendorID, time.Now())

	entries := []WalletTransaction{
		{Type: TxTypeCredit, ReferenceType: RefOrderSettlement, Amount: dec("2000.00")},
		{Type: TxTypeDebit, ReferenceType: RefPayoutRequest, Amount: dec("1500.00")},
		{Type: TxTypeDebit, ReferenceType: RefPayoutSettlement, Amount: dec("1500.00")},
		{Type: TxTypeDebit, ReferenceType: RefFeeDeduction, Amount: dec("100.00")},
		{Type: TxTypeDebit, ReferenceType: RefPayoutRequest, Amount: dec("200.00")},
		{Type: TxTypeCredit, ReferenceType: RefPayoutReversal, Amount: dec("200.00")},
	}

	for i := range entries {
		require.NoError(t, w.Apply(&entries[i]))
		assert.True(t, w.IsConserved(), "after entry %d", i)
		assert.True(t, entries[i].BalanceAfter.Equal(w.AvailableBalance))
	}

	assert.True(t, w.AvailableBalance.Equal(dec("400.00")))
	assert.True(t, w.PendingBalance.IsZero())
	assert.True(t, w.TotalPayouts.Equal(dec("1500.00")))
	assert.True(t, w.TotalEarnings.Equal(dec("1900.00")))

	replayed, err := Replay(vendorID, entries)
	require.NoError(t, err)
	assert.True(t, replayed.Equal(w))
}

func TestVendorWallet_ApplyRejectsUnderflow(t *testing.T) {
	w := NewVendorWallet(uuid.New(), time.Now())
	w.AvailableBalance = dec("10")
	w.TotalEarnings = dec("10")

	err := w.Apply(&WalletTransaction{Type: TxTypeDebit, ReferenceType: RefPayoutRequest, Amount: dec("10.01")})
	assert.ErrorIs(t, err, ErrLedgerUnderflow)
	assert.True(t, w.AvailableBalance.Equal(dec("10")), "wallet must be unchanged on failure")
}

func TestVendorWallet_ApplyRejectsUnknownCombination(t *testing.T) {
	w := NewVendorWallet(uuid.New(), time.Now())
	err := w.Apply(&WalletTransaction{Type: TxTypeCredit, ReferenceType: RefPayoutSettlement, Amount: dec("1")})
	assert.ErrorIs(t, err, ErrUnsupportedLedgerEntry)
}

func TestPayoutRequest_ReservedAmount(t *testing.T) {
	p := &PayoutRequest{RequestedAmount: dec("1500"), ApprovedAmount: dec("1200")}
	assert.True(t, p.ReservedAmount().Equal(dec("1500")))

	now := time.Now()
	p.ApprovedAt = &now
	assert.True(t, p.ReservedAmount().Equal(dec("1200")))
}

func TestBuildPayoutIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildPayoutIdempotencyKey(id, "REQ-001")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000:payout:REQ-001", key)
}

func TestEventForStatus(t *testing.T) {
	assert.Equal(t, EventPayoutPaid, EventForStatus(PayoutStatusPaid))
	assert.Equal(t, EventPayoutRejected, EventForStatus(PayoutStatusRejected))
	assert.Equal(t, EventPayoutCreated, EventForStatus(PayoutStatusPending))
}
