package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type expirerFunc func(ctx context.Context, olderThan time.Duration) (int, error)

func (f expirerFunc) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	return f(ctx, olderThan)
}

func TestNewExpirySweeper_Validation(t *testing.T) {
	stub := expirerFunc(func(context.Context, time.Duration) (int, error) { return 0, nil })

	_, err := NewExpirySweeper(ExpirySweeperParams{OlderThan: time.Hour, Interval: time.Minute})
	assert.Error(t, err)
	_, err = NewExpirySweeper(ExpirySweeperParams{Payouts: stub, Interval: time.Minute})
	assert.Error(t, err)
	_, err = NewExpirySweeper(ExpirySweeperParams{Payouts: stub, OlderThan: time.Hour})
	assert.Error(t, err)
}

func TestExpirySweeper_RunOnceExpiresRealPayouts(t *testing.T) {
	values := defaultConfigValues()
	f := newFixture(t, &values)
	f.fund(t, "1000.00")

	p, err := f.request("300")
	require.NoError(t, err)
	f.payouts.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }

	sweeper, err := NewExpirySweeper(ExpirySweeperParams{
		Payouts:   f.payouts,
		Log:       newTestLogger(),
		OlderThan: 24 * time.Hour,
		Interval:  time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sweeper.RunOnce(context.Background()))
	assert.Equal(t, 0, sweeper.RunOnce(context.Background()), "already expired")

	got, err := f.payouts.GetPayout(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusRejected, got.Status)
	assertMoney(t, "1000.00", f.balance(t).Available, "available")
}

func TestExpirySweeper_SkipsWhenLockHeld(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	lock := mocks.NewMockJobLock(ctrl)
	var calls atomic.Int32
	stub := expirerFunc(func(context.Context, time.Duration) (int, error) {
		calls.Add(1)
		return 2, nil
	})
	sweeper, err := NewExpirySweeper(ExpirySweeperParams{
		Payouts: stub, Lock: lock, Log: newTestLogger(), OlderThan: time.Hour, Interval: time.Minute,
	})
	require.NoError(t, err)

	lock.EXPECT().Acquire(gomock.Any()).Return(false, nil)
	assert.Equal(t, 0, sweeper.RunOnce(context.Background()))
	assert.Zero(t, calls.Load())

	gomock.InOrder(
		lock.EXPECT().Acquire(gomock.Any()).Return(true, nil),
		lock.EXPECT().Release(gomock.Any()).Return(nil),
	)
	assert.Equal(t, 2, sweeper.RunOnce(context.Background()))
	assert.Equal(t, int32(1), calls.Load())

	lock.EXPECT().Acquire(gomock.Any()).Return(false, errors.New("redis down"))
	assert.Equal(t, 0, sweeper.RunOnce(context.Background()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExpirySweeper_RunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	stub := expirerFunc(func(context.Context, time.Duration) (int, error) {
		calls.Add(1)
		return 0, errors.New("transient")
	})
	sweeper, err := NewExpirySweeper(ExpirySweeperParams{
		Payouts: stub, Log: newTestLogger(), OlderThan: time.Hour, Interval: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
