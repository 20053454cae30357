package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports/mocks"
	"vendor-payout-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Record_StampsAndPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	var buf bytes.Buffer
	svc := NewAuditService(mockRepo, zerolog.New(&buf))

	payoutID := uuid.New()
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, e *domain.PayoutAuditEntry) error {
			assert.NotEqual(t, uuid.Nil, e.ID)
			assert.False(t, e.CreatedAt.IsZero())
			assert.Equal(t, payoutID, e.PayoutID)
			return nil
		},
	)

	err := svc.Record(context.Background(), nil, &domain.PayoutAuditEntry{
		PayoutID:      payoutID,
		Action:        domain.AuditActionCreated,
		NewStatus:     domain.PayoutStatusPending,
		PerformedBy:   "vendor-1",
		PerformerType: domain.PerformerVendor,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"action":"created"`)
	assert.Contains(t, buf.String(), payoutID.String())
}

func TestAuditService_Record_ErrorIsReturned(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	err := svc.Record(context.Background(), nil, &domain.PayoutAuditEntry{PayoutID: uuid.New(), Action: domain.AuditActionApproved})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAuditService_RecordFailure_SwallowsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	var buf bytes.Buffer
	svc := NewAuditService(mockRepo, zerolog.New(&buf))

	mockRepo.EXPECT().CreateStandalone(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	old := domain.PayoutStatusPaid
	svc.RecordFailure(context.Background(), &domain.PayoutAuditEntry{
		PayoutID:  uuid.New(),
		Action:    domain.AuditActionTransitionDenied,
		OldStatus: &old,
		NewStatus: old,
	})
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "failed to persist audit entry")
}

func TestAuditService_Trail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())
	payoutID := uuid.New()

	mockRepo.EXPECT().ListByPayout(gomock.Any(), payoutID).Return(nil, nil)
	entries, err := svc.Trail(context.Background(), payoutID)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	mockRepo.EXPECT().ListByPayout(gomock.Any(), payoutID).Return(nil, errors.New("timeout"))
	_, err = svc.Trail(context.Background(), payoutID)
	requireCode(t, err, apperror.CodeStorageFailure)
}
