package service

import (
	"context"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates the payout audit log service.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record appends entry in tx. The caller aborts the transition on error.
func (s *auditService) Record(ctx context.Context, tx pgx.Tx, entry *domain.PayoutAuditEntry) error {
	stamp(entry)
	if err := s.repo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}
	s.logEntry(entry)
	return nil
}

// RecordFailure appends a standalone entry for an attempt that did not commit.
func (s *auditService) RecordFailure(ctx context.Context, entry *domain.PayoutAuditEntry) {
	stamp(entry)
	s.logEntry(entry)
	if err := s.repo.CreateStandalone(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("payout_id", entry.PayoutID.String()).
			Str("action", string(entry.Action)).
			Msg("failed to persist audit entry")
	}
}

// Trail returns the payout's audit history in chronological order.
func (s *auditService) Trail(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error) {
	entries, err := s.repo.ListByPayout(ctx, payoutID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("list audit trail: %w", err))
	}
	if entries == nil {
		entries = []domain.PayoutAuditEntry{}
	}
	return entries, nil
}

func (s *auditService) logEntry(entry *domain.PayoutAuditEntry) {
	event := s.log.Info()
	if entry.Action == domain.AuditActionTransitionDenied {
		event = s.log.Warn()
	}
	old := ""
	if entry.OldStatus != nil {
		old = string(*entry.OldStatus)
	}
	event.
		Str("payout_id", entry.PayoutID.String()).
		Str("action", string(entry.Action)).
		Str("old_status", old).
		Str("new_status", string(entry.NewStatus)).
		Str("performed_by", entry.PerformedBy).
		Str("performer_type", string(entry.PerformerType)).
		Msg("audit")
}

func stamp(entry *domain.PayoutAuditEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
