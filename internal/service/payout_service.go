package service

import (
	"context"
	"encoding/json"
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
	defaultIdempotencyTTL = 24 * time.Hour
	expiryBatchSize       = 100
)

// PayoutServiceDeps groups the collaborators of the payout engine.
type PayoutServiceDeps struct {
	Transactor     ports.DBTransactor
	WalletRepo     ports.WalletRepository
	PayoutRepo     ports.PayoutRepository
	PaymentMethods ports.PaymentMethodRepository
	KYC            ports.VendorKYCRepository
	Configurations ports.ConfigurationService
	Ledger         ports.LedgerService
	Audit          ports.AuditService
	Notifier       ports.NotificationDispatcher
	IdempCache     ports.IdempotencyCache // optional
	IdempTTL       time.Duration
	Metrics        *metrics.LedgerMetrics
	Log            zerolog.Logger
}

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	transactor ports.DBTransactor
	walletRepo ports.WalletRepository
	payoutRepo ports.PayoutRepository
	methods    ports.PaymentMethodRepository
	kyc        ports.VendorKYCRepository
	configs    ports.ConfigurationService
	ledger     ports.LedgerService
	audit      ports.AuditService
	notifier   ports.NotificationDispatcher
	idempCache ports.IdempotencyCache
	idempTTL   time.Duration
	metrics    *metrics.LedgerMetrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewPayoutService creates the payout engine.
func NewPayoutService(deps PayoutServiceDeps) *PayoutServiceImpl {
	ttl := deps.IdempTTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &PayoutServiceImpl{
		transactor: deps.Transactor,
		walletRepo: deps.WalletRepo,
		payoutRepo: deps.PayoutRepo,
		methods:    deps.PaymentMethods,
		kyc:        deps.KYC,
		configs:    deps.Configurations,
		ledger:     deps.Ledger,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		idempCache: deps.IdempCache,
		idempTTL:   ttl,
		metrics:    deps.Metrics,
		log:        deps.Log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// idempotencyRecord is what the Redis fast path stores per (vendor, key).
type idempotencyRecord struct {
	PayoutID        uuid.UUID       `json:"payout_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID uuid.UUID       `json:"payment_method_id"`
}

// CreateRequest reserves funds and records a pending payout, auto-approving it
// when the amount is within the configured auto-approval limit.
func (s *PayoutServiceImpl) CreateRequest(ctx context.Context, req ports.CreatePayoutRequest) (*domain.PayoutRequest, error) {
	payout, err := s.createRequest(ctx, req)
	if err != nil {
		s.countDenied(err)
		return nil, err
	}
	return payout, nil
}

func (s *PayoutServiceImpl) createRequest(ctx context.Context, req ports.CreatePayoutRequest) (*domain.PayoutRequest, error) {
	if err := validateMoney(req.Amount); err != nil {
		return nil, err
	}

	cacheKey := ""
	if req.IdempotencyKey != "" {
		cacheKey = domain.BuildPayoutIdempotencyKey(req.VendorID, req.IdempotencyKey)
		if payout, err := s.replayFromCache(ctx, cacheKey, req); payout != nil || err != nil {
			return payout, err
		}
	}

	cfg, err := s.configs.GetActiveConfiguration(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.InRange(req.Amount) {
		return nil, apperror.ErrAmountOutOfRange(
			cfg.MinPayoutAmount.StringFixed(domain.CurrencyPlaces),
			cfg.MaxPayoutAmount.StringFixed(domain.CurrencyPlaces),
		)
	}

	method, err := s.methods.GetByID(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get payment method: %w", err))
	}
	if method == nil || !method.BelongsTo(req.VendorID) || !method.IsVerified() {
		return nil, apperror.ErrUnverifiedPaymentMethod()
	}

	if cfg.KYCRequiredForPayouts {
		verified, err := s.kyc.IsVerified(ctx, req.VendorID)
		if err != nil {
			return nil, apperror.StorageFailure(fmt.Errorf("check kyc: %w", err))
		}
		if !verified {
			return nil, apperror.ErrKYCRequired()
		}
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Per-vendor serialization point: everything below sees a stable wallet.
	wallet, err := s.walletRepo.GetByVendorIDForUpdate(ctx, tx, req.VendorID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrInsufficientBalance()
	}

	if req.IdempotencyKey != "" {
		existing, err := s.payoutRepo.GetByIdempotencyKey(ctx, tx, req.VendorID, req.IdempotencyKey)
		if err != nil {
			return nil, apperror.StorageFailure(fmt.Errorf("idempotency lookup: %w", err))
		}
		if existing != nil {
			if !sameRequest(existing.RequestedAmount, existing.PaymentMethodID, req) {
				return nil, apperror.ErrIdempotencyKeyMismatch()
			}
			s.log.Info().Str("payout_id", existing.ID.String()).Msg("idempotent replay of payout request")
			return existing, nil
		}
	}

	now := s.now()
	if err := s.checkLimits(ctx, tx, cfg, req.VendorID, req.Amount, now); err != nil {
		return nil, err
	}

	payout := &domain.PayoutRequest{
		ID:              uuid.New(),
		VendorID:        req.VendorID,
		PaymentMethodID: method.ID,
		PaymentMethod:   method.MethodType,
		RequestedAmount: req.Amount,
		ApprovedAmount:  decimal.Zero,
		ProcessingFee:   decimal.Zero,
		TDSAmount:       decimal.Zero,
		OtherDeductions: decimal.Zero,
		FinalAmount:     decimal.Zero,
		Status:          domain.PayoutStatusPending,
		ConfigurationID: cfg.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		payout.IdempotencyKey = &key
	}

	reservationID, err := s.ledger.ReserveForPayout(ctx, tx, req.VendorID, req.Amount, payout.ID)
	if err != nil {
		return nil, err
	}
	payout.ReservationID = reservationID

	if err := s.payoutRepo.Create(ctx, tx, payout); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("insert payout: %w", err))
	}

	if err := s.audit.Record(ctx, tx, &domain.PayoutAuditEntry{
		PayoutID:      payout.ID,
		Action:        domain.AuditActionCreated,
		NewStatus:     domain.PayoutStatusPending,
		PerformedBy:   req.VendorID.String(),
		PerformerType: domain.PerformerVendor,
		Metadata: map[string]any{
			"requested_amount": req.Amount.StringFixed(domain.CurrencyPlaces),
			"configuration_id": cfg.ID,
			"reservation_id":   reservationID,
		},
	}); err != nil {
		return nil, apperror.StorageFailure(err)
	}

	committed := []domain.PayoutStatus{domain.PayoutStatusPending}
	// Amounts whose fees would consume the payout are left for manual review.
	if cfg.QualifiesForAutoApproval(req.Amount) && cfg.ComputeFees(req.Amount, decimal.Zero).FinalAmount.IsPositive() {
		if err := s.approveInTx(ctx, tx, payout, cfg, req.Amount, decimal.Zero, approval{
			actor:     domain.SystemPerformer,
			actorType: domain.PerformerSystem,
			action:    domain.AuditActionAutoApproved,
			notes:     "within auto-approval limit",
		}); err != nil {
			return nil, err
		}
		committed = append(committed, domain.PayoutStatusApproved)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("commit: %w", err))
	}

	if cacheKey != "" {
		s.cacheIdempotency(ctx, cacheKey, payout)
	}
	s.metrics.ObserveAmount("requested", req.Amount.InexactFloat64())
	for _, status := range committed {
		s.afterCommit(ctx, payout, status)
	}
	return payout, nil
}

func (s *PayoutServiceImpl) replayFromCache(ctx context.Context, cacheKey string, req ports.CreatePayoutRequest) (*domain.PayoutRequest, error) {
	if s.idempCache == nil {
		return nil, nil
	}
	cached, err := s.idempCache.Get(ctx, cacheKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("redis idempotency check failed, falling through to DB")
		return nil, nil
	}
	if cached == nil {
		return nil, nil
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(cached, &rec); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("corrupt idempotency cache entry ignored")
		return nil, nil
	}
	if !sameRequest(rec.Amount, rec.PaymentMethodID, req) {
		return nil, apperror.ErrIdempotencyKeyMismatch()
	}
	payout, err := s.payoutRepo.GetByID(ctx, rec.PayoutID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get payout: %w", err))
	}
	return payout, nil
}

func (s *PayoutServiceImpl) cacheIdempotency(ctx context.Context, cacheKey string, payout *domain.PayoutRequest) {
	if s.idempCache == nil {
		return
	}
	data, err := json.Marshal(idempotencyRecord{
		PayoutID:        payout.ID,
		Amount:          payout.RequestedAmount,
		PaymentMethodID: payout.PaymentMethodID,
	})
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, cacheKey, data, s.idempTTL); err != nil {
		s.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache idempotency result")
	}
}

func sameRequest(amount decimal.Decimal, methodID uuid.UUID, req ports.CreatePayoutRequest) bool {
	return amount.Equal(req.Amount) && methodID == req.PaymentMethodID
}

// checkLimits enforces the daily and monthly caps on requested amounts. Windows
// are calendar day and month in UTC. A zero limit is uncapped.
func (s *PayoutServiceImpl) checkLimits(ctx context.Context, tx pgx.Tx, cfg *domain.PayoutConfiguration, vendorID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	y, m, d := now.Date()
	windows := []struct {
		name  string
		since time.Time
		limit decimal.Decimal
	}{
		{"Daily", time.Date(y, m, d, 0, 0, 0, 0, time.UTC), cfg.DailyPayoutLimit},
		{"Monthly", time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), cfg.MonthlyPayoutLimit},
	}
	for _, w := range windows {
		if !w.limit.IsPositive() {
			continue
		}
		used, err := s.payoutRepo.SumRequestedSince(ctx, tx, vendorID, w.since)
		if err != nil {
			return apperror.StorageFailure(fmt.Errorf("sum %s payouts: %w", w.name, err))
		}
		if used.Add(amount).GreaterThan(w.limit) {
			return apperror.ErrLimitExceeded(w.name)
		}
	}
	return nil
}

type approval struct {
	actor     string
	actorType domain.PerformerType
	action    domain.AuditAction
	notes     string
}

// approveInTx fixes the fee breakdown on a pending payout and releases any
// part of the reservation that was not approved.
func (s *PayoutServiceImpl) approveInTx(
	ctx context.Context,
	tx pgx.Tx,
	p *domain.PayoutRequest,
	cfg *domain.PayoutConfiguration,
	approved, other decimal.Decimal,
	by approval,
) error {
	if approved.IsZero() {
		approved = p.RequestedAmount
	}
	if err := validateMoney(approved); err != nil {
		return err
	}
	if approved.GreaterThan(p.RequestedAmount) || other.IsNegative() {
		return apperror.ErrInvalidAmount()
	}
	fees := cfg.ComputeFees(approved, other)
	if !fees.FinalAmount.IsPositive() {
		return apperror.ErrInvalidAmount()
	}

	if diff := p.RequestedAmount.Sub(approved); diff.IsPositive() {
		if err := s.ledger.ReleaseReservation(ctx, tx, p.VendorID, diff, p.ID); err != nil {
			return err
		}
	}

	now := s.now()
	old := p.Status
	p.ApprovedAmount = fees.ApprovedAmount
	p.ProcessingFee = fees.ProcessingFee
	p.TDSAmount = fees.TDSAmount
	p.OtherDeductions = fees.OtherDeductions
	p.FinalAmount = fees.FinalAmount
	p.Status = domain.PayoutStatusApproved
	p.ApprovedBy = &by.actor
	p.ApprovedAt = &now
	p.UpdatedAt = now
	if by.notes != "" {
		notes := by.notes
		p.AdminNotes = &notes
	}

	if err := s.payoutRepo.Update(ctx, tx, p); err != nil {
		return apperror.StorageFailure(fmt.Errorf("update payout: %w", err))
	}
	if err := s.audit.Record(ctx, tx, &domain.PayoutAuditEntry{
		PayoutID:      p.ID,
		Action:        by.action,
		OldStatus:     &old,
		NewStatus:     domain.PayoutStatusApproved,
		PerformedBy:   by.actor,
		PerformerType: by.actorType,
		Notes:         by.notes,
		Metadata: map[string]any{
			"approved_amount":  fees.ApprovedAmount.StringFixed(domain.CurrencyPlaces),
			"processing_fee":   fees.ProcessingFee.StringFixed(domain.CurrencyPlaces),
			"tds_amount":       fees.TDSAmount.StringFixed(domain.CurrencyPlaces),
			"other_deductions": fees.OtherDeductions.StringFixed(domain.CurrencyPlaces),
			"final_amount":     fees.FinalAmount.StringFixed(domain.CurrencyPlaces),
			"configuration_id": cfg.ID,
		},
	}); err != nil {
		return apperror.StorageFailure(err)
	}
	return nil
}

// Approve moves a pending payout to approved using the configuration version
// recorded on the payout.
func (s *PayoutServiceImpl) Approve(ctx context.Context, req ports.ApprovePayoutRequest) (*domain.PayoutRequest, error) {
	return s.transition(ctx, req.PayoutID, transition{
		to:        domain.PayoutStatusApproved,
		actor:     req.AdminID,
		actorType: domain.PerformerAdmin,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error) {
			cfg, err := s.configs.GetConfiguration(ctx, p.ConfigurationID)
			if err != nil {
				return nil, err
			}
			err = s.approveInTx(ctx, tx, p, cfg, req.ApprovedAmount, req.OtherDeductions, approval{
				actor:     req.AdminID,
				actorType: domain.PerformerAdmin,
				action:    domain.AuditActionApproved,
				notes:     req.Notes,
			})
			return nil, err
		},
	})
}

// Reject returns the reserved funds of a pending payout.
func (s *PayoutServiceImpl) Reject(ctx context.Context, payoutID uuid.UUID, adminID string, reason string) (*domain.PayoutRequest, error) {
	return s.reject(ctx, payoutID, adminID, domain.PerformerAdmin, domain.AuditActionRejected, reason)
}

func (s *PayoutServiceImpl) reject(ctx context.Context, payoutID uuid.UUID, actor string, actorType domain.PerformerType, action domain.AuditAction, reason string) (*domain.PayoutRequest, error) {
	return s.transition(ctx, payoutID, transition{
		to:        domain.PayoutStatusRejected,
		actor:     actor,
		actorType: actorType,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error) {
			amount := p.ReservedAmount()
			if err := s.ledger.ReleaseReservation(ctx, tx, p.VendorID, amount, p.ID); err != nil {
				return nil, err
			}
			now := s.now()
			p.RejectionReason = &reason
			p.RejectedAt = &now
			p.ProcessedBy = &actor
			return &domain.PayoutAuditEntry{
				Action:   action,
				Notes:    reason,
				Metadata: map[string]any{"released_amount": amount.StringFixed(domain.CurrencyPlaces)},
			}, nil
		},
	})
}

// MarkProcessing records that the payout has been handed to the payment rail.
func (s *PayoutServiceImpl) MarkProcessing(ctx context.Context, payoutID uuid.UUID, adminID string) (*domain.PayoutRequest, error) {
	return s.transition(ctx, payoutID, transition{
		to:        domain.PayoutStatusProcessing,
		actor:     adminID,
		actorType: domain.PerformerAdmin,
		apply: func(_ context.Context, _ pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error) {
			now := s.now()
			p.ProcessingAt = &now
			p.ProcessedBy = &adminID
			return &domain.PayoutAuditEntry{Action: domain.AuditActionProcessing}, nil
		},
	})
}

// MarkPaid settles the approved amount out of the vendor's pending balance.
func (s *PayoutServiceImpl) MarkPaid(ctx context.Context, payoutID uuid.UUID, adminID string, transactionID string, referenceNumber string) (*domain.PayoutRequest, error) {
	return s.transition(ctx, payoutID, transition{
		to:        domain.PayoutStatusPaid,
		actor:     adminID,
		actorType: domain.PerformerAdmin,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error) {
			if transactionID == "" {
				return nil, apperror.Validation("transaction_id is required")
			}
			amount := p.ReservedAmount()
			if err := s.ledger.SettleReservation(ctx, tx, p.VendorID, amount, p.ID); err != nil {
				return nil, err
			}
			now := s.now()
			p.TransactionID = &transactionID
			if referenceNumber != "" {
				p.ReferenceNumber = &referenceNumber
			}
			p.PaidAt = &now
			p.ProcessedBy = &adminID
			return &domain.PayoutAuditEntry{
				Action: domain.AuditActionPaid,
				Metadata: map[string]any{
					"settled_amount":   amount.StringFixed(domain.CurrencyPlaces),
					"transaction_id":   transactionID,
					"reference_number": referenceNumber,
				},
			}, nil
		},
	})
}

// MarkFailed returns the approved amount to the vendor's available balance.
func (s *PayoutServiceImpl) MarkFailed(ctx context.Context, payoutID uuid.UUID, adminID string, reason string) (*domain.PayoutRequest, error) {
	return s.transition(ctx, payoutID, transition{
		to:        domain.PayoutStatusFailed,
		actor:     adminID,
		actorType: domain.PerformerAdmin,
		apply: func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error) {
			amount := p.ReservedAmount()
			if err := s.ledger.ReleaseReservation(ctx, tx, p.VendorID, amount, p.ID); err != nil {
				return nil, err
			}
			now := s.now()
			p.FailureReason = &reason
			p.FailedAt = &now
			p.ProcessedBy = &adminID
			return &domain.PayoutAuditEntry{
				Action:   domain.AuditActionFailed,
				Notes:    reason,
				Metadata: map[string]any{"released_amount": amount.StringFixed(domain.CurrencyPlaces)},
			}, nil
		},
	})
}

// transition describes one state-machine step. apply mutates the locked payout
// and performs the ledger call. It returns the audit entry to append, or nil
// when it has already persisted the payout and its audit entry itself.
type transition struct {
	to        domain.PayoutStatus
	actor     string
	actorType domain.PerformerType
	apply     func(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) (*domain.PayoutAuditEntry, error)
}

func (s *PayoutServiceImpl) transition(ctx context.Context, payoutID uuid.UUID, t transition) (*domain.PayoutRequest, error) {
	payout, current, err := s.runTransition(ctx, payoutID, t)
	if err != nil {
		s.countDenied(err)
		if current != nil {
			s.recordDenied(ctx, current, t, err)
		}
		return nil, err
	}
	s.afterCommit(ctx, payout, t.to)
	return payout, nil
}

// runTransition returns the payout as it was locked when the attempt fails after
// the row was found, so the caller can audit the denial.
func (s *PayoutServiceImpl) runTransition(ctx context.Context, payoutID uuid.UUID, t transition) (*domain.PayoutRequest, *domain.PayoutRequest, error) {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, apperror.StorageFailure(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	p, err := s.payoutRepo.GetByIDForUpdate(ctx, tx, payoutID)
	if err != nil {
		return nil, nil, apperror.StorageFailure(fmt.Errorf("lock payout: %w", err))
	}
	if p == nil {
		return nil, nil, apperror.ErrNotFound("Payout request")
	}
	snapshot := *p

	old := p.Status
	if !old.CanTransitionTo(t.to) {
		return nil, &snapshot, apperror.ErrInvalidTransition(string(old), string(t.to))
	}

	entry, err := t.apply(ctx, tx, p)
	if err != nil {
		return nil, &snapshot, err
	}

	if entry != nil {
		now := s.now()
		p.Status = t.to
		p.UpdatedAt = now
		if err := s.payoutRepo.Update(ctx, tx, p); err != nil {
			return nil, &snapshot, apperror.StorageFailure(fmt.Errorf("update payout: %w", err))
		}
		entry.PayoutID = p.ID
		entry.OldStatus = &old
		entry.NewStatus = t.to
		entry.PerformedBy = t.actor
		entry.PerformerType = t.actorType
		if err := s.audit.Record(ctx, tx, entry); err != nil {
			return nil, &snapshot, apperror.StorageFailure(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &snapshot, apperror.StorageFailure(fmt.Errorf("commit: %w", err))
	}
	return p, nil, nil
}

func (s *PayoutServiceImpl) recordDenied(ctx context.Context, p *domain.PayoutRequest, t transition, cause error) {
	code := apperror.CodeStorageFailure
	var appErr *apperror.AppError
	if errors.As(cause, &appErr) {
		code = appErr.Code
	}
	old := p.Status
	s.audit.RecordFailure(ctx, &domain.PayoutAuditEntry{
		PayoutID:      p.ID,
		Action:        domain.AuditActionTransitionDenied,
		OldStatus:     &old,
		NewStatus:     p.Status,
		PerformedBy:   t.actor,
		PerformerType: t.actorType,
		Notes:         cause.Error(),
		Metadata: map[string]any{
			"attempted_status": string(t.to),
			"error_code":       code,
		},
	})
}

func (s *PayoutServiceImpl) countDenied(err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		s.metrics.IncDenied(appErr.Code)
		return
	}
	s.metrics.IncDenied(apperror.CodeStorageFailure)
}

// afterCommit runs the side effects of a committed transition. Nothing here
// can fail the transition.
func (s *PayoutServiceImpl) afterCommit(ctx context.Context, p *domain.PayoutRequest, status domain.PayoutStatus) {
	s.metrics.IncTransition(string(status))
	switch status {
	case domain.PayoutStatusApproved:
		s.metrics.ObserveAmount("approved", p.ApprovedAmount.InexactFloat64())
	case domain.PayoutStatusPaid:
		s.metrics.ObserveAmount("paid", p.FinalAmount.InexactFloat64())
	}

	s.log.Info().
		Str("payout_id", p.ID.String()).
		Str("vendor_id", p.VendorID.String()).
		Str("status", string(status)).
		Str("requested_amount", p.RequestedAmount.StringFixed(domain.CurrencyPlaces)).
		Str("final_amount", p.FinalAmount.StringFixed(domain.CurrencyPlaces)).
		Msg("payout transition committed")

	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"status":           string(status),
		"requested_amount": p.RequestedAmount.StringFixed(domain.CurrencyPlaces),
		"payment_method":   string(p.PaymentMethod),
	}
	if p.ApprovedAt != nil {
		payload["approved_amount"] = p.ApprovedAmount.StringFixed(domain.CurrencyPlaces)
		payload["final_amount"] = p.FinalAmount.StringFixed(domain.CurrencyPlaces)
	}
	switch status {
	case domain.PayoutStatusRejected:
		if p.RejectionReason != nil {
			payload["reason"] = *p.RejectionReason
		}
	case domain.PayoutStatusFailed:
		if p.FailureReason != nil {
			payload["reason"] = *p.FailureReason
		}
	case domain.PayoutStatusPaid:
		if p.TransactionID != nil {
			payload["transaction_id"] = *p.TransactionID
		}
	}
	s.notifier.Dispatch(ctx, domain.PayoutEvent{
		VendorID:   p.VendorID,
		PayoutID:   p.ID,
		EventType:  domain.EventForStatus(status),
		Payload:    payload,
		OccurredAt: s.now(),
	})
}

// GetPayout returns a payout by id.
func (s *PayoutServiceImpl) GetPayout(ctx context.Context, payoutID uuid.UUID) (*domain.PayoutRequest, error) {
	p, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get payout: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payout request")
	}
	return p, nil
}

// ListPayouts returns payouts newest first.
func (s *PayoutServiceImpl) ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutRequest, int64, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	items, total, err := s.payoutRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, apperror.StorageFailure(fmt.Errorf("list payouts: %w", err))
	}
	if items == nil {
		items = []domain.PayoutRequest{}
	}
	return items, total, nil
}

// GetAuditTrail returns every audit entry of the payout, oldest first.
func (s *PayoutServiceImpl) GetAuditTrail(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error) {
	if _, err := s.GetPayout(ctx, payoutID); err != nil {
		return nil, err
	}
	return s.audit.Trail(ctx, payoutID)
}

// ExpireStalePending rejects pending payouts created more than olderThan ago.
// A non-positive olderThan disables expiry.
func (s *PayoutServiceImpl) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-olderThan)
	reason := fmt.Sprintf("pending longer than %s", olderThan)

	stale, err := s.payoutRepo.ListPendingBefore(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return 0, apperror.StorageFailure(fmt.Errorf("list stale payouts: %w", err))
	}

	expired := 0
	var errs []error
	for _, p := range stale {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := s.reject(ctx, p.ID, domain.SystemPerformer, domain.PerformerSystem, domain.AuditActionExpired, reason)
		switch {
		case err == nil:
			expired++
		case apperror.Is(err, apperror.CodeInvalidTransition):
			// an administrator acted first
		default:
			errs = append(errs, fmt.Errorf("expire payout %s: %w", p.ID, err))
		}
	}

	if expired > 0 {
		s.log.Info().Int("expired", expired).Dur("older_than", olderThan).Msg("stale pending payouts expired")
	}
	return expired, errors.Join(errs...)
}
