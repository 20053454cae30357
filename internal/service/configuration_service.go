package service

import (
	"context"
	"fmt"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const maxConfigurationHistory = 100

type configurationService struct {
	transactor ports.DBTransactor
	repo       ports.ConfigurationRepository
	log        zerolog.Logger
	now        func() time.Time
}

// NewConfigurationService creates the versioned payout configuration store.
func NewConfigurationService(transactor ports.DBTransactor, repo ports.ConfigurationRepository, log zerolog.Logger) ports.ConfigurationService {
	return &configurationService{
		transactor: transactor,
		repo:       repo,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *configurationService) GetActiveConfiguration(ctx context.Context) (*domain.PayoutConfiguration, error) {
	cfg, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get active configuration: %w", err))
	}
	if cfg == nil {
		return nil, apperror.ErrNotConfigured()
	}
	return cfg, nil
}

func (s *configurationService) GetConfiguration(ctx context.Context, id int64) (*domain.PayoutConfiguration, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get configuration %d: %w", id, err))
	}
	if cfg == nil {
		return nil, apperror.ErrNotFound("Payout configuration")
	}
	return cfg, nil
}

// UpdateConfiguration validates values and activates them as a new version.
func (s *configurationService) UpdateConfiguration(ctx context.Context, adminID string, values ports.ConfigurationValues) (*domain.PayoutConfiguration, error) {
	cfg := &domain.PayoutConfiguration{
		MinPayoutAmount:          values.MinPayoutAmount,
		MaxPayoutAmount:          values.MaxPayoutAmount,
		DailyPayoutLimit:         values.DailyPayoutLimit,
		MonthlyPayoutLimit:       values.MonthlyPayoutLimit,
		ProcessingFeePercentage:  values.ProcessingFeePercentage,
		ProcessingFeeFixed:       values.ProcessingFeeFixed,
		TDSPercentage:            values.TDSPercentage,
		AutoApprovalLimit:        values.AutoApprovalLimit,
		KYCRequiredForPayouts:    values.KYCRequiredForPayouts,
		BankVerificationRequired: values.BankVerificationRequired,
		IsActive:                 true,
		CreatedBy:                adminID,
		CreatedAt:                s.now(),
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperror.ErrInvalidConfiguration(err.Error())
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.repo.Activate(ctx, tx, cfg); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("activate configuration: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("commit: %w", err))
	}

	s.log.Info().
		Int64("configuration_id", cfg.ID).
		Str("admin_id", adminID).
		Str("min", cfg.MinPayoutAmount.String()).
		Str("max", cfg.MaxPayoutAmount.String()).
		Str("auto_approval_limit", cfg.AutoApprovalLimit.String()).
		Msg("payout configuration activated")

	return cfg, nil
}

// ListConfigurationHistory returns versions newest first.
func (s *configurationService) ListConfigurationHistory(ctx context.Context, limit int) ([]domain.PayoutConfiguration, error) {
	if limit <= 0 || limit > maxConfigurationHistory {
		limit = maxConfigurationHistory
	}
	items, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("list configurations: %w", err))
	}
	if items == nil {
		items = []domain.PayoutConfiguration{}
	}
	return items, nil
}
