package postgres

import (
	"context"
	"errors"
	"fmt"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const configurationColumns = `id, min_payout_amount, max_payout_amount, daily_payout_limit, monthly_payout_limit,
	processing_fee_percentage, processing_fee_fixed, tds_percentage, auto_approval_limit,
	kyc_required_for_payouts, bank_verification_required, is_active, created_by, created_at`

// ConfigurationRepo implements ports.ConfigurationRepository.
type ConfigurationRepo struct {
	pool Pool
}

// NewConfigurationRepo creates a new ConfigurationRepo.
func NewConfigurationRepo(pool Pool) *ConfigurationRepo {
	return &ConfigurationRepo{pool: pool}
}

// GetActive returns the active version, or nil, nil when none exists.
func (r *ConfigurationRepo) GetActive(ctx context.Context) (*domain.PayoutConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM payout_configurations WHERE is_active`
	return scanConfiguration(r.pool.QueryRow(ctx, query))
}

// GetByID returns a specific version, active or not.
func (r *ConfigurationRepo) GetByID(ctx context.Context, id int64) (*domain.PayoutConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM payout_configurations WHERE id = $1`
	return scanConfiguration(r.pool.QueryRow(ctx, query, id))
}

// Activate deactivates the current version and inserts cfg as the active one.
// The partial unique index on is_active rejects a concurrent second activation.
func (r *ConfigurationRepo) Activate(ctx context.Context, tx pgx.Tx, cfg *domain.PayoutConfiguration) error {
	if _, err := tx.Exec(ctx, `UPDATE payout_configurations SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("deactivate payout configuration: %w", err)
	}

	query := `INSERT INTO payout_configurations (min_payout_amount, max_payout_amount, daily_payout_limit,
		monthly_payout_limit, processing_fee_percentage, processing_fee_fixed, tds_percentage, auto_approval_limit,
		kyc_required_for_payouts, bank_verification_required, is_active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $12)
		RETURNING id`

	err := tx.QueryRow(ctx, query,
		cfg.MinPayoutAmount, cfg.MaxPayoutAmount, cfg.DailyPayoutLimit, cfg.MonthlyPayoutLimit,
		cfg.ProcessingFeePercentage, cfg.ProcessingFeeFixed, cfg.TDSPercentage, cfg.AutoApprovalLimit,
		cfg.KYCRequiredForPayouts, cfg.BankVerificationRequired, cfg.CreatedBy, cfg.CreatedAt,
	).Scan(&cfg.ID)
	if err != nil {
		return fmt.Errorf("insert payout configuration: %w", err)
	}
	cfg.IsActive = true
	return nil
}

// List returns the most recent versions, newest first.
func (r *ConfigurationRepo) List(ctx context.Context, limit int) ([]domain.PayoutConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM payout_configurations ORDER BY id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list payout configurations: %w", err)
	}
	defer rows.Close()

	var configs []domain.PayoutConfiguration
	for rows.Next() {
		c := domain.PayoutConfiguration{}
		if err := rows.Scan(configurationDest(&c)...); err != nil {
			return nil, fmt.Errorf("scan payout configuration row: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout configuration rows: %w", err)
	}
	return configs, nil
}

func configurationDest(c *domain.PayoutConfiguration) []any {
	return []any{
		&c.ID, &c.MinPayoutAmount, &c.MaxPayoutAmount, &c.DailyPayoutLimit, &c.MonthlyPayoutLimit,
		&c.ProcessingFeePercentage, &c.ProcessingFeeFixed, &c.TDSPercentage, &c.AutoApprovalLimit,
		&c.KYCRequiredForPayouts, &c.BankVerificationRequired, &c.IsActive, &c.CreatedBy, &c.CreatedAt,
	}
}

func scanConfiguration(row pgx.Row) (*domain.PayoutConfiguration, error) {
	c := &domain.PayoutConfiguration{}
	if err := row.Scan(configurationDest(c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payout configuration: %w", err)
	}
	return c, nil
}
