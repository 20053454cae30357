package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"vendor-payout-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository over payout_audit_logs.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

const insertAuditQuery = `INSERT INTO payout_audit_logs
	(id, payout_id, action, old_status, new_status, performed_by, performer_type, notes, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Create appends an entry inside the caller's transaction.
func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.PayoutAuditEntry) error {
	args, err := auditArgs(e)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertAuditQuery, args...); err != nil {
		return fmt.Errorf("insert payout audit entry: %w", err)
	}
	return nil
}

// CreateStandalone appends an entry in its own implicit transaction.
func (r *AuditRepo) CreateStandalone(ctx context.Context, e *domain.PayoutAuditEntry) error {
	args, err := auditArgs(e)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertAuditQuery, args...); err != nil {
		return fmt.Errorf("insert standalone payout audit entry: %w", err)
	}
	return nil
}

// ListByPayout returns the payout's history in chronological order.
func (r *AuditRepo) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.PayoutAuditEntry, error) {
	query := `SELECT id, payout_id, action, old_status, new_status, performed_by, performer_type, notes, metadata, created_at
		FROM payout_audit_logs WHERE payout_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, payoutID)
	if err != nil {
		return nil, fmt.Errorf("list payout audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.PayoutAuditEntry
	for rows.Next() {
		var (
			e        domain.PayoutAuditEntry
			metadata []byte
		)
		err := rows.Scan(
			&e.ID, &e.PayoutID, &e.Action, &e.OldStatus, &e.NewStatus,
			&e.PerformedBy, &e.PerformerType, &e.Notes, &metadata, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payout audit row: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payout audit rows: %w", err)
	}
	return entries, nil
}

func auditArgs(e *domain.PayoutAuditEntry) ([]any, error) {
	var metadata []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode audit metadata: %w", err)
		}
		metadata = b
	}
	return []any{
		e.ID, e.PayoutID, e.Action, e.OldStatus, e.NewStatus,
		e.PerformedBy, e.PerformerType, e.Notes, metadata, e.CreatedAt,
	}, nil
}
