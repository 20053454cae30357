package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names an entry in a payout's history.
type AuditAction string

const (
	AuditActionCreated          AuditAction = "created"
	AuditActionApproved         AuditAction = "approved"
	AuditActionAutoApproved     AuditAction = "auto_approved"
	AuditActionRejected         AuditAction = "rejected"
	AuditActionProcessing       AuditAction = "processing"
	AuditActionPaid             AuditAction = "paid"
	AuditActionFailed           AuditAction = "failed"
	AuditActionExpired          AuditAction = "expired"
	AuditActionTransitionDenied AuditAction = "transition_denied"
)

// PerformerType identifies who drove a transition.
type PerformerType string

const (
	PerformerVendor PerformerType = "vendor"
	PerformerAdmin  PerformerType = "admin"
	PerformerSystem PerformerType = "system"
)

// SystemPerformer is recorded as performed_by for automatic transitions.
const SystemPerformer = "system"

// PayoutAuditEntry records a single transition (or denied attempt) on a payout.
type PayoutAuditEntry struct {
	ID            uuid.UUID      `json:"id"`
	PayoutID      uuid.UUID      `json:"payout_id"`
	Action        AuditAction    `json:"action"`
	OldStatus     *PayoutStatus  `json:"old_status,omitempty"`
	NewStatus     PayoutStatus   `json:"new_status"`
	PerformedBy   string         `json:"performed_by"`
	PerformerType PerformerType  `json:"performer_type"`
	Notes         string         `json:"notes,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
