package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of payout event delivered to the notification dispatcher.
type EventType string

const (
	EventPayoutCreated    EventType = "PAYOUT_CREATED"
	EventPayoutApproved   EventType = "PAYOUT_APPROVED"
	EventPayoutRejected   EventType = "PAYOUT_REJECTED"
	EventPayoutProcessing EventType = "PAYOUT_PROCESSING"
	EventPayoutPaid       EventType = "PAYOUT_PAID"
	EventPayoutFailed     EventType = "PAYOUT_FAILED"
)

// EventForStatus maps a payout status to the event emitted on entering it.
func EventForStatus(s PayoutStatus) EventType {
	switch s {
	case PayoutStatusApproved:
		return EventPayoutApproved
	case PayoutStatusRejected:
		return EventPayoutRejected
	case PayoutStatusProcessing:
		return EventPayoutProcessing
	case PayoutStatusPaid:
		return EventPayoutPaid
	case PayoutStatusFailed:
		return EventPayoutFailed
	}
	return EventPayoutCreated
}

// PayoutEvent is handed to the notification dispatcher after a transition commits.
type PayoutEvent struct {
	VendorID   uuid.UUID      `json:"vendor_id"`
	PayoutID   uuid.UUID      `json:"payout_id"`
	EventType  EventType      `json:"event_type"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}
