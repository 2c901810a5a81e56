package domain

import "time"

// Event types
const (
	EventTypeSnapshotGenerated = "snapshot.generated"
	EventTypeSnapshotFinalized = "snapshot.finalized"
	EventTypeSnapshotDeleted   = "snapshot.deleted"
	EventTypePeriodClosed      = "period.closed"
	EventTypePaymentAllocated  = "payment.allocated"
)

// Aggregate types
const (
	AggregateTypeSnapshot = "snapshot"
	AggregateTypeClose    = "year_end_close"
	AggregateTypePayment  = "payment"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	TenantID      string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
