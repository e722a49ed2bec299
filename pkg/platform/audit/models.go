package audit

import (
	"context"
	"time"

	id "github.com/taxlien-online/taxlien-nft/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// issuance, redemption payouts, and title claims. These require
	// tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// registry initialization and authorization failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility, such as administrative status flags.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key lifecycle actions. Keep
// it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	RequestID string

	// Lien fields, meaningful only when HasLien is set. Lien ids start at
	// zero, so a zero LienID alone cannot mark an event as registry-level.
	HasLien       bool
	LienID        id.LienID
	Investor      id.AccountID
	ParcelID      string
	FaceAmount    uint64
	APR           uint16
	OldStatus     string
	NewStatus     string
	Payout        uint64
	Returns       uint64
	PropertyValue uint64
}

// AuditEvent names the actions emitted by the lien engine.
type AuditEvent string

const (
	EventRegistryInitialized AuditEvent = "registry_initialized"
	EventLienCreated         AuditEvent = "lien_created"
	EventStatusUpdated       AuditEvent = "status_updated"
	EventLienRedeemed        AuditEvent = "lien_redeemed"
	EventPropertyClaimed     AuditEvent = "property_claimed"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventRegistryInitialized: CategorySecurity,
	EventLienCreated:         CategoryCompliance,
	EventLienRedeemed:        CategoryCompliance,
	EventPropertyClaimed:     CategoryCompliance,
	EventStatusUpdated:       CategoryOperations,
}

// CategoryFor returns the category for an event, defaulting to operations.
func CategoryFor(event AuditEvent) EventCategory {
	if c, ok := eventCategories[event]; ok {
		return c
	}
	return CategoryOperations
}

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByLien(ctx context.Context, lienID id.LienID) ([]Event, error)
}
