package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate and published after the
// transaction that produced it commits
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent implements DomainEvent. Concrete events embed it and add
// their payload fields.
type BaseDomainEvent struct {
	ID       uuid.UUID `json:"event_id"`
	Name     string    `json:"event_type"`
	At       time.Time `json:"occurred_at"`
	AggrID   uuid.UUID `json:"aggregate_id"`
	AggrType string    `json:"aggregate_type"`
	Tenant   uuid.UUID `json:"tenant_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Name }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggrID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggrType }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Tenant }

// NewBaseDomainEvent stamps a new event with a fresh ID and the current time
func NewBaseDomainEvent(eventType, aggregateType string, aggregateID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:       uuid.New(),
		Name:     eventType,
		At:       time.Now(),
		AggrID:   aggregateID,
		AggrType: aggregateType,
		Tenant:   tenantID,
	}
}
