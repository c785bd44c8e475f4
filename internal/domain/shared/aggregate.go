package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds identity and audit timestamps
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseAggregateRoot carries the optimistic-lock version and the events
// raised since the aggregate was loaded.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	pending []DomainEvent
}

// GetVersion returns the version the aggregate was loaded at
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion is called by repositories once a save has committed
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent queues event for publication after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events in the order they were raised
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents drops the queued events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}

// TenantAggregateRoot is an aggregate owned by one tenant. Every lookup
// must be scoped by TenantID.
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
}

// NewTenantAggregateRoot starts a new aggregate at version 1
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now()
	return TenantAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{
			BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			Version:    1,
		},
		TenantID: tenantID,
	}
}
