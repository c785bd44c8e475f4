package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
)

// TenantAggregateModel holds the columns every tenant-owned aggregate row
// carries. Version backs optimistic locking on save.
type TenantAggregateModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_loan_tenant_number,priority:1"`
	Version   int        `gorm:"not null;default:1"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// FromDomainTenantAggregateRoot copies the aggregate header into the row
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.ID = t.ID
	m.TenantID = t.TenantID
	m.Version = t.Version
	m.CreatedBy = t.CreatedBy
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// PopulateTenantAggregateRoot copies the row header into t
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot) {
	t.ID = m.ID
	t.TenantID = m.TenantID
	t.Version = m.Version
	t.CreatedBy = m.CreatedBy
	t.CreatedAt = m.CreatedAt
	t.UpdatedAt = m.UpdatedAt
}
