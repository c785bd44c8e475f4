package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPortfolioMetricsProvider implements PortfolioMetricsProvider over the loans table.
type GormPortfolioMetricsProvider struct {
	db *gorm.DB
}

// NewGormPortfolioMetricsProvider creates a new GormPortfolioMetricsProvider.
func NewGormPortfolioMetricsProvider(db *gorm.DB) *GormPortfolioMetricsProvider {
	return &GormPortfolioMetricsProvider{db: db}
}

// CountByBucket returns the number of active loans per committed bucket for a tenant.
func (p *GormPortfolioMetricsProvider) CountByBucket(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Bucket string `gorm:"column:bucket"`
		Count  int64  `gorm:"column:count"`
	}

	var rows []row
	err := p.db.WithContext(ctx).
		Table("loans").
		Select("bucket, COUNT(*) AS count").
		Where("tenant_id = ? AND status = ?", tenantID, "ACTIVE").
		Group("bucket").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Bucket] = r.Count
	}
	return counts, nil
}

// GormTenantProvider implements TenantProvider using GORM.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns every tenant with at least one active loan.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("loans").
		Distinct("tenant_id").
		Where("status = ?", "ACTIVE").
		Pluck("tenant_id", &ids).Error
	return ids, err
}
