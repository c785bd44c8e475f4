package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLoanRepository implements lending.LoanRepository using GORM. A loan is
// stored across loans, loan_installments and legal_cases; its bucket history
// goes to bucket_transitions.
type GormLoanRepository struct {
	db *gorm.DB
}

// NewGormLoanRepository creates a new GormLoanRepository
func NewGormLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// withChildren preloads the schedule and legal cases in a stable order
func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Preload("LegalCases", func(db *gorm.DB) *gorm.DB { return db.Order("opened_at ASC") })
}

// findOne loads a single loan with its children and payment references.
// Returns nil, nil when no row matches.
func (r *GormLoanRepository) findOne(ctx context.Context, query string, args ...any) (*lending.Loan, error) {
	var model models.LoanModel
	db := r.db.WithContext(ctx)
	if err := withChildren(db).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var refs []string
	if err := db.Model(&models.PaymentModel{}).
		Where("loan_id = ?", model.ID).
		Order("recorded_at ASC").
		Pluck("reference", &refs).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(refs)
}

// FindByID finds a loan by its ID across tenants
func (r *GormLoanRepository) FindByID(ctx context.Context, id uuid.UUID) (*lending.Loan, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByIDForTenant finds a loan by ID for a specific tenant
func (r *GormLoanRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*lending.Loan, error) {
	return r.findOne(ctx, "tenant_id = ? AND id = ?", tenantID, id)
}

// FindByLoanNumber finds a loan by its number for a tenant
func (r *GormLoanRepository) FindByLoanNumber(ctx context.Context, tenantID uuid.UUID, loanNumber string) (*lending.Loan, error) {
	return r.findOne(ctx, "tenant_id = ? AND loan_number = ?", tenantID, loanNumber)
}

// FindAllForTenant lists loans for a tenant without their schedules
func (r *GormLoanRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter lending.LoanFilter) ([]lending.Loan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.LoanModel{}).
		Where("tenant_id = ?", tenantID)
	// a new session so the count and the page query share the filter only
	query = applyLoanFilter(query, filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var loanModels []models.LoanModel
	if err := applyPagination(query, filter.Filter, LoanSortFields, "created_at").
		Preload("LegalCases").
		Find(&loanModels).Error; err != nil {
		return nil, 0, err
	}
	loans := make([]lending.Loan, 0, len(loanModels))
	for i := range loanModels {
		loan, err := loanModels[i].ToDomain(nil)
		if err != nil {
			return nil, 0, err
		}
		loans = append(loans, *loan)
	}
	return loans, total, nil
}

func applyLoanFilter(query *gorm.DB, filter lending.LoanFilter) *gorm.DB {
	if filter.Search != "" {
		query = query.Where("LOWER(loan_number) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Bucket != nil {
		query = query.Where("bucket = ?", *filter.Bucket)
	}
	if filter.BorrowerID != nil {
		query = query.Where("borrower_id = ?", *filter.BorrowerID)
	}
	return query
}

// FindActiveIDs returns the IDs of every active loan, across tenants
func (r *GormLoanRepository) FindActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.LoanModel{}).
		Where("status = ?", lending.LoanStatusActive).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountByBucket counts active loans of a tenant per committed bucket
func (r *GormLoanRepository) CountByBucket(ctx context.Context, tenantID uuid.UUID) (map[lending.Bucket]int64, error) {
	var rows []struct {
		Bucket lending.Bucket
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&models.LoanModel{}).
		Select("bucket, COUNT(*) AS count").
		Where("tenant_id = ? AND status = ?", tenantID, lending.LoanStatusActive).
		Group("bucket").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[lending.Bucket]int64, len(rows))
	for _, row := range rows {
		counts[row.Bucket] = row.Count
	}
	return counts, nil
}

// FindTransitions returns the bucket history of a loan, oldest first
func (r *GormLoanRepository) FindTransitions(ctx context.Context, loanID uuid.UUID) ([]lending.BucketTransition, error) {
	var rows []models.BucketTransitionModel
	if err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("occurred_at ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	transitions := make([]lending.BucketTransition, len(rows))
	for i := range rows {
		transitions[i] = rows[i].ToDomain()
	}
	return transitions, nil
}

// Create inserts a newly disbursed loan with its schedule
func (r *GormLoanRepository) Create(ctx context.Context, loan *lending.Loan) error {
	model := models.LoanModelFromDomain(loan)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		return r.appendTransitions(tx, loan)
	})
	if err != nil {
		return err
	}
	loan.ClearPendingTransitions()
	return nil
}

// SaveWithLock updates the loan if its version still matches the one that
// was loaded, then writes its installments, legal cases and pending
// transitions. On success the loan's version is incremented and its pending
// transitions are cleared.
func (r *GormLoanRepository) SaveWithLock(ctx context.Context, loan *lending.Loan) error {
	model := models.LoanModelFromDomain(loan)
	model.Version = loan.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.LoanModel{}).
			Where("id = ? AND version = ?", loan.ID, loan.Version).
			Select("*").
			Omit("id", "tenant_id", "created_by", "created_at", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return lending.ErrConcurrentModification
		}

		if len(model.Installments) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&model.Installments).Error; err != nil {
				return fmt.Errorf("failed to save installments: %w", err)
			}
		}
		if len(model.LegalCases) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(&model.LegalCases).Error; err != nil {
				return fmt.Errorf("failed to save legal cases: %w", err)
			}
		}
		return r.appendTransitions(tx, loan)
	})
	if err != nil {
		return err
	}
	loan.IncrementVersion()
	loan.ClearPendingTransitions()
	return nil
}

func (r *GormLoanRepository) appendTransitions(tx *gorm.DB, loan *lending.Loan) error {
	pending := loan.PendingTransitions()
	if len(pending) == 0 {
		return nil
	}
	rows := make([]*models.BucketTransitionModel, len(pending))
	for i, t := range pending {
		rows[i] = models.BucketTransitionModelFromDomain(loan.TenantID, t)
	}
	if err := tx.Create(rows).Error; err != nil {
		return fmt.Errorf("failed to save bucket transitions: %w", err)
	}
	return nil
}

// Ensure GormLoanRepository implements lending.LoanRepository
var _ lending.LoanRepository = (*GormLoanRepository)(nil)
