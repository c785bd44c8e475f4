package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements lending.PaymentRepository using GORM.
// Payment rows are insert-only.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a payment. A second payment with the same reference on the
// same loan violates idx_payment_loan_reference and is reported as a duplicate.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *lending.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(lending.CodeDuplicatePayment,
				fmt.Sprintf("Payment %s was already applied to this loan", payment.Reference))
		}
		return err
	}
	return nil
}

// FindByReference returns the payment with ref on the loan, or nil, nil
func (r *GormPaymentRepository) FindByReference(ctx context.Context, loanID uuid.UUID, ref string) (*lending.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("loan_id = ? AND reference = ?", loanID, ref).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByLoan returns all payments of a loan, oldest first
func (r *GormPaymentRepository) FindByLoan(ctx context.Context, loanID uuid.UUID) ([]lending.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("received_at ASC, recorded_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]lending.Payment, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, nil
}

// Ensure GormPaymentRepository implements lending.PaymentRepository
var _ lending.PaymentRepository = (*GormPaymentRepository)(nil)
