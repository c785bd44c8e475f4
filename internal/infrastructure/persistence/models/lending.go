package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// Amounts are stored as BIGINT minor units; the currency lives on the loan row.

// LoanModel is the persistence model for the Loan aggregate root.
type LoanModel struct {
	TenantAggregateModel
	LoanNumber       string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_loan_tenant_number,priority:2"`
	BorrowerID       uuid.UUID              `gorm:"type:uuid;not null;index"`
	Currency         string                 `gorm:"type:varchar(3);not null;default:'INR'"`
	Principal        int64                  `gorm:"not null"`
	AnnualRateBps    int64                  `gorm:"not null"`
	TenureMonths     int                    `gorm:"not null"`
	Method           lending.InterestMethod `gorm:"type:varchar(20);not null"`
	DisbursementDate time.Time              `gorm:"type:date;not null"`
	EMI              int64                  `gorm:"column:emi;not null"`
	ProcessingFee    int64                  `gorm:"not null"`
	CreditBalance    int64                  `gorm:"not null;default:0"`
	Status           lending.LoanStatus     `gorm:"type:varchar(20);not null;default:'ACTIVE';index"`
	DPD              int                    `gorm:"column:dpd;not null;default:0"`
	Bucket           lending.Bucket         `gorm:"type:varchar(20);not null;default:'CURRENT';index"`
	BucketSince      time.Time              `gorm:"type:date;not null"`
	ClassifiedAt     time.Time              `gorm:"type:date;not null"`
	ClosedAt         *time.Time             `gorm:"type:date"`
	Installments     []InstallmentModel     `gorm:"foreignKey:LoanID;references:ID"`
	LegalCases       []LegalCaseModel       `gorm:"foreignKey:LoanID;references:ID"`
}

// TableName returns the table name for GORM
func (LoanModel) TableName() string {
	return "loans"
}

// ToDomain converts the persistence model to a domain Loan. Installments
// and legal cases must be preloaded; references are the loan's applied
// payment references.
func (m *LoanModel) ToDomain(references []string) (*lending.Loan, error) {
	cur := valueobject.Currency(m.Currency)
	if !cur.IsValid() {
		return nil, fmt.Errorf("loan %s has unsupported currency %q", m.LoanNumber, m.Currency)
	}
	terms := lending.LoanTerms{
		Principal:        minorToMoney(m.Principal, cur),
		AnnualRateBps:    m.AnnualRateBps,
		TenureMonths:     m.TenureMonths,
		Method:           m.Method,
		DisbursementDate: m.DisbursementDate.UTC(),
	}
	loan := &lending.Loan{
		LoanNumber:        m.LoanNumber,
		BorrowerID:        m.BorrowerID,
		Terms:             terms,
		ProcessingFee:     minorToMoney(m.ProcessingFee, cur),
		CreditBalance:     minorToMoney(m.CreditBalance, cur),
		Status:            m.Status,
		ClosedAt:          utcPtr(m.ClosedAt),
		PaymentReferences: references,
		Delinquency: lending.DelinquencyState{
			DPD:          m.DPD,
			Bucket:       m.Bucket,
			BucketSince:  m.BucketSince.UTC(),
			ClassifiedAt: m.ClassifiedAt.UTC(),
		},
	}
	m.PopulateTenantAggregateRoot(&loan.TenantAggregateRoot)

	if len(m.Installments) > 0 {
		installments := make([]lending.Installment, len(m.Installments))
		for i := range m.Installments {
			installments[i] = m.Installments[i].ToDomain(cur)
		}
		schedule, err := lending.NewSchedule(terms, minorToMoney(m.EMI, cur), installments)
		if err != nil {
			return nil, fmt.Errorf("loan %s has a corrupt schedule: %w", m.LoanNumber, err)
		}
		loan.Schedule = schedule
	}

	loan.LegalCases = make([]lending.LegalCase, len(m.LegalCases))
	for i := range m.LegalCases {
		loan.LegalCases[i] = m.LegalCases[i].ToDomain()
	}
	return loan, nil
}

// FromDomain populates the persistence model from a domain Loan, including
// its installments and legal cases.
func (m *LoanModel) FromDomain(l *lending.Loan) {
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	m.LoanNumber = l.LoanNumber
	m.BorrowerID = l.BorrowerID
	m.Currency = string(l.Terms.Currency())
	m.Principal = l.Terms.Principal.MinorUnits()
	m.AnnualRateBps = l.Terms.AnnualRateBps
	m.TenureMonths = l.Terms.TenureMonths
	m.Method = l.Terms.Method
	m.DisbursementDate = l.Terms.DisbursementDate
	m.ProcessingFee = l.ProcessingFee.MinorUnits()
	m.CreditBalance = l.CreditBalance.MinorUnits()
	m.Status = l.Status
	m.DPD = l.Delinquency.DPD
	m.Bucket = l.Delinquency.Bucket
	m.BucketSince = l.Delinquency.BucketSince
	m.ClassifiedAt = l.Delinquency.ClassifiedAt
	m.ClosedAt = l.ClosedAt

	m.Installments = nil
	if l.Schedule != nil {
		m.EMI = l.Schedule.EMI.MinorUnits()
		m.Installments = make([]InstallmentModel, len(l.Schedule.Installments))
		for i := range l.Schedule.Installments {
			m.Installments[i] = InstallmentModelFromDomain(l.ID, &l.Schedule.Installments[i])
		}
	}
	m.LegalCases = make([]LegalCaseModel, len(l.LegalCases))
	for i := range l.LegalCases {
		m.LegalCases[i].FromDomain(&l.LegalCases[i])
	}
}

// LoanModelFromDomain creates a new persistence model from a domain Loan.
func LoanModelFromDomain(l *lending.Loan) *LoanModel {
	m := &LoanModel{}
	m.FromDomain(l)
	return m
}

// InstallmentModel is one schedule row. Rows are keyed by (loan_id, seq)
// and updated in place; they are never deleted.
type InstallmentModel struct {
	ID                    uuid.UUID                 `gorm:"type:uuid;primary_key"`
	LoanID                uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_installment_loan_seq,priority:1"`
	Seq                   int                       `gorm:"not null;uniqueIndex:idx_installment_loan_seq,priority:2"`
	DueDate               time.Time                 `gorm:"type:date;not null;index"`
	EMI                   int64                     `gorm:"column:emi;not null"`
	Principal             int64                     `gorm:"not null"`
	Interest              int64                     `gorm:"not null"`
	PaidPrincipal         int64                     `gorm:"not null;default:0"`
	PaidInterest          int64                     `gorm:"not null;default:0"`
	PenaltyAccrued        int64                     `gorm:"not null;default:0"`
	PenaltyPaid           int64                     `gorm:"not null;default:0"`
	PenaltyAccruedThrough *time.Time                `gorm:"type:date"`
	Status                lending.InstallmentStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	PaidAt                *time.Time
}

// TableName returns the table name for GORM
func (InstallmentModel) TableName() string {
	return "loan_installments"
}

// InstallmentID derives a stable row id from the loan and sequence, so a
// re-projected schedule updates the same rows.
func InstallmentID(loanID uuid.UUID, seq int) uuid.UUID {
	return uuid.NewSHA1(loanID, fmt.Appendf(nil, "installment-%d", seq))
}

// InstallmentModelFromDomain creates a persistence model for one installment.
func InstallmentModelFromDomain(loanID uuid.UUID, inst *lending.Installment) InstallmentModel {
	return InstallmentModel{
		ID:                    InstallmentID(loanID, inst.Seq),
		LoanID:                loanID,
		Seq:                   inst.Seq,
		DueDate:               inst.DueDate,
		EMI:                   inst.EMI.MinorUnits(),
		Principal:             inst.Principal.MinorUnits(),
		Interest:              inst.Interest.MinorUnits(),
		PaidPrincipal:         inst.PaidPrincipal.MinorUnits(),
		PaidInterest:          inst.PaidInterest.MinorUnits(),
		PenaltyAccrued:        inst.PenaltyAccrued.MinorUnits(),
		PenaltyPaid:           inst.PenaltyPaid.MinorUnits(),
		PenaltyAccruedThrough: inst.PenaltyAccruedThrough,
		Status:                inst.Status,
		PaidAt:                inst.PaidAt,
	}
}

// ToDomain converts the row to a domain Installment in cur.
func (m *InstallmentModel) ToDomain(cur valueobject.Currency) lending.Installment {
	return lending.Installment{
		Seq:                   m.Seq,
		DueDate:               m.DueDate.UTC(),
		EMI:                   minorToMoney(m.EMI, cur),
		Principal:             minorToMoney(m.Principal, cur),
		Interest:              minorToMoney(m.Interest, cur),
		PaidPrincipal:         minorToMoney(m.PaidPrincipal, cur),
		PaidInterest:          minorToMoney(m.PaidInterest, cur),
		PenaltyAccrued:        minorToMoney(m.PenaltyAccrued, cur),
		PenaltyPaid:           minorToMoney(m.PenaltyPaid, cur),
		PenaltyAccruedThrough: utcPtr(m.PenaltyAccruedThrough),
		Status:                m.Status,
		PaidAt:                m.PaidAt,
	}
}

// LegalCaseModel is the persistence model for a legal case
type LegalCaseModel struct {
	ID            uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID                 `gorm:"type:uuid;not null;index"`
	LoanID        uuid.UUID                 `gorm:"type:uuid;not null;index"`
	CaseNumber    string                    `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status        lending.LegalCaseStatus   `gorm:"type:varchar(20);not null;index"`
	Trigger       lending.TransitionTrigger `gorm:"type:varchar(30);not null"`
	OpenedDPD     int                       `gorm:"column:opened_dpd;not null"`
	OpenedAt      time.Time                 `gorm:"type:date;not null"`
	OpenedBy      *uuid.UUID                `gorm:"type:uuid"`
	ClosedAt      *time.Time                `gorm:"type:date"`
	ClosedBy      *uuid.UUID                `gorm:"type:uuid"`
	ClosureReason string                    `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (LegalCaseModel) TableName() string {
	return "legal_cases"
}

// ToDomain converts the persistence model to a domain LegalCase
func (m *LegalCaseModel) ToDomain() lending.LegalCase {
	return lending.LegalCase{
		ID:            m.ID,
		TenantID:      m.TenantID,
		LoanID:        m.LoanID,
		CaseNumber:    m.CaseNumber,
		Status:        m.Status,
		Trigger:       m.Trigger,
		OpenedDPD:     m.OpenedDPD,
		OpenedAt:      m.OpenedAt.UTC(),
		OpenedBy:      m.OpenedBy,
		ClosedAt:      utcPtr(m.ClosedAt),
		ClosedBy:      m.ClosedBy,
		ClosureReason: m.ClosureReason,
	}
}

// FromDomain populates the persistence model from a domain LegalCase
func (m *LegalCaseModel) FromDomain(lc *lending.LegalCase) {
	m.ID = lc.ID
	m.TenantID = lc.TenantID
	m.LoanID = lc.LoanID
	m.CaseNumber = lc.CaseNumber
	m.Status = lc.Status
	m.Trigger = lc.Trigger
	m.OpenedDPD = lc.OpenedDPD
	m.OpenedAt = lc.OpenedAt
	m.OpenedBy = lc.OpenedBy
	m.ClosedAt = lc.ClosedAt
	m.ClosedBy = lc.ClosedBy
	m.ClosureReason = lc.ClosureReason
}

// BucketTransitionModel is one row of a loan's bucket history. Rows are
// append-only.
type BucketTransitionModel struct {
	ID         uuid.UUID                 `gorm:"type:uuid;primary_key"`
	TenantID   uuid.UUID                 `gorm:"type:uuid;not null;index"`
	LoanID     uuid.UUID                 `gorm:"type:uuid;not null;index:idx_transition_loan_at,priority:1"`
	FromBucket lending.Bucket            `gorm:"type:varchar(20);not null"`
	ToBucket   lending.Bucket            `gorm:"type:varchar(20);not null;index"`
	Trigger    lending.TransitionTrigger `gorm:"type:varchar(30);not null"`
	DPD        int                       `gorm:"column:dpd;not null"`
	OperatorID *uuid.UUID                `gorm:"type:uuid"`
	Reason     string                    `gorm:"type:varchar(500)"`
	At         time.Time                 `gorm:"column:occurred_at;type:date;not null;index:idx_transition_loan_at,priority:2"`
	CreatedAt  time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BucketTransitionModel) TableName() string {
	return "bucket_transitions"
}

// BucketTransitionModelFromDomain creates a history row for a transition of a loan in tenantID
func BucketTransitionModelFromDomain(tenantID uuid.UUID, t lending.BucketTransition) *BucketTransitionModel {
	return &BucketTransitionModel{
		ID:         t.ID,
		TenantID:   tenantID,
		LoanID:     t.LoanID,
		FromBucket: t.From,
		ToBucket:   t.To,
		Trigger:    t.Trigger,
		DPD:        t.DPD,
		OperatorID: t.OperatorID,
		Reason:     t.Reason,
		At:         t.At,
	}
}

// ToDomain converts the history row to a domain BucketTransition
func (m *BucketTransitionModel) ToDomain() lending.BucketTransition {
	return lending.BucketTransition{
		ID:         m.ID,
		LoanID:     m.LoanID,
		From:       m.FromBucket,
		To:         m.ToBucket,
		Trigger:    m.Trigger,
		DPD:        m.DPD,
		OperatorID: m.OperatorID,
		Reason:     m.Reason,
		At:         m.At.UTC(),
	}
}

// PaymentModel is the persistence model for an applied payment. The
// allocation lines are kept as JSON next to the component totals.
type PaymentModel struct {
	ID                 uuid.UUID                `gorm:"type:uuid;primary_key"`
	TenantID           uuid.UUID                `gorm:"type:uuid;not null;index"`
	LoanID             uuid.UUID                `gorm:"type:uuid;not null;uniqueIndex:idx_payment_loan_reference,priority:1"`
	Reference          string                   `gorm:"type:varchar(64);not null;uniqueIndex:idx_payment_loan_reference,priority:2"`
	Currency           string                   `gorm:"type:varchar(3);not null"`
	Amount             int64                    `gorm:"not null"`
	ReceivedAt         time.Time                `gorm:"type:date;not null;index"`
	PenaltyAllocated   int64                    `gorm:"not null"`
	InterestAllocated  int64                    `gorm:"not null"`
	PrincipalAllocated int64                    `gorm:"not null"`
	AdvanceAllocated   int64                    `gorm:"not null"`
	CreditAllocated    int64                    `gorm:"not null"`
	AllocationLines    []lending.AllocationLine `gorm:"serializer:json"`
	RecordedAt         time.Time                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "loan_payments"
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *lending.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                 p.ID,
		TenantID:           p.TenantID,
		LoanID:             p.LoanID,
		Reference:          p.Reference,
		Currency:           string(p.Amount.Currency()),
		Amount:             p.Amount.MinorUnits(),
		ReceivedAt:         p.ReceivedAt,
		PenaltyAllocated:   p.Allocation.Penalty.MinorUnits(),
		InterestAllocated:  p.Allocation.Interest.MinorUnits(),
		PrincipalAllocated: p.Allocation.Principal.MinorUnits(),
		AdvanceAllocated:   p.Allocation.Advance.MinorUnits(),
		CreditAllocated:    p.Allocation.Credit.MinorUnits(),
		AllocationLines:    p.Allocation.Lines,
		RecordedAt:         p.RecordedAt,
	}
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() (*lending.Payment, error) {
	cur := valueobject.Currency(m.Currency)
	if !cur.IsValid() {
		return nil, fmt.Errorf("payment %s has unsupported currency %q", m.Reference, m.Currency)
	}
	return &lending.Payment{
		ID:         m.ID,
		TenantID:   m.TenantID,
		LoanID:     m.LoanID,
		Reference:  m.Reference,
		Amount:     minorToMoney(m.Amount, cur),
		ReceivedAt: m.ReceivedAt.UTC(),
		Allocation: lending.Allocation{
			Penalty:   minorToMoney(m.PenaltyAllocated, cur),
			Interest:  minorToMoney(m.InterestAllocated, cur),
			Principal: minorToMoney(m.PrincipalAllocated, cur),
			Advance:   minorToMoney(m.AdvanceAllocated, cur),
			Credit:    minorToMoney(m.CreditAllocated, cur),
			Lines:     m.AllocationLines,
		},
		RecordedAt: m.RecordedAt,
	}, nil
}

// minorToMoney rebuilds a stored amount; cur has already been checked
func minorToMoney(minor int64, cur valueobject.Currency) valueobject.Money {
	m, _ := valueobject.NewMoney(minor, cur)
	return m
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
