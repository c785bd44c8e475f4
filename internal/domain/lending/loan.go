package lending

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
)

// AggregateTypeLoan is the aggregate type name used in domain events
const AggregateTypeLoan = "Loan"

// LoanStatus represents the lifecycle of a loan
type LoanStatus string

const (
	LoanStatusActive     LoanStatus = "ACTIVE"      // repaying or delinquent
	LoanStatusClosed     LoanStatus = "CLOSED"      // fully repaid (bucket Recovered)
	LoanStatusWrittenOff LoanStatus = "WRITTEN_OFF" // written off by an operator
)

// IsValid checks if the loan status is valid
func (s LoanStatus) IsValid() bool {
	return s == LoanStatusActive || s == LoanStatusClosed || s == LoanStatusWrittenOff
}

// DelinquencyState is the committed classification of a loan
type DelinquencyState struct {
	DPD          int
	Bucket       Bucket
	BucketSince  time.Time
	ClassifiedAt time.Time
}

// DaysInBucket returns whole days spent in the current bucket as of asOf
func (d DelinquencyState) DaysInBucket(asOf time.Time) int {
	return max(DaysBetween(d.BucketSince, asOf), 0)
}

// Loan is the aggregate root for a disbursed loan: its terms, schedule,
// delinquency state, legal cases and the references of payments applied.
type Loan struct {
	shared.TenantAggregateRoot
	LoanNumber        string
	BorrowerID        uuid.UUID
	Terms             LoanTerms
	Schedule          *Schedule
	ProcessingFee     valueobject.Money
	CreditBalance     valueobject.Money
	Status            LoanStatus
	Delinquency       DelinquencyState
	ClosedAt          *time.Time
	LegalCases        []LegalCase
	PaymentReferences []string

	pendingTransitions []BucketTransition
}

// NewLoan disburses a loan: validates the terms, generates the schedule and
// computes the processing fee.
func NewLoan(tenantID, borrowerID uuid.UUID, loanNumber string, terms LoanTerms, engine *Engine) (*Loan, error) {
	loanNumber = strings.TrimSpace(loanNumber)
	if loanNumber == "" {
		return nil, invalidTerms("loan number cannot be empty")
	}
	if len(loanNumber) > 50 {
		return nil, invalidTerms("loan number cannot exceed 50 characters")
	}
	if borrowerID == uuid.Nil {
		return nil, invalidTerms("borrower is required")
	}
	if terms.Principal.Currency() != engine.Policy().Currency {
		return nil, invalidTerms("principal currency %s differs from lending currency %s", terms.Principal.Currency(), engine.Policy().Currency)
	}
	schedule, err := engine.Generator.Generate(terms)
	if err != nil {
		return nil, err
	}

	disbursed := schedule.Terms.DisbursementDate
	loan := &Loan{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		LoanNumber:          loanNumber,
		BorrowerID:          borrowerID,
		Terms:               schedule.Terms,
		Schedule:            schedule,
		ProcessingFee:       ProcessingFee(terms.Principal, engine.Policy().ProcessingFeeBps),
		CreditBalance:       valueobject.Zero(terms.Currency()),
		Status:              LoanStatusActive,
		Delinquency: DelinquencyState{
			Bucket:       BucketCurrent,
			BucketSince:  disbursed,
			ClassifiedAt: disbursed,
		},
	}
	loan.AddDomainEvent(NewLoanDisbursedEvent(loan))
	return loan, nil
}

// IsActive returns true while the loan accepts payments
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// Bucket returns the committed bucket
func (l *Loan) Bucket() Bucket {
	return l.Delinquency.Bucket
}

// Outstanding returns principal, interest and committed penalty still owed
func (l *Loan) Outstanding() valueobject.Money {
	return l.Schedule.TotalOutstanding()
}

// HasPaymentReference returns true if a payment with ref was already applied
func (l *Loan) HasPaymentReference(ref string) bool {
	return slices.Contains(l.PaymentReferences, strings.TrimSpace(ref))
}

// OpenLegalCase returns the open legal case, if any
func (l *Loan) OpenLegalCase() *LegalCase {
	for i := range l.LegalCases {
		if l.LegalCases[i].IsOpen() {
			return &l.LegalCases[i]
		}
	}
	return nil
}

// PendingTransitions returns bucket transitions not yet persisted
func (l *Loan) PendingTransitions() []BucketTransition {
	return l.pendingTransitions
}

// ClearPendingTransitions is called by the repository after persisting them
func (l *Loan) ClearPendingTransitions() {
	l.pendingTransitions = nil
}

// Outcome reports what an operation did to the loan's delinquency state
type Outcome struct {
	Decision       Decision
	DPD            int
	PenaltyAccrued valueobject.Money
	LegalCase      *LegalCase
}

// ApplyPayment allocates p against the schedule, then reclassifies the loan
// as of the payment date. Either everything is applied or nothing is.
//
// A payment received before the last classification is evaluated as of
// that classification: committed penalty is not re-accrued and the bucket
// does not fall back to a stale DPD.
func (l *Loan) ApplyPayment(p *Payment, engine *Engine) (Outcome, error) {
	if !l.IsActive() {
		return Outcome{}, loanClosed()
	}
	if p.LoanID != l.ID {
		return Outcome{}, invalidPayment("payment belongs to loan %s", p.LoanID)
	}
	if l.HasPaymentReference(p.Reference) {
		return Outcome{}, shared.NewDomainError(CodeDuplicatePayment, fmt.Sprintf("Payment %s was already applied to loan %s", p.Reference, l.LoanNumber))
	}

	asOf := l.evaluationDate(p.ReceivedAt)
	work := l.Schedule.Clone()
	penaltyDue := engine.Penalty.Due(work, asOf)
	alloc, err := engine.Allocator.Allocate(p, work, penaltyDue)
	if err != nil {
		return Outcome{}, err
	}
	dpd := ComputeDPD(work, asOf)
	in := TransitionInput{Trigger: TriggerClassification, DPD: dpd, Settled: work.IsSettled(), At: asOf}
	decision, err := engine.Machine.Apply(l.Bucket(), in)
	if err != nil {
		return Outcome{}, err
	}

	l.Schedule = work
	l.CreditBalance = l.CreditBalance.MustAdd(alloc.Credit)
	l.PaymentReferences = append(l.PaymentReferences, p.Reference)
	p.Allocation = alloc
	p.TenantID = l.TenantID
	l.touch()
	l.AddDomainEvent(NewPaymentAllocatedEvent(l, p))
	return l.commit(decision, in), nil
}

// Recompute accrues penalty through asOf and reclassifies the loan. Running
// it repeatedly for the same date changes nothing after the first run, and
// a date before the last classification is treated as that classification
// date. Loans that are no longer active are left untouched.
func (l *Loan) Recompute(asOf time.Time, engine *Engine) (Outcome, error) {
	if !l.IsActive() {
		return Outcome{Decision: Decision{From: l.Bucket(), To: l.Bucket(), Trigger: TriggerClassification}, DPD: l.Delinquency.DPD}, nil
	}
	asOf = l.evaluationDate(asOf)
	work := l.Schedule.Clone()
	accrued := engine.Penalty.Accrue(work, asOf)
	work.RefreshStatuses(asOf)
	dpd := ComputeDPD(work, asOf)
	in := TransitionInput{Trigger: TriggerClassification, DPD: dpd, Settled: work.IsSettled(), At: asOf}
	decision, err := engine.Machine.Apply(l.Bucket(), in)
	if err != nil {
		return Outcome{}, err
	}
	l.Schedule = work
	if accrued.IsPositive() {
		l.touch()
	}
	out := l.commit(decision, in)
	out.PenaltyAccrued = accrued
	return out, nil
}

// EscalateToLegal moves the loan to Legal on an operator's instruction,
// regardless of DPD.
func (l *Loan) EscalateToLegal(operatorID uuid.UUID, reason string, at time.Time, engine *Engine) (Outcome, error) {
	return l.operatorAction(TriggerLegalEscalation, operatorID, reason, at, engine)
}

// WriteOff writes the loan off. Only loans in M3 or Legal can be written off.
func (l *Loan) WriteOff(operatorID uuid.UUID, reason string, at time.Time, engine *Engine) (Outcome, error) {
	return l.operatorAction(TriggerWriteOff, operatorID, reason, at, engine)
}

// CureFromLegal releases a loan from Legal to the bucket its DPD warrants.
// The legal case stays open until closed explicitly.
func (l *Loan) CureFromLegal(operatorID uuid.UUID, reason string, at time.Time, engine *Engine) (Outcome, error) {
	return l.operatorAction(TriggerOperatorCure, operatorID, reason, at, engine)
}

func (l *Loan) operatorAction(trigger TransitionTrigger, operatorID uuid.UUID, reason string, at time.Time, engine *Engine) (Outcome, error) {
	at = l.evaluationDate(at)
	dpd := ComputeDPD(l.Schedule, at)
	in := TransitionInput{
		Trigger:    trigger,
		DPD:        dpd,
		Settled:    l.Schedule.IsSettled(),
		OperatorID: &operatorID,
		Reason:     strings.TrimSpace(reason),
		At:         at,
	}
	decision, err := engine.Machine.Apply(l.Bucket(), in)
	if err != nil {
		return Outcome{}, err
	}
	return l.commit(decision, in), nil
}

// CloseLegalCase closes the open legal case
func (l *Loan) CloseLegalCase(operatorID uuid.UUID, reason string, at time.Time) (*LegalCase, error) {
	lc := l.OpenLegalCase()
	if lc == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Loan %s has no open legal case", l.LoanNumber))
	}
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Closure reason is required")
	}
	if err := lc.close(&operatorID, strings.TrimSpace(reason), at); err != nil {
		return nil, err
	}
	l.touch()
	l.AddDomainEvent(NewLegalCaseClosedEvent(l, lc))
	return lc, nil
}

// commit records a decision on the aggregate: delinquency state,
// transition history, legal case and lifecycle status.
func (l *Loan) commit(d Decision, in TransitionInput) Outcome {
	l.Delinquency.DPD = in.DPD
	l.Delinquency.ClassifiedAt = in.At
	out := Outcome{Decision: d, DPD: in.DPD}
	if !d.Changed() {
		return out
	}

	l.Delinquency.Bucket = d.To
	l.Delinquency.BucketSince = in.At
	l.pendingTransitions = append(l.pendingTransitions, BucketTransition{
		ID:         uuid.New(),
		LoanID:     l.ID,
		From:       d.From,
		To:         d.To,
		Trigger:    d.Trigger,
		DPD:        in.DPD,
		OperatorID: in.OperatorID,
		Reason:     in.Reason,
		At:         in.At,
	})
	l.touch()
	l.AddDomainEvent(NewBucketChangedEvent(l, d, in))

	if d.OpensLegal {
		out.LegalCase = l.ensureLegalCase(d.Trigger, in)
	}

	switch d.To {
	case BucketRecovered:
		l.Status = LoanStatusClosed
		l.ClosedAt = &in.At
		l.AddDomainEvent(NewLoanRecoveredEvent(l))
	case BucketWrittenOff:
		l.Status = LoanStatusWrittenOff
		l.ClosedAt = &in.At
		l.AddDomainEvent(NewLoanWrittenOffEvent(l, in))
	}
	return out
}

// ensureLegalCase returns the open legal case, opening one if none is open
func (l *Loan) ensureLegalCase(trigger TransitionTrigger, in TransitionInput) *LegalCase {
	if lc := l.OpenLegalCase(); lc != nil {
		return lc
	}
	l.LegalCases = append(l.LegalCases, *newLegalCase(l.TenantID, l.ID, trigger, in.DPD, in.At, in.OperatorID))
	lc := &l.LegalCases[len(l.LegalCases)-1]
	l.AddDomainEvent(NewLegalCaseOpenedEvent(l, lc))
	return lc
}

// evaluationDate is the later of at and the last classification date.
// Delinquency state only moves forward in time.
func (l *Loan) evaluationDate(at time.Time) time.Time {
	at = DateOf(at)
	if last := DateOf(l.Delinquency.ClassifiedAt); last.After(at) {
		return last
	}
	return at
}

func (l *Loan) touch() {
	l.UpdatedAt = time.Now()
}
