package lending

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
)

// LegalCaseStatus represents the lifecycle of a legal case
type LegalCaseStatus string

const (
	LegalCaseOpen   LegalCaseStatus = "OPEN"
	LegalCaseClosed LegalCaseStatus = "CLOSED"
)

// LegalCase is the record opened when a loan enters Legal. A loan has at
// most one open case; re-entering Legal while a case is open reuses it.
type LegalCase struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	LoanID        uuid.UUID
	CaseNumber    string
	Status        LegalCaseStatus
	Trigger       TransitionTrigger
	OpenedDPD     int
	OpenedAt      time.Time
	OpenedBy      *uuid.UUID
	ClosedAt      *time.Time
	ClosedBy      *uuid.UUID
	ClosureReason string
}

func newLegalCase(tenantID, loanID uuid.UUID, trigger TransitionTrigger, dpd int, at time.Time, openedBy *uuid.UUID) *LegalCase {
	id := uuid.New()
	return &LegalCase{
		ID:         id,
		TenantID:   tenantID,
		LoanID:     loanID,
		CaseNumber: fmt.Sprintf("LC-%s-%s", at.Format("20060102"), strings.ToUpper(id.String()[:8])),
		Status:     LegalCaseOpen,
		Trigger:    trigger,
		OpenedDPD:  dpd,
		OpenedAt:   at,
		OpenedBy:   openedBy,
	}
}

// IsOpen returns true while the case is open
func (c *LegalCase) IsOpen() bool {
	return c.Status == LegalCaseOpen
}

func (c *LegalCase) close(operatorID *uuid.UUID, reason string, at time.Time) error {
	if !c.IsOpen() {
		return shared.NewDomainError(shared.CodeInvalidState, fmt.Sprintf("Legal case %s is already closed", c.CaseNumber))
	}
	c.Status = LegalCaseClosed
	c.ClosedAt = &at
	c.ClosedBy = operatorID
	c.ClosureReason = reason
	return nil
}
