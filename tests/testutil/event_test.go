package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisbursedLoan(t *testing.T) *lending.Loan {
	t.Helper()
	loan, err := lending.NewLoan(TestTenantID(), uuid.New(), "LN-TEST-1", lending.LoanTerms{
		Principal:        valueobject.MustINR("50000"),
		AnnualRateBps:    1800,
		TenureMonths:     6,
		Method:           lending.MethodReducingBalance,
		DisbursementDate: Date(2024, time.January, 10),
	}, NewEngine(t))
	require.NoError(t, err)
	return loan
}

func TestRecordingEventHandler_RecordsAndCounts(t *testing.T) {
	h := NewRecordingEventHandler(lending.EventTypeLoanDisbursed)
	assert.Equal(t, []string{lending.EventTypeLoanDisbursed}, h.EventTypes())

	loan := newDisbursedLoan(t)
	for _, e := range loan.GetDomainEvents() {
		require.NoError(t, h.Handle(context.Background(), e))
	}

	assert.Equal(t, 1, h.Count(lending.EventTypeLoanDisbursed))
	assert.Equal(t, []string{lending.EventTypeLoanDisbursed}, h.Types())
	assert.Len(t, h.Handled(), 1)
}

func TestRecordingEventHandler_SetError(t *testing.T) {
	h := NewRecordingEventHandler()
	h.SetError(assert.AnError)

	loan := newDisbursedLoan(t)
	err := h.Handle(context.Background(), lending.NewLoanDisbursedEvent(loan))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, h.Count(lending.EventTypeLoanDisbursed))
}

func TestRecordingEventHandler_WaitForEvent(t *testing.T) {
	h := NewRecordingEventHandler()
	loan := newDisbursedLoan(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = h.Handle(context.Background(), lending.NewLoanDisbursedEvent(loan))
	}()

	assert.True(t, h.WaitForEvent(lending.EventTypeLoanDisbursed, time.Second))
	assert.False(t, h.WaitForEvent(lending.EventTypeLoanWrittenOff, 30*time.Millisecond))
}
