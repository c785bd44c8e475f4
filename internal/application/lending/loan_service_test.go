package lending

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func disburseRequest(tenantID uuid.UUID) DisburseLoanRequest {
	return DisburseLoanRequest{
		TenantID:         tenantID,
		BorrowerID:       uuid.New(),
		LoanNumber:       "LN-2024-0042",
		Principal:        valueobject.MustINR("100000"),
		AnnualRateBps:    2400,
		TenureMonths:     12,
		DisbursementDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestLoanService_Disburse(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	f.loanRepo.On("FindByLoanNumber", mock.Anything, tenantID, "LN-2024-0042").Return(nil, nil)
	f.loanRepo.On("Create", mock.Anything, mock.AnythingOfType("*lending.Loan")).Return(nil)
	published := f.capturePublished()

	svc := NewLoanService(f.cfg)
	resp, err := svc.Disburse(context.Background(), disburseRequest(tenantID))
	require.NoError(t, err)

	assert.Equal(t, "LN-2024-0042", resp.LoanNumber)
	assert.Equal(t, lending.MethodReducingBalance, resp.Method)
	assert.Equal(t, "9455.96", resp.EMI.StringFixed())
	assert.Equal(t, "2000.00", resp.ProcessingFee.StringFixed())
	assert.Equal(t, lending.BucketCurrent, resp.Bucket)
	assert.Equal(t, lending.LoanStatusActive, resp.Status)
	require.Len(t, resp.Installments, 12)
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), resp.Installments[0].DueDate)
	assert.Equal(t, "2000.00", resp.Installments[0].Interest.StringFixed())
	assert.Equal(t, "7455.96", resp.Installments[0].Principal.StringFixed())

	assert.Equal(t, []string{lending.EventTypeLoanDisbursed}, eventTypes(*published))
	f.loanRepo.AssertExpectations(t)
}

func TestLoanService_Disburse_GeneratesLoanNumber(t *testing.T) {
	f := newFixture(t)
	f.loanRepo.On("Create", mock.Anything, mock.AnythingOfType("*lending.Loan")).Return(nil)
	f.capturePublished()

	req := disburseRequest(uuid.New())
	req.LoanNumber = ""
	req.DisbursementDate = time.Time{}

	svc := NewLoanService(f.cfg)
	resp, err := svc.Disburse(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.LoanNumber, "LN-20240320-"), resp.LoanNumber)
	assert.Len(t, resp.LoanNumber, len("LN-20240320-")+8)
	assert.Equal(t, testToday, resp.DisbursementDate)
	f.loanRepo.AssertNotCalled(t, "FindByLoanNumber", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoanService_Disburse_DuplicateLoanNumber(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	existing := f.newTestLoan(t, tenantID)
	f.loanRepo.On("FindByLoanNumber", mock.Anything, tenantID, "LN-2024-0042").Return(existing, nil)

	svc := NewLoanService(f.cfg)
	_, err := svc.Disburse(context.Background(), disburseRequest(tenantID))
	require.Error(t, err)

	assert.Equal(t, CodeLoanNumberExists, lending.CodeOf(err))
	f.loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestLoanService_Disburse_InvalidTerms(t *testing.T) {
	tests := []struct {
		name   string
		modify func(r *DisburseLoanRequest)
	}{
		{"zero principal", func(r *DisburseLoanRequest) { r.Principal = valueobject.ZeroINR() }},
		{"zero tenure", func(r *DisburseLoanRequest) { r.TenureMonths = 0 }},
		{"negative rate", func(r *DisburseLoanRequest) { r.AnnualRateBps = -1 }},
		{"unknown method", func(r *DisburseLoanRequest) { r.Method = "BALLOON" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := disburseRequest(uuid.New())
			req.LoanNumber = ""
			tt.modify(&req)

			svc := NewLoanService(f.cfg)
			_, err := svc.Disburse(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, lending.KindInvalidTerms, lending.KindOf(err))
			f.loanRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		})
	}
}

func TestLoanService_Disburse_SaveFails(t *testing.T) {
	f := newFixture(t)
	f.loanRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	req := disburseRequest(uuid.New())
	req.LoanNumber = ""

	svc := NewLoanService(f.cfg)
	_, err := svc.Disburse(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save loan")
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestLoanService_GetLoan(t *testing.T) {
	f := newFixture(t)
	loan := f.newTestLoan(t, uuid.New())
	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(loan, nil)

	svc := NewLoanService(f.cfg)
	withSchedule, err := svc.GetLoan(context.Background(), loan.TenantID, loan.ID, true)
	require.NoError(t, err)
	assert.Len(t, withSchedule.Installments, 12)
	require.NotNil(t, withSchedule.Outstanding)
	assert.Equal(t, "100000.00", withSchedule.Outstanding.Principal.StringFixed())

	summary, err := svc.GetLoan(context.Background(), loan.TenantID, loan.ID, false)
	require.NoError(t, err)
	assert.Empty(t, summary.Installments)
}

func TestLoanService_GetLoan_NotFound(t *testing.T) {
	f := newFixture(t)
	tenantID, loanID := uuid.New(), uuid.New()
	f.loanRepo.On("FindByIDForTenant", mock.Anything, tenantID, loanID).Return(nil, nil)

	svc := NewLoanService(f.cfg)
	_, err := svc.GetLoan(context.Background(), tenantID, loanID, false)
	require.Error(t, err)
	assert.Equal(t, CodeLoanNotFound, lending.CodeOf(err))
}

func TestLoanService_GetLoanByNumber_NotFound(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	f.loanRepo.On("FindByLoanNumber", mock.Anything, tenantID, "LN-404").Return(nil, nil)

	svc := NewLoanService(f.cfg)
	_, err := svc.GetLoanByNumber(context.Background(), tenantID, " LN-404 ")
	require.Error(t, err)
	assert.Equal(t, CodeLoanNotFound, lending.CodeOf(err))
}

func TestLoanService_ListLoans(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	a, b := f.newTestLoan(t, tenantID), f.newTestLoan(t, tenantID)
	filter := lending.LoanFilter{}
	f.loanRepo.On("FindAllForTenant", mock.Anything, tenantID, filter).Return([]lending.Loan{*a, *b}, int64(2), nil)

	svc := NewLoanService(f.cfg)
	items, total, err := svc.ListLoans(context.Background(), tenantID, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ID)
	assert.Empty(t, items[0].Installments)
}

func TestLoanService_ListTransitions(t *testing.T) {
	f := newFixture(t)
	loan := f.newTestLoan(t, uuid.New())
	operator := uuid.New()
	f.loanRepo.On("FindByIDForTenant", mock.Anything, loan.TenantID, loan.ID).Return(loan, nil)
	f.loanRepo.On("FindTransitions", mock.Anything, loan.ID).Return([]lending.BucketTransition{
		{ID: uuid.New(), LoanID: loan.ID, From: lending.BucketCurrent, To: lending.BucketX, Trigger: lending.TriggerClassification, DPD: 1, At: time.Date(2024, 2, 16, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), LoanID: loan.ID, From: lending.BucketX, To: lending.BucketLegal, Trigger: lending.TriggerLegalEscalation, DPD: 20, OperatorID: &operator, Reason: "fraud", At: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
	}, nil)

	svc := NewLoanService(f.cfg)
	items, err := svc.ListTransitions(context.Background(), loan.TenantID, loan.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, lending.BucketX, items[0].To)
	assert.Equal(t, &operator, items[1].OperatorID)
	assert.Equal(t, "fraud", items[1].Reason)
}

func TestLoanService_BucketDistribution(t *testing.T) {
	f := newFixture(t)
	tenantID := uuid.New()
	f.loanRepo.On("CountByBucket", mock.Anything, tenantID).Return(map[lending.Bucket]int64{
		lending.BucketCurrent: 40,
		lending.BucketY:       3,
		lending.BucketLegal:   1,
	}, nil)

	svc := NewLoanService(f.cfg)
	rows, err := svc.BucketDistribution(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, rows, len(lending.DelinquencyBuckets))

	byBucket := make(map[lending.Bucket]BucketCount, len(rows))
	for _, r := range rows {
		byBucket[r.Bucket] = r
	}
	assert.Equal(t, int64(40), byBucket[lending.BucketCurrent].Loans)
	assert.Equal(t, int64(0), byBucket[lending.BucketX].Loans)
	assert.Equal(t, 31, byBucket[lending.BucketY].MinDPD)
	require.NotNil(t, byBucket[lending.BucketY].MaxDPD)
	assert.Equal(t, 60, *byBucket[lending.BucketY].MaxDPD)
	assert.Equal(t, 366, byBucket[lending.BucketLegal].MinDPD)
	assert.Nil(t, byBucket[lending.BucketLegal].MaxDPD)
}
