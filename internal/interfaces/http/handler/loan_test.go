package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLoanRouter(svc *mockLoanService) http.Handler {
	h := NewLoanHandler(svc, fixedNow)
	r := newTestEngine()
	r.POST("/loans", h.Disburse)
	r.GET("/loans", h.List)
	r.GET("/loans/by-number/:number", h.GetByNumber)
	r.GET("/loans/:id", h.Get)
	r.GET("/loans/:id/schedule", h.Schedule)
	r.GET("/loans/:id/transitions", h.Transitions)
	return r
}

func sampleLoan(id uuid.UUID) *applending.LoanResponse {
	return &applending.LoanResponse{
		ID:           id,
		TenantID:     testTenantID,
		LoanNumber:   "LN-0001",
		Principal:    valueobject.NewMoneyINR(10_000_000),
		TenureMonths: 12,
		Method:       lending.MethodReducingBalance,
		Status:       lending.LoanStatusActive,
		Bucket:       lending.BucketCurrent,
	}
}

func TestLoanHandler_Disburse(t *testing.T) {
	svc := new(mockLoanService)
	borrower := uuid.New()
	loanID := uuid.New()

	svc.On("Disburse", mock.Anything, mock.MatchedBy(func(req applending.DisburseLoanRequest) bool {
		return req.TenantID == testTenantID &&
			req.BorrowerID == borrower &&
			req.Principal.MinorUnits() == 10_000_000 &&
			req.TenureMonths == 12 &&
			req.Method == lending.MethodReducingBalance &&
			req.DisbursementDate.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	})).Return(sampleLoan(loanID), nil)

	w := doJSON(newLoanRouter(svc), http.MethodPost, "/loans", map[string]any{
		"borrower_id":       borrower.String(),
		"principal":         "100000.00",
		"annual_rate_bps":   1200,
		"tenure_months":     12,
		"method":            "REDUCING_BALANCE",
		"disbursement_date": "2024-01-10",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var loan applending.LoanResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &loan))
	assert.Equal(t, loanID, loan.ID)
	svc.AssertExpectations(t)
}

func TestLoanHandler_Disburse_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"missing borrower", map[string]any{"principal": "100", "tenure_months": 12, "disbursement_date": "2024-01-10"}, "borrower_id"},
		{"negative principal", map[string]any{"borrower_id": uuid.NewString(), "principal": "-5", "tenure_months": 12, "disbursement_date": "2024-01-10"}, "principal"},
		{"bad date", map[string]any{"borrower_id": uuid.NewString(), "principal": "100", "tenure_months": 12, "disbursement_date": "10/01/2024"}, "disbursement_date"},
		{"unknown method", map[string]any{"borrower_id": uuid.NewString(), "principal": "100", "tenure_months": 12, "disbursement_date": "2024-01-10", "method": "BALLOON"}, "method"},
		{"too many decimals", map[string]any{"borrower_id": uuid.NewString(), "principal": "100.001", "tenure_months": 12, "disbursement_date": "2024-01-10"}, "principal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(mockLoanService)
			w := doJSON(newLoanRouter(svc), http.MethodPost, "/loans", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			require.NotNil(t, env.Error)
			assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
			fields := make([]string, 0, len(env.Error.Details))
			for _, d := range env.Error.Details {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.field)
			svc.AssertNotCalled(t, "Disburse", mock.Anything, mock.Anything)
		})
	}
}

func TestLoanHandler_Disburse_MalformedJSON(t *testing.T) {
	w := doJSON(newLoanRouter(new(mockLoanService)), http.MethodPost, "/loans", `{"principal":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decode(t, w).Error.Code)
}

func TestLoanHandler_Disburse_InvalidTerms(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("Disburse", mock.Anything, mock.Anything).
		Return(nil, shared.NewDomainError(lending.CodeInvalidTerms, "tenure must be between 1 and 480 months"))

	w := doJSON(newLoanRouter(svc), http.MethodPost, "/loans", map[string]any{
		"borrower_id":       uuid.NewString(),
		"principal":         "100",
		"tenure_months":     600,
		"disbursement_date": "2024-01-10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, lending.CodeInvalidTerms, decode(t, w).Error.Code)
}

func TestLoanHandler_List(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("ListLoans", mock.Anything, testTenantID, mock.MatchedBy(func(f lending.LoanFilter) bool {
		return f.Page == 2 && f.PageSize == 10 && f.Bucket != nil && *f.Bucket == lending.BucketM1
	})).Return([]applending.LoanResponse{*sampleLoan(uuid.New())}, int64(11), nil)

	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans?page=2&page_size=10&bucket=M1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(11), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
	svc.AssertExpectations(t)
}

func TestLoanHandler_List_BadFilter(t *testing.T) {
	w := doJSON(newLoanRouter(new(mockLoanService)), http.MethodGet, "/loans?bucket=M9", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoanHandler_Get(t *testing.T) {
	loanID := uuid.New()
	svc := new(mockLoanService)
	svc.On("GetLoan", mock.Anything, testTenantID, loanID, true).Return(sampleLoan(loanID), nil)

	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans/"+loanID.String()+"?include=schedule", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLoanHandler_Get_NotFound(t *testing.T) {
	loanID := uuid.New()
	svc := new(mockLoanService)
	svc.On("GetLoan", mock.Anything, testTenantID, loanID, false).
		Return(nil, shared.NewDomainError(applending.CodeLoanNotFound, "Loan not found"))

	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans/"+loanID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, applending.CodeLoanNotFound, decode(t, w).Error.Code)
}

func TestLoanHandler_Get_BadID(t *testing.T) {
	w := doJSON(newLoanRouter(new(mockLoanService)), http.MethodGet, "/loans/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id", decode(t, w).Error.Details[0].Field)
}

func TestLoanHandler_GetByNumber(t *testing.T) {
	svc := new(mockLoanService)
	svc.On("GetLoanByNumber", mock.Anything, testTenantID, "LN-0001").Return(sampleLoan(uuid.New()), nil)
	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans/by-number/LN-0001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestLoanHandler_Schedule(t *testing.T) {
	loanID := uuid.New()
	loan := sampleLoan(loanID)
	loan.Installments = []applending.InstallmentResponse{
		{Seq: 1, Status: lending.InstallmentPaid},
		{Seq: 2, Status: lending.InstallmentPending},
	}
	svc := new(mockLoanService)
	svc.On("GetLoan", mock.Anything, testTenantID, loanID, true).Return(loan, nil)

	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans/"+loanID.String()+"/schedule", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-Installment-Count"))
	var rows []applending.InstallmentResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rows))
	assert.Len(t, rows, 2)
}

func TestLoanHandler_Transitions(t *testing.T) {
	loanID := uuid.New()
	svc := new(mockLoanService)
	svc.On("ListTransitions", mock.Anything, testTenantID, loanID).Return([]applending.TransitionResponse{
		{From: lending.BucketCurrent, To: lending.BucketX, Trigger: lending.TriggerClassification, DPD: 1},
	}, nil)

	w := doJSON(newLoanRouter(svc), http.MethodGet, "/loans/"+loanID.String()+"/transitions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"to":"X"`)
}
