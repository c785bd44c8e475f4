package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDisburseLoanRequest_ToCommand(t *testing.T) {
	tenantID := uuid.New()
	borrowerID := uuid.New()
	req := DisburseLoanRequest{
		BorrowerID:       borrowerID.String(),
		Principal:        "100000.00",
		AnnualRateBps:    2400,
		TenureMonths:     12,
		Method:           "REDUCING_BALANCE",
		DisbursementDate: "2024-01-15",
	}

	cmd, err := req.ToCommand(tenantID)
	require.NoError(t, err)
	assert.Equal(t, tenantID, cmd.TenantID)
	assert.Equal(t, borrowerID, cmd.BorrowerID)
	assert.Equal(t, int64(10_000_000), cmd.Principal.MinorUnits())
	assert.Equal(t, valueobject.DefaultCurrency, cmd.Principal.Currency())
	assert.Equal(t, lending.MethodReducingBalance, cmd.Method)
	assert.Equal(t, date(2024, time.January, 15), cmd.DisbursementDate)
}

func TestDisburseLoanRequest_ToCommand_Rejects(t *testing.T) {
	base := DisburseLoanRequest{
		BorrowerID:       uuid.NewString(),
		Principal:        "5000",
		TenureMonths:     6,
		DisbursementDate: "2024-01-15",
	}

	t.Run("sub-paisa principal", func(t *testing.T) {
		req := base
		req.Principal = "100.005"
		_, err := req.ToCommand(uuid.New())
		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "principal", fe.Field)
	})

	t.Run("unknown currency", func(t *testing.T) {
		req := base
		req.Currency = "XYZ"
		_, err := req.ToCommand(uuid.New())
		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "currency", fe.Detail().Field)
	})

	t.Run("bad date", func(t *testing.T) {
		req := base
		req.DisbursementDate = "15/01/2024"
		_, err := req.ToCommand(uuid.New())
		assert.EqualError(t, err, "disbursement_date: Must be a date in YYYY-MM-DD format")
	})
}

func TestPostPaymentRequest_ToCommand(t *testing.T) {
	loanID := uuid.New()
	cmd, err := PostPaymentRequest{
		Reference:  "UTR-7781",
		Amount:     "9456.07",
		ReceivedAt: "2024-02-15",
	}.ToCommand(uuid.New(), loanID)
	require.NoError(t, err)
	assert.Equal(t, loanID, cmd.LoanID)
	assert.Equal(t, "UTR-7781", cmd.Reference)
	assert.Equal(t, int64(945607), cmd.Amount.MinorUnits())
	assert.Equal(t, date(2024, time.February, 15), cmd.ReceivedAt)
}

func TestOperatorActionRequest_ToCommand_DefaultsToToday(t *testing.T) {
	now := time.Date(2024, time.March, 3, 17, 45, 0, 0, time.UTC)
	operatorID := uuid.New()

	cmd, err := OperatorActionRequest{Reason: "borrower absconded"}.ToCommand(uuid.New(), uuid.New(), operatorID, now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 3), cmd.At)
	assert.Equal(t, operatorID, cmd.OperatorID)

	cmd, err = OperatorActionRequest{Reason: "r", At: "2024-03-01"}.ToCommand(uuid.New(), uuid.New(), operatorID, now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 1), cmd.At)
}

func TestAsOfQuery_Date(t *testing.T) {
	now := time.Date(2024, time.May, 9, 23, 0, 0, 0, time.UTC)

	d, err := AsOfQuery{}.Date(now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.May, 9), d)

	d, err = AsOfQuery{AsOf: "2024-04-30"}.Date(now)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 30), d)
}

func TestLoanListRequest_ToFilter(t *testing.T) {
	borrower := uuid.New()
	filter := LoanListRequest{
		Status:     "ACTIVE",
		Bucket:     "M1",
		BorrowerID: borrower.String(),
	}.ToFilter()

	assert.Equal(t, 1, filter.Page)
	assert.Equal(t, 20, filter.PageSize)
	assert.Equal(t, "desc", filter.OrderDir)
	require.NotNil(t, filter.Status)
	assert.Equal(t, lending.LoanStatusActive, *filter.Status)
	require.NotNil(t, filter.Bucket)
	assert.Equal(t, lending.BucketM1, *filter.Bucket)
	assert.Equal(t, borrower, *filter.BorrowerID)

	empty := LoanListRequest{}.ToFilter()
	assert.Nil(t, empty.Status)
	assert.Nil(t, empty.Bucket)
	assert.Nil(t, empty.BorrowerID)
}
