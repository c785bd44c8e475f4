package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
)

// LoanHandler serves disbursement and loan queries
type LoanHandler struct {
	BaseHandler
	loans LoanService
}

// NewLoanHandler creates a LoanHandler
func NewLoanHandler(loans LoanService, now func() time.Time) *LoanHandler {
	return &LoanHandler{BaseHandler: newBaseHandler(now), loans: loans}
}

// Disburse handles POST /loans
func (h *LoanHandler) Disburse(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.DisburseLoanRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(tenantID)
	if err != nil {
		h.convertError(c, err)
		return
	}

	loan, err := h.loans.Disburse(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, loan)
}

// List handles GET /loans
func (h *LoanHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req dto.LoanListRequest
	if !h.bindQuery(c, &req) {
		return
	}
	req.Normalize()

	loans, total, err := h.loans.ListLoans(c.Request.Context(), tenantID, req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, loans, total, req.Page, req.PageSize)
}

// Get handles GET /loans/:id. ?include=schedule adds the installments.
func (h *LoanHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	withSchedule := c.Query("include") == "schedule"

	loan, err := h.loans.GetLoan(c.Request.Context(), tenantID, loanID, withSchedule)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loan)
}

// GetByNumber handles GET /loans/by-number/:number
func (h *LoanHandler) GetByNumber(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loan, err := h.loans.GetLoanByNumber(c.Request.Context(), tenantID, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, loan)
}

// Schedule handles GET /loans/:id/schedule
func (h *LoanHandler) Schedule(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	loan, err := h.loans.GetLoan(c.Request.Context(), tenantID, loanID, true)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Header("X-Installment-Count", strconv.Itoa(len(loan.Installments)))
	h.Success(c, loan.Installments)
}

// Transitions handles GET /loans/:id/transitions
func (h *LoanHandler) Transitions(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	transitions, err := h.loans.ListTransitions(c.Request.Context(), tenantID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, transitions)
}
