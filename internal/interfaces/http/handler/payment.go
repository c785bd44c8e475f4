package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
)

// PaymentHandler serves payment posting and history
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a PaymentHandler
func NewPaymentHandler(payments PaymentService, now func() time.Time) *PaymentHandler {
	return &PaymentHandler{BaseHandler: newBaseHandler(now), payments: payments}
}

// Post handles POST /loans/:id/payments. A replayed reference answers 200
// with the original allocation instead of 201.
func (h *PaymentHandler) Post(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	var req dto.PostPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(tenantID, loanID)
	if err != nil {
		h.convertError(c, err)
		return
	}

	result, err := h.payments.ApplyPayment(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// List handles GET /loans/:id/payments
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	payments, err := h.payments.ListPayments(c.Request.Context(), tenantID, loanID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}
