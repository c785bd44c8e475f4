package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
)

// DelinquencyHandler serves recompute and the operator bucket actions
type DelinquencyHandler struct {
	BaseHandler
	delinquency DelinquencyService
}

// NewDelinquencyHandler creates a DelinquencyHandler
func NewDelinquencyHandler(delinquency DelinquencyService, now func() time.Time) *DelinquencyHandler {
	return &DelinquencyHandler{BaseHandler: newBaseHandler(now), delinquency: delinquency}
}

// Recompute handles POST /loans/:id/recompute?as_of=YYYY-MM-DD
func (h *DelinquencyHandler) Recompute(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return
	}
	var q dto.AsOfQuery
	if !h.bindQuery(c, &q) {
		return
	}
	asOf, err := q.Date(h.today())
	if err != nil {
		h.convertError(c, err)
		return
	}

	result, err := h.delinquency.Recompute(c.Request.Context(), tenantID, loanID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Escalate handles POST /loans/:id/escalate
func (h *DelinquencyHandler) Escalate(c *gin.Context) {
	h.operatorAction(c, h.delinquency.EscalateToLegal)
}

// WriteOff handles POST /loans/:id/write-off
func (h *DelinquencyHandler) WriteOff(c *gin.Context) {
	h.operatorAction(c, h.delinquency.WriteOff)
}

// Cure handles POST /loans/:id/cure
func (h *DelinquencyHandler) Cure(c *gin.Context) {
	h.operatorAction(c, h.delinquency.CureFromLegal)
}

// CloseLegalCase handles POST /loans/:id/legal-case/close
func (h *DelinquencyHandler) CloseLegalCase(c *gin.Context) {
	cmd, ok := h.bindAction(c)
	if !ok {
		return
	}
	legalCase, err := h.delinquency.CloseLegalCase(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, legalCase)
}

type actionFunc func(context.Context, applending.OperatorActionRequest) (*applending.DelinquencyResult, error)

func (h *DelinquencyHandler) operatorAction(c *gin.Context, action actionFunc) {
	cmd, ok := h.bindAction(c)
	if !ok {
		return
	}
	result, err := action(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// bindAction builds an operator action from the path, the body and the
// authenticated operator
func (h *DelinquencyHandler) bindAction(c *gin.Context) (applending.OperatorActionRequest, bool) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return applending.OperatorActionRequest{}, false
	}
	operatorID, ok := middleware.GetOperatorID(c)
	if !ok {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Operator identity required")
		return applending.OperatorActionRequest{}, false
	}
	loanID, ok := h.loanID(c)
	if !ok {
		return applending.OperatorActionRequest{}, false
	}
	var req dto.OperatorActionRequest
	if !h.bindJSON(c, &req) {
		return applending.OperatorActionRequest{}, false
	}
	cmd, err := req.ToCommand(tenantID, loanID, operatorID, h.today())
	if err != nil {
		h.convertError(c, err)
		return applending.OperatorActionRequest{}, false
	}
	return cmd, true
}
