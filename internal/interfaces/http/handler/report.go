package handler

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ReportHandler serves portfolio reports
type ReportHandler struct {
	BaseHandler
	loans LoanService
}

// NewReportHandler creates a ReportHandler
func NewReportHandler(loans LoanService, now func() time.Time) *ReportHandler {
	return &ReportHandler{BaseHandler: newBaseHandler(now), loans: loans}
}

// BucketDistribution handles GET /reports/buckets: active loans per bucket
// with each bucket's DPD range
func (h *ReportHandler) BucketDistribution(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	rows, err := h.loans.BucketDistribution(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}
