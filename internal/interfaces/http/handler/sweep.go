package handler

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/scheduler"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
)

// SweepHandler runs the daily delinquency sweep on demand and reports the
// last run
type SweepHandler struct {
	BaseHandler
	sweeps SweepTrigger
}

// NewSweepHandler creates a SweepHandler
func NewSweepHandler(sweeps SweepTrigger, now func() time.Time) *SweepHandler {
	return &SweepHandler{BaseHandler: newBaseHandler(now), sweeps: sweeps}
}

// SweepJobResponse describes a sweep run
type SweepJobResponse struct {
	ID          uuid.UUID                `json:"id"`
	AsOf        string                   `json:"as_of"`
	Status      scheduler.JobStatus      `json:"status"`
	Error       string                   `json:"error,omitempty"`
	StartedAt   *time.Time               `json:"started_at,omitempty"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	Took        string                   `json:"took,omitempty"`
	RetryCount  int                      `json:"retry_count"`
	Summary     *applending.SweepSummary `json:"summary,omitempty"`
}

// SweepStatusResponse is the answer of GET /sweeps/last
type SweepStatusResponse struct {
	LastJob    *SweepJobResponse `json:"last_job,omitempty"`
	LastRunAgo string            `json:"last_run_ago,omitempty"`
	NextRun    *time.Time        `json:"next_run,omitempty"`
}

func toSweepJobResponse(job *scheduler.Job) *SweepJobResponse {
	if job == nil {
		return nil
	}
	resp := &SweepJobResponse{
		ID:          job.ID,
		AsOf:        job.AsOf.Format(dto.DateLayout),
		Status:      job.Status,
		Error:       job.Error,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
		Summary:     job.Summary,
	}
	if job.StartedAt != nil && job.CompletedAt != nil {
		resp.Took = job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond).String()
	}
	return resp
}

// Run handles POST /sweeps?as_of=YYYY-MM-DD. The sweep runs on the request
// and the response carries its summary. A failed sweep still answers with
// the job so operators see which loans failed.
func (h *SweepHandler) Run(c *gin.Context) {
	var q dto.AsOfQuery
	if !h.bindQuery(c, &q) {
		return
	}
	var asOf time.Time
	if q.AsOf != "" {
		d, err := q.Date(h.today())
		if err != nil {
			h.convertError(c, err)
			return
		}
		asOf = d
	}

	job, err := h.sweeps.Trigger(c.Request.Context(), asOf)
	if err != nil && job == nil {
		h.HandleError(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
	}
	h.Success(c, toSweepJobResponse(job))
}

// Last handles GET /sweeps/last
func (h *SweepHandler) Last(c *gin.Context) {
	resp := SweepStatusResponse{LastJob: toSweepJobResponse(h.sweeps.LastJob())}
	if resp.LastJob != nil && resp.LastJob.CompletedAt != nil {
		resp.LastRunAgo = humanize.RelTime(*resp.LastJob.CompletedAt, h.now(), "ago", "from now")
	}
	if next := h.sweeps.NextRun(); !next.IsZero() {
		resp.NextRun = &next
	}
	h.Success(c, resp)
}
