package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Pinger checks a dependency is reachable; *sql.DB satisfies it
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	db        Pinger
	version   string
	startTime time.Time
	logger    *zap.Logger
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(db Pinger, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		BaseHandler: newBaseHandler(nil),
		db:          db,
		version:     version,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Database  string `json:"database,omitempty"`
}

func (h *HealthHandler) info(status string) HealthResponse {
	return HealthResponse{
		Status:    status,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, h.info("ok"))
}

// Ready handles GET /health/ready. It fails with 503 when the database
// does not answer within two seconds.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := h.info("ok")
	resp.Database = "up"
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		resp.Status = "unavailable"
		resp.Database = "down"
		c.JSON(http.StatusServiceUnavailable, dto.Response{Success: false, Data: resp})
		return
	}
	h.Success(c, resp)
}
