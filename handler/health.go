package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
)

// Checker reports whether a dependency can be reached.
type Checker interface {
	Check(ctx context.Context) error
}

type HealthHandler struct {
	db        Checker
	log       *otelzap.SugaredLogger
	startTime time.Time
}

func NewHealthHandler(db Checker, log *otelzap.SugaredLogger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		log:       log,
		startTime: time.Now(),
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Database string `json:"database"`
}

func (hh HealthHandler) Handle(rw http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "healthy",
		Uptime:   time.Since(hh.startTime).Round(time.Second).String(),
		Database: "healthy",
	}
	status := http.StatusOK

	if err := hh.db.Check(ctx); err != nil {
		hh.log.Ctx(ctx).Errorw("Health", "error", err.Error())
		resp.Status = "degraded"
		resp.Database = "unhealthy: " + err.Error()
		status = http.StatusServiceUnavailable
	}

	respond(r.Context(), rw, status, resp)
}
