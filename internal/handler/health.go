package handler

import (
	"context"
	"net/http"

	"github.com/sakif/applysync/internal/service"
)

// Database connection labels in the health body.
const (
	DatabaseConnected    = "Connected"
	DatabaseDisconnected = "Disconnected"
)

// timestampLayout matches JavaScript's Date.toISOString: UTC, milliseconds, "Z".
const timestampLayout = "2006-01-02T15:04:05.000Z"

type Reporter interface {
	Report(ctx context.Context) service.HealthReport
}

type HealthHandler struct {
	reporter Reporter
}

func NewHealthHandler(reporter Reporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
}

// HandleHealth always answers 200; the body says whether the store is reachable.
//
//	GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.reporter.Report(r.Context())

	db := DatabaseDisconnected
	if report.StoreConnected {
		db = DatabaseConnected
	}

	WriteJSON(w, http.StatusOK, healthResponse{
		Status:    report.Status,
		Timestamp: report.Timestamp.UTC().Format(timestampLayout),
		Database:  db,
	})
}
