package http

import (
	"encoding/json"
	"net/http"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// HealthHandler reports service liveness and the number of active runs
type HealthHandler struct {
	queryUC interfaces.RunQueryUseCase
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(queryUC interfaces.RunQueryUseCase) *HealthHandler {
	return &HealthHandler{queryUC: queryUC}
}

// Handle handles health check requests
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	status := &model.HealthStatus{
		Status:  "healthy",
		Service: "drover",
		Version: types.Version,
	}

	if h.queryUC != nil {
		if active, err := h.queryUC.CountActive(r.Context()); err == nil {
			status.ActiveRuns = active
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode health response", "error", err)
	}
}
