package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RunsHandler serves recorded pipeline runs
type RunsHandler struct {
	queryUC interfaces.RunQueryUseCase
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(queryUC interfaces.RunQueryUseCase) *RunsHandler {
	return &RunsHandler{queryUC: queryUC}
}

type runListResponse struct {
	Runs  []*model.Run `json:"runs"`
	Count int          `json:"count"`
}

// HandleList returns recorded runs, newest first
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, goerr.New("limit must be a positive integer"), http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.queryUC.ListRuns(ctx, limit)
	if err != nil {
		ctxlog.From(ctx).Error("Failed to list runs", "error", err)
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}

	writeJSON(ctx, w, &runListResponse{Runs: runs, Count: len(runs)})
}

// HandleGet returns one run by ID
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := types.RunID(chi.URLParam(r, "runID"))

	run, err := h.queryUC.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrRunNotFound) {
			writeError(w, err, http.StatusNotFound)
			return
		}
		ctxlog.From(ctx).Error("Failed to get run", "error", err, "run_id", id)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, run)
}
