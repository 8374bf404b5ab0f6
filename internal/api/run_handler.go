package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/store"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?flow=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		FlowName: r.URL.Query().Get("flow"),
		Status:   domain.RunStatus(r.URL.Query().Get("status")),
		Limit:    parseIntParam(r, "limit", 50),
		Offset:   parseIntParam(r, "offset", 0),
	}

	runs, err := h.runs.ListRuns(r.Context(), filter)
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	now := time.Now()
	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run, run.IsStale(h.staleAfter, now), false)
	}

	List(w, result, len(result))
}

// CreateRun ставит запуск flow в очередь.
// POST /api/v1/flows/{id}/runs
//
// Run выполняется асинхронно runner'ом: API выделяет run ID,
// публикует run.requested и отвечает 202.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	flowID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req CreateRunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			BadRequest(w, "invalid request body")
			return
		}
	}

	flow, err := h.flows.GetFlow(r.Context(), flowID)
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	if !flow.IsActive {
		Conflict(w, "flow is not active")
		return
	}

	if h.publisher == nil {
		Unavailable(w, "run queue is not available")
		return
	}

	runID := uuid.New()
	payload := mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: flow.Name,
		Input:    req.Input,
	}
	if err := h.publisher.PublishRunRequested(r.Context(), payload); err != nil {
		h.logger.Error("failed to publish run.requested",
			"run_id", runID,
			"flow", flow.Name,
			"error", err,
		)
		Unavailable(w, "failed to queue run")
		return
	}

	h.logger.Info("run queued", "run_id", runID, "flow", flow.Name)

	Accepted(w, RunQueuedResponse{
		RunID:    runID,
		FlowName: flow.Name,
		Status:   string(domain.RunStatusPending),
	})
}

// GetRun возвращает run со всеми задачами.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(run, run.IsStale(h.staleAfter, time.Now()), true))
}

// ListRunTasks возвращает задачи run в топологическом порядке.
// GET /api/v1/runs/{id}/tasks
func (h *Handler) ListRunTasks(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "run not found") {
		return
	}

	result := make([]TaskResponse, len(run.Tasks))
	for i, t := range run.Tasks {
		result[i] = TaskFromDomain(t)
	}

	List(w, result, len(result))
}

// parseIntParam парсит целочисленный query-параметр с дефолтом.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
