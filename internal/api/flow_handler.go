package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/dsl"
	"github.com/shaiso/Conductor/internal/graph"
)

// ListFlows возвращает список всех flows.
// GET /api/v1/flows
func (h *Handler) ListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := h.flows.ListFlows(r.Context())
	if HandleStoreError(w, h.logger, err, "") {
		return
	}

	result := make([]FlowResponse, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDomain(f, nil)
	}

	List(w, result, len(result))
}

// CreateFlow регистрирует новый flow.
// POST /api/v1/flows
//
// Source парсится и валидируется против реестра задач до записи:
// в хранилище не попадают flows с невалидным DSL, циклами или
// неизвестными задачами.
func (h *Handler) CreateFlow(w http.ResponseWriter, r *http.Request) {
	var req CreateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Source == "" {
		BadRequest(w, "source is required")
		return
	}

	def, err := dsl.Parse(req.Source)
	if err != nil {
		InvalidFlow(w, err.Error())
		return
	}

	dag, err := graph.Build(def, h.registry)
	if err != nil {
		InvalidFlow(w, err.Error())
		return
	}

	description := req.Description
	if description == "" {
		description = def.Description
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	flow := &domain.Flow{
		ID:          uuid.New(),
		Name:        def.Name,
		Description: description,
		Source:      req.Source,
		IsActive:    isActive,
		CreatedAt:   time.Now(),
	}

	if err := h.flows.CreateFlow(r.Context(), flow); err != nil {
		if errors.Is(err, graph.ErrDuplicateFlowName) {
			Conflict(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("flow registered",
		"flow_id", flow.ID,
		"flow", flow.Name,
		"tasks", dag.Size(),
	)

	Created(w, FlowFromDomain(flow, def.TaskNames()))
}

// GetFlow возвращает flow по ID.
// GET /api/v1/flows/{id}
func (h *Handler) GetFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	flow, err := h.flows.GetFlow(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	// Source уже валидировался при регистрации
	var tasks []string
	if def, err := dsl.Parse(flow.Source); err == nil {
		tasks = def.TaskNames()
	}

	Success(w, FlowFromDomain(flow, tasks))
}

// UpdateFlow обновляет метаданные flow.
// PUT /api/v1/flows/{id}
//
// Source и имя flow неизменяемы: меняются только описание и активность.
func (h *Handler) UpdateFlow(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid flow id")
		return
	}

	var req UpdateFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	flow, err := h.flows.GetFlow(r.Context(), id)
	if HandleStoreError(w, h.logger, err, "flow not found") {
		return
	}

	if req.Description != nil {
		flow.Description = *req.Description
	}
	if req.IsActive != nil {
		flow.IsActive = *req.IsActive
	}

	if err := h.flows.UpdateFlow(r.Context(), flow); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, FlowFromDomain(flow, nil))
}

// ListTasks возвращает задачи, доступные в реестре.
// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()

	type taskInfo struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}

	result := make([]taskInfo, 0, len(names))
	for _, name := range names {
		info := taskInfo{Name: name}
		if task, err := h.registry.Resolve(name); err == nil {
			info.Description = task.Description
		}
		result = append(result, info)
	}

	List(w, result, len(result))
}
