package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/store"
	"github.com/shaiso/Conductor/internal/tasks"
)

// newTestServer поднимает API поверх хранилища в памяти.
// Publisher не задан: постановка runs в очередь отвечает 503.
func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	handler := NewHandler(Config{
		Flows:     mem,
		Runs:      mem,
		Schedules: mem,
		Registry:  tasks.Builtin(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, mem
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeData(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if err := json.Unmarshal(wrapper.Data, target); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	defer resp.Body.Close()

	var wrapper ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return wrapper.Error
}

const validSource = "flow Deploy:\n    http -> transform\n    transform -> noop\n"

func createFlow(t *testing.T, server *httptest.Server, source string) FlowResponse {
	t.Helper()

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows",
		CreateFlowRequest{Source: source})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var flow FlowResponse
	decodeData(t, resp, &flow)
	return flow
}

func TestCreateFlow(t *testing.T) {
	server, _ := newTestServer(t)

	flow := createFlow(t, server, validSource)
	if flow.Name != "Deploy" {
		t.Errorf("expected name Deploy, got %s", flow.Name)
	}
	if !flow.IsActive {
		t.Error("expected flow to be active by default")
	}
	if len(flow.Tasks) != 3 {
		t.Errorf("expected 3 tasks, got %v", flow.Tasks)
	}
}

func TestCreateFlow_InvalidDSL(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows",
		CreateFlowRequest{Source: "not a flow"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, resp); detail.Code != ErrCodeInvalidFlow {
		t.Errorf("expected INVALID_FLOW, got %s", detail.Code)
	}
}

func TestCreateFlow_Cycle(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows",
		CreateFlowRequest{Source: "flow Loop:\n    http -> noop\n    noop -> http\n"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, resp); detail.Code != ErrCodeInvalidFlow {
		t.Errorf("expected INVALID_FLOW, got %s", detail.Code)
	}
}

func TestCreateFlow_UnknownTask(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows",
		CreateFlowRequest{Source: "flow Bad:\n    http -> nonexistent\n"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateFlow_DuplicateName(t *testing.T) {
	server, _ := newTestServer(t)
	createFlow(t, server, validSource)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows",
		CreateFlowRequest{Source: validSource})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, resp); detail.Code != ErrCodeConflict {
		t.Errorf("expected CONFLICT, got %s", detail.Code)
	}
}

func TestCreateFlow_MissingSource(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flows", CreateFlowRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetFlow(t *testing.T) {
	server, _ := newTestServer(t)
	created := createFlow(t, server, validSource)

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/flows/%s", server.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var flow FlowResponse
	decodeData(t, resp, &flow)
	if flow.ID != created.ID {
		t.Errorf("expected flow %s, got %s", created.ID, flow.ID)
	}
	if len(flow.Tasks) != 3 {
		t.Errorf("expected tasks in response, got %v", flow.Tasks)
	}
}

func TestGetFlow_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/flows/%s", server.URL, uuid.New()), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetFlow_BadID(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/flows/not-a-uuid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestUpdateFlow(t *testing.T) {
	server, _ := newTestServer(t)
	created := createFlow(t, server, validSource)

	description := "updated description"
	active := false
	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/flows/%s", server.URL, created.ID),
		UpdateFlowRequest{Description: &description, IsActive: &active})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var flow FlowResponse
	decodeData(t, resp, &flow)
	if flow.Description != description {
		t.Errorf("expected updated description, got %q", flow.Description)
	}
	if flow.IsActive {
		t.Error("expected flow to be deactivated")
	}

	// Source неизменяем.
	if flow.Source != validSource {
		t.Errorf("expected source to stay unchanged")
	}
}

func TestCreateRun_InactiveFlow(t *testing.T) {
	server, _ := newTestServer(t)
	created := createFlow(t, server, validSource)

	active := false
	resp := doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/flows/%s", server.URL, created.ID),
		UpdateFlowRequest{IsActive: &active})
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/runs", server.URL, created.ID),
		CreateRunRequest{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for inactive flow, got %d", resp.StatusCode)
	}
}

func TestCreateRun_QueueUnavailable(t *testing.T) {
	server, _ := newTestServer(t)
	created := createFlow(t, server, validSource)

	// Publisher не сконфигурирован: очередь недоступна.
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/runs", server.URL, created.ID),
		CreateRunRequest{Input: map[string]any{"env": "prod"}})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	if detail := decodeError(t, resp); detail.Code != ErrCodeUnavailable {
		t.Errorf("expected UNAVAILABLE, got %s", detail.Code)
	}
}

func TestGetRun(t *testing.T) {
	server, mem := newTestServer(t)

	run := domain.NewFlowRun("deploy", map[string]any{"env": "prod"})
	run.Tasks = append(run.Tasks, domain.NewTaskRun("http"), domain.NewTaskRun("noop"))
	run.MarkRunning()
	run.MarkCompleted(map[string]any{"ok": true})
	if err := mem.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/runs/%s", server.URL, run.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got RunResponse
	decodeData(t, resp, &got)
	if got.Status != string(domain.RunStatusCompleted) {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
	if len(got.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(got.Tasks))
	}
	if got.Result["ok"] != true {
		t.Errorf("expected result ok=true, got %v", got.Result)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/runs/%s", server.URL, uuid.New()), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetRun_StaleFlag(t *testing.T) {
	server, mem := newTestServer(t)

	run := domain.NewFlowRun("deploy", nil)
	started := time.Now().Add(-2 * defaultStaleAfter)
	run.Status = domain.RunStatusRunning
	run.StartedAt = &started
	if err := mem.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/runs/%s", server.URL, run.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got RunResponse
	decodeData(t, resp, &got)
	if !got.Stale {
		t.Error("expected long-running RUNNING run to be flagged stale")
	}
}

func TestListRuns_Filter(t *testing.T) {
	server, mem := newTestServer(t)

	for _, name := range []string{"deploy", "deploy", "cleanup"} {
		run := domain.NewFlowRun(name, nil)
		if err := mem.CreateRun(context.Background(), run); err != nil {
			t.Fatalf("seed run: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/runs?flow=deploy", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	defer resp.Body.Close()
	var wrapper struct {
		Data  []RunResponse `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(wrapper.Data) != 2 {
		t.Errorf("expected 2 runs, got %d", len(wrapper.Data))
	}
}

func TestScheduleLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	flow := createFlow(t, server, validSource)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/schedules", server.URL, flow.ID),
		CreateScheduleRequest{CronExpr: "0 9 * * *", Enabled: true})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var sched ScheduleResponse
	decodeData(t, resp, &sched)
	if sched.Timezone != "UTC" {
		t.Errorf("expected default timezone UTC, got %s", sched.Timezone)
	}
	if sched.NextDueAt == nil {
		t.Error("expected next_due_at to be calculated")
	}

	// Выключение.
	resp = doJSON(t, http.MethodPut, fmt.Sprintf("%s/api/v1/schedules/%s/enabled", server.URL, sched.ID),
		SetEnabledRequest{Enabled: false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var disabled ScheduleResponse
	decodeData(t, resp, &disabled)
	if disabled.Enabled {
		t.Error("expected schedule to be disabled")
	}

	// Удаление.
	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/schedules/%s", server.URL, sched.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/schedules/%s", server.URL, sched.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateSchedule_Validation(t *testing.T) {
	server, _ := newTestServer(t)
	flow := createFlow(t, server, validSource)

	t.Run("neither cron nor interval", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/schedules", server.URL, flow.ID),
			CreateScheduleRequest{Enabled: true})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("invalid cron", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/schedules", server.URL, flow.ID),
			CreateScheduleRequest{CronExpr: "bad", Enabled: true})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown flow", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/flows/%s/schedules", server.URL, uuid.New()),
			CreateScheduleRequest{IntervalSec: 60, Enabled: true})
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestListTasks(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/tasks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	defer resp.Body.Close()
	var wrapper struct {
		Data []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	names := make(map[string]bool)
	for _, task := range wrapper.Data {
		names[task.Name] = true
	}
	for _, name := range []string{"http", "delay", "transform", "noop"} {
		if !names[name] {
			t.Errorf("expected builtin task %s in listing", name)
		}
	}
}
