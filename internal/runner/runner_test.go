package runner

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/store"
	"github.com/shaiso/Conductor/internal/tasks"
)

func newTestRunner(mem *store.Memory) *Runner {
	return New(Config{
		Flows:    mem,
		Runs:     mem,
		Registry: tasks.Builtin(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func seedFlow(t *testing.T, mem *store.Memory, name, source string) {
	t.Helper()
	flow := &domain.Flow{
		ID:        uuid.New(),
		Name:      name,
		Source:    source,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := mem.CreateFlow(context.Background(), flow); err != nil {
		t.Fatalf("seed flow: %v", err)
	}
}

func requestedDelivery(t *testing.T, payload mq.RunRequestedPayload) *mq.Delivery {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &mq.Delivery{
		Message: mq.Message{
			ID:        uuid.New().String(),
			Type:      mq.MessageTypeRunRequested,
			Payload:   raw,
			Timestamp: time.Now(),
		},
	}
}

func TestHandleRunRequested_ExecutesFlow(t *testing.T) {
	mem := store.NewMemory()
	seedFlow(t, mem, "deploy", "flow deploy:\n    noop -> transform\n")

	runID := uuid.New()
	delivery := requestedDelivery(t, mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: "deploy",
		Input:    map[string]any{"env": "prod"},
	})

	r := newTestRunner(mem)
	if err := r.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Run записан под ID из сообщения, а не сгенерированным.
	run, err := mem.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", run.Status)
	}
	if len(run.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(run.Tasks))
	}
	if run.Input["env"] != "prod" {
		t.Errorf("expected input to be carried, got %v", run.Input)
	}
}

func TestHandleRunRequested_FlowNotFound(t *testing.T) {
	mem := store.NewMemory()

	runID := uuid.New()
	delivery := requestedDelivery(t, mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: "ghost",
	})

	// Постоянная ошибка: сообщение подтверждается (nil), а run
	// записывается как FAILED.
	r := newTestRunner(mem)
	if err := r.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("expected nil for permanent failure, got %v", err)
	}

	run, err := mem.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if run.Error == "" {
		t.Error("expected error message on failed run")
	}
}

// finalizeTrackingStore считает вызовы FinalizeRun поверх Memory.
type finalizeTrackingStore struct {
	*store.Memory
	finalized int
}

func (s *finalizeTrackingStore) FinalizeRun(ctx context.Context, run *domain.FlowRun) error {
	s.finalized++
	return s.Memory.FinalizeRun(ctx, run)
}

func TestHandleRunRequested_PermanentFailureIsFinalized(t *testing.T) {
	mem := store.NewMemory()
	tracking := &finalizeTrackingStore{Memory: mem}

	runID := uuid.New()
	delivery := requestedDelivery(t, mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: "ghost",
	})

	r := New(Config{
		Flows:    mem,
		Runs:     tracking,
		Registry: tasks.Builtin(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := r.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("expected nil for permanent failure, got %v", err)
	}

	// Ошибка и finished_at пишутся финализацией, не вставкой:
	// хранилище должно получить оба вызова жизненного цикла.
	if tracking.finalized != 1 {
		t.Errorf("expected 1 FinalizeRun call, got %d", tracking.finalized)
	}

	run, err := mem.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if run.Error == "" {
		t.Error("expected error message on finalized run")
	}
	if run.FinishedAt == nil {
		t.Error("expected finished_at on finalized run")
	}
}

func TestHandleRunRequested_BadStoredSource(t *testing.T) {
	mem := store.NewMemory()
	seedFlow(t, mem, "broken", "not a flow at all")

	runID := uuid.New()
	delivery := requestedDelivery(t, mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: "broken",
	})

	r := newTestRunner(mem)
	if err := r.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("expected nil for permanent failure, got %v", err)
	}

	run, err := mem.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
}

func TestHandleRunRequested_UnknownTaskInSource(t *testing.T) {
	mem := store.NewMemory()
	seedFlow(t, mem, "deploy", "flow deploy:\n    noop -> not_registered\n")

	runID := uuid.New()
	delivery := requestedDelivery(t, mq.RunRequestedPayload{
		RunID:    runID,
		FlowName: "deploy",
	})

	r := newTestRunner(mem)
	if err := r.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("expected nil for permanent failure, got %v", err)
	}

	run, err := mem.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
}

func TestHandleRunRequested_MalformedPayload(t *testing.T) {
	mem := store.NewMemory()

	delivery := &mq.Delivery{
		Message: mq.Message{
			ID:      uuid.New().String(),
			Type:    mq.MessageTypeRunRequested,
			Payload: json.RawMessage(`{"run_id": "not-a-uuid"}`),
		},
	}

	r := newTestRunner(mem)
	if err := r.handleRunRequested(context.Background(), delivery); err == nil {
		t.Error("expected error for malformed payload, got nil")
	}
}
