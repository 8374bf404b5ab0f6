package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conductor/internal/domain"
	"github.com/shaiso/Conductor/internal/graph"
)

func newRun(flowName string) *domain.FlowRun {
	run := domain.NewFlowRun(flowName, nil)
	run.Tasks = append(run.Tasks, domain.NewTaskRun("a"), domain.NewTaskRun("b"))
	return run
}

func newFlow(name string) *domain.Flow {
	return &domain.Flow{
		ID:        uuid.New(),
		Name:      name,
		Source:    "flow " + name + ":\n    a -> b\n",
		IsActive:  true,
		CreatedAt: time.Now(),
	}
}

func TestMemory_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	run := newRun("deploy")
	run.MarkRunning()
	if err := mem.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunStatusRunning {
		t.Errorf("expected RUNNING, got %s", got.Status)
	}
	if len(got.Tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(got.Tasks))
	}

	// Переход задачи виден последующим читателям.
	task := run.Tasks[0]
	task.MarkRunning(map[string]any{"k": "v"})
	if err := mem.RecordTaskTransition(ctx, run.ID, task); err != nil {
		t.Fatalf("RecordTaskTransition: %v", err)
	}

	got, err = mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Tasks[0].Status != domain.TaskStatusRunning {
		t.Errorf("expected task RUNNING, got %s", got.Tasks[0].Status)
	}

	run.MarkCompleted(map[string]any{"done": true})
	if err := mem.FinalizeRun(ctx, run); err != nil {
		t.Fatalf("FinalizeRun: %v", err)
	}

	got, err = mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", got.Status)
	}
	if got.Result["done"] != true {
		t.Errorf("expected result done=true, got %v", got.Result)
	}
}

func TestMemory_FinalizeTwice(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	run := newRun("deploy")
	run.MarkRunning()
	run.MarkCompleted(nil)
	if err := mem.FinalizeRun(ctx, run); err != nil {
		t.Fatalf("first FinalizeRun: %v", err)
	}

	if err := mem.FinalizeRun(ctx, run); !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestMemory_RecordTaskTransitionNotFound(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	task := domain.NewTaskRun("a")
	if err := mem.RecordTaskTransition(ctx, uuid.New(), task); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown run, got %v", err)
	}

	run := newRun("deploy")
	if err := mem.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	stranger := domain.NewTaskRun("not_in_run")
	if err := mem.RecordTaskTransition(ctx, run.ID, stranger); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown task, got %v", err)
	}
}

func TestMemory_GetRunNotFound(t *testing.T) {
	mem := NewMemory()
	if _, err := mem.GetRun(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListRuns(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	for i := 0; i < 3; i++ {
		run := newRun("deploy")
		run.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		if i == 0 {
			run.MarkRunning()
			run.MarkFailed("boom")
		}
		if err := mem.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	other := newRun("cleanup")
	if err := mem.CreateRun(ctx, other); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	t.Run("filter by flow", func(t *testing.T) {
		runs, err := mem.ListRuns(ctx, RunFilter{FlowName: "deploy"})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 3 {
			t.Errorf("expected 3 runs, got %d", len(runs))
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		runs, err := mem.ListRuns(ctx, RunFilter{Status: domain.RunStatusFailed})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 failed run, got %d", len(runs))
		}
	})

	t.Run("newest first", func(t *testing.T) {
		runs, err := mem.ListRuns(ctx, RunFilter{FlowName: "deploy"})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		for i := 1; i < len(runs); i++ {
			if runs[i].CreatedAt.After(runs[i-1].CreatedAt) {
				t.Errorf("runs not sorted newest first")
			}
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		runs, err := mem.ListRuns(ctx, RunFilter{FlowName: "deploy", Limit: 2})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("expected 2 runs with limit, got %d", len(runs))
		}

		runs, err = mem.ListRuns(ctx, RunFilter{FlowName: "deploy", Offset: 2})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after offset, got %d", len(runs))
		}

		runs, err = mem.ListRuns(ctx, RunFilter{Offset: 100})
		if err != nil {
			t.Fatalf("ListRuns: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("expected empty page past the end, got %d", len(runs))
		}
	})
}

func TestMemory_ReadersGetCopies(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	run := newRun("deploy")
	run.Input = map[string]any{"key": "original"}
	if err := mem.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	// Мутации копии не видны хранилищу.
	got.Input["key"] = "mutated"
	got.Tasks[0].MarkFailed("mutated")

	again, err := mem.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if again.Input["key"] != "original" {
		t.Errorf("store saw reader mutation of input")
	}
	if again.Tasks[0].Status != domain.TaskStatusPending {
		t.Errorf("store saw reader mutation of task status")
	}
}

func TestMemory_FlowCRUD(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	flow := newFlow("deploy")
	if err := mem.CreateFlow(ctx, flow); err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}

	got, err := mem.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if got.Name != "deploy" {
		t.Errorf("expected name deploy, got %s", got.Name)
	}

	byName, err := mem.GetFlowByName(ctx, "deploy")
	if err != nil {
		t.Fatalf("GetFlowByName: %v", err)
	}
	if byName.ID != flow.ID {
		t.Errorf("expected same flow by name")
	}

	flow.Description = "updated"
	flow.IsActive = false
	if err := mem.UpdateFlow(ctx, flow); err != nil {
		t.Fatalf("UpdateFlow: %v", err)
	}
	got, err = mem.GetFlow(ctx, flow.ID)
	if err != nil {
		t.Fatalf("GetFlow: %v", err)
	}
	if got.Description != "updated" || got.IsActive {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestMemory_DuplicateFlowName(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	if err := mem.CreateFlow(ctx, newFlow("deploy")); err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}

	err := mem.CreateFlow(ctx, newFlow("deploy"))
	if !errors.Is(err, graph.ErrDuplicateFlowName) {
		t.Errorf("expected ErrDuplicateFlowName, got %v", err)
	}
}

func TestMemory_UpdateFlowNotFound(t *testing.T) {
	mem := NewMemory()
	if err := mem.UpdateFlow(context.Background(), newFlow("ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListFlowsSortedByName(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := mem.CreateFlow(ctx, newFlow(name)); err != nil {
			t.Fatalf("CreateFlow: %v", err)
		}
	}

	flows, err := mem.ListFlows(ctx)
	if err != nil {
		t.Fatalf("ListFlows: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(flows) != len(want) {
		t.Fatalf("expected %d flows, got %d", len(want), len(flows))
	}
	for i, name := range want {
		if flows[i].Name != name {
			t.Errorf("flows[%d]: expected %s, got %s", i, name, flows[i].Name)
		}
	}
}

func newSchedule(flowID uuid.UUID, due time.Time) *domain.Schedule {
	return &domain.Schedule{
		ID:        uuid.New(),
		FlowID:    flowID,
		CronExpr:  "0 9 * * *",
		Timezone:  "UTC",
		Enabled:   true,
		NextDueAt: &due,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestMemory_ScheduleCRUD(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	sched := newSchedule(uuid.New(), time.Now().Add(time.Hour))
	if err := mem.CreateSchedule(ctx, sched); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	got, err := mem.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.CronExpr != "0 9 * * *" {
		t.Errorf("unexpected cron expr: %s", got.CronExpr)
	}

	sched.Enabled = false
	if err := mem.UpdateSchedule(ctx, sched); err != nil {
		t.Fatalf("UpdateSchedule: %v", err)
	}
	got, err = mem.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.Enabled {
		t.Error("expected schedule to be disabled after update")
	}

	if err := mem.DeleteSchedule(ctx, sched.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	if _, err := mem.GetSchedule(ctx, sched.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := mem.DeleteSchedule(ctx, sched.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemory_ListDue(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	now := time.Now()

	overdue := newSchedule(uuid.New(), now.Add(-time.Minute))
	future := newSchedule(uuid.New(), now.Add(time.Hour))
	disabled := newSchedule(uuid.New(), now.Add(-time.Minute))
	disabled.Enabled = false

	for _, sched := range []*domain.Schedule{overdue, future, disabled} {
		if err := mem.CreateSchedule(ctx, sched); err != nil {
			t.Fatalf("CreateSchedule: %v", err)
		}
	}

	due, err := mem.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDue: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due schedule, got %d", len(due))
	}
	if due[0].ID != overdue.ID {
		t.Errorf("expected overdue schedule, got %s", due[0].ID)
	}

	t.Run("limit", func(t *testing.T) {
		second := newSchedule(uuid.New(), now.Add(-2*time.Minute))
		if err := mem.CreateSchedule(ctx, second); err != nil {
			t.Fatalf("CreateSchedule: %v", err)
		}

		due, err := mem.ListDue(ctx, now, 1)
		if err != nil {
			t.Fatalf("ListDue: %v", err)
		}
		if len(due) != 1 {
			t.Fatalf("expected limit to cap results, got %d", len(due))
		}
		// Самое просроченное расписание идёт первым.
		if due[0].ID != second.ID {
			t.Errorf("expected most overdue first, got %s", due[0].ID)
		}
	})
}
