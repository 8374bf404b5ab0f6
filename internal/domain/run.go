package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowRun — экземпляр выполнения flow.
//
// FlowRun создаётся, когда движок начинает выполнять валидированный DAG.
// Во время выполнения объект принадлежит исключительно движку; после
// финализации владение переходит хранилищу, а читатели получают копии.
type FlowRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// FlowName — имя flow, который выполняется.
	FlowName string `json:"flow_name"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Input — исходные входные данные flow.
	Input map[string]any `json:"input,omitempty"`

	// Result — итоговый результат: объединение выходов успешно
	// завершённых листовых задач (задач без потомков).
	Result map[string]any `json:"result,omitempty"`

	// Error — текст ошибки верхнего уровня, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// Tasks — записи задач в топологическом порядке.
	Tasks []*TaskRun `json:"tasks"`

	// StartedAt — время начала выполнения (когда статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения. Nil, если run ещё выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewFlowRun создаёт FlowRun в статусе PENDING.
func NewFlowRun(flowName string, input map[string]any) *FlowRun {
	return &FlowRun{
		ID:        uuid.New(),
		FlowName:  flowName,
		Status:    RunStatusPending,
		Input:     CopyData(input),
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *FlowRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *FlowRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// IsStale возвращает true, если запись висит в RUNNING дольше порога.
// Такой run неопределён: его процесс мог быть прерван, и читатели
// не должны считать его завершившимся.
func (r *FlowRun) IsStale(threshold time.Duration, now time.Time) bool {
	if r.Status != RunStatusRunning || r.StartedAt == nil {
		return false
	}
	return now.Sub(*r.StartedAt) > threshold
}

// TaskByName возвращает запись задачи по имени. Nil, если не найдена.
func (r *FlowRun) TaskByName(name string) *TaskRun {
	for _, task := range r.Tasks {
		if task.Name == name {
			return task
		}
	}
	return nil
}

// MarkRunning переводит run в статус RUNNING.
func (r *FlowRun) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит run в статус COMPLETED с итоговым результатом.
func (r *FlowRun) MarkCompleted(result map[string]any) {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.FinishedAt = &now
	r.Result = result
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *FlowRun) MarkFailed(err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// Clone возвращает копию run для внешних читателей.
// Копируются записи задач и словари данных, чтобы читатель
// не мог повлиять на объект, принадлежащий движку или хранилищу.
func (r *FlowRun) Clone() *FlowRun {
	clone := *r
	clone.Input = CopyData(r.Input)
	clone.Result = CopyData(r.Result)
	clone.Tasks = make([]*TaskRun, len(r.Tasks))
	for i, task := range r.Tasks {
		clone.Tasks[i] = task.Clone()
	}
	return &clone
}
