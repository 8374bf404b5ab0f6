package domain

// RunStatus — статус выполнения FlowRun.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все достижимые задачи завершились успешно.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — хотя бы одна задача завершилась с FAILED.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// TaskStatus — статус выполнения TaskRun.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	        ↘           ↘ FAILED
//	          SKIPPED (предок упал — задача не запускалась)
//
// Каждый переход происходит ровно один раз.
type TaskStatus string

const (
	// TaskStatusPending — задача ждёт своей очереди.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — задача выполняется.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — задача успешно завершена.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — задача завершилась с ошибкой.
	TaskStatusFailed TaskStatus = "FAILED"

	// TaskStatusSkipped — задача не запускалась: один из её предков упал
	// либо выполнение было прервано.
	TaskStatusSkipped TaskStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess возвращает true, если задача завершилась успешно
// и её выход можно передавать потомкам.
func (s TaskStatus) IsSuccess() bool {
	return s == TaskStatusCompleted
}
