package engine

import (
	"errors"
	"fmt"
	"time"
)

// Базовые ошибки выполнения задач.
var (
	// ErrValidation — данные задачи отклонены валидатором.
	ErrValidation = errors.New("validation failed")

	// ErrExecution — тело задачи вернуло ошибку или запаниковало.
	ErrExecution = errors.New("task execution failed")

	// ErrTimeout — задача не уложилась в отведённый таймаут.
	ErrTimeout = errors.New("task timed out")
)

// ValidationError — нарушение контракта входных или выходных данных.
type ValidationError struct {
	// Task — имя задачи.
	Task string

	// Stage — какая граница нарушена: "input" или "output".
	Stage string

	// Err — ошибка валидатора.
	Err error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("task %s: %s validation failed: %v", e.Task, e.Stage, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ExecutionError — тело задачи завершилось с ошибкой.
type ExecutionError struct {
	// Task — имя задачи.
	Task string

	// Err — ошибка, возвращённая телом задачи.
	Err error
}

// Error реализует интерфейс error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *ExecutionError) Unwrap() error {
	return ErrExecution
}

// TimeoutError — задача превысила таймаут.
// Горутина задачи при этом не прерывается: отмена кооперативная,
// задача лишь считается упавшей, а её потомки — SKIPPED.
type TimeoutError struct {
	// Task — имя задачи.
	Task string

	// Limit — сработавший таймаут.
	Limit time.Duration
}

// Error реализует интерфейс error.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: timed out after %s", e.Task, e.Limit)
}

// Unwrap возвращает базовую ошибку.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
