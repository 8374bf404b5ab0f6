package graph

import (
	"errors"
	"strings"
)

// Базовые ошибки структурной валидации.
var (
	// ErrUnknownTask — ребро ссылается на имя, отсутствующее в реестре.
	ErrUnknownTask = errors.New("unknown task")

	// ErrCycleDetected — в графе зависимостей есть цикл.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDuplicateFlowName — flow с таким именем уже зарегистрирован.
	ErrDuplicateFlowName = errors.New("duplicate flow name")

	// ErrEmptyFlow — определение не содержит ни одного ребра.
	ErrEmptyFlow = errors.New("flow has no edges")
)

// Kind — вид структурной ошибки.
type Kind string

// Виды структурных ошибок.
const (
	KindUnknownTask       Kind = "UNKNOWN_TASK"
	KindCycleDetected     Kind = "CYCLE_DETECTED"
	KindDuplicateFlowName Kind = "DUPLICATE_FLOW_NAME"
)

// Error — структурная ошибка графа с контекстом.
type Error struct {
	// Kind — вид ошибки.
	Kind Kind

	// Flow — имя flow, в котором обнаружена ошибка.
	Flow string

	// Task — имя задачи-виновника (для UnknownTask).
	Task string

	// Cycle — путь цикла (для CycleDetected), замкнутый:
	// первый и последний элементы совпадают.
	Cycle []string
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	switch e.Kind {
	case KindUnknownTask:
		return "flow " + e.Flow + ": unknown task " + e.Task
	case KindCycleDetected:
		return "flow " + e.Flow + ": cycle detected: " + strings.Join(e.Cycle, " -> ")
	case KindDuplicateFlowName:
		return "duplicate flow name " + e.Flow
	default:
		return "flow " + e.Flow + ": invalid graph"
	}
}

// Unwrap возвращает базовую ошибку для errors.Is.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindUnknownTask:
		return ErrUnknownTask
	case KindCycleDetected:
		return ErrCycleDetected
	case KindDuplicateFlowName:
		return ErrDuplicateFlowName
	default:
		return nil
	}
}

// NewDuplicateFlowName возвращает ошибку коллизии имён flow.
// Её возвращают хранилища flow при попытке повторной регистрации.
func NewDuplicateFlowName(flow string) *Error {
	return &Error{Kind: KindDuplicateFlowName, Flow: flow}
}
