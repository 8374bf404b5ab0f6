package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func — исполняемое тело задачи.
//
// Вход — объединение входа flow и выходов родительских задач.
// Функция считается блокирующей; ctx несёт таймаут задачи, но
// прерывание кооперативное: функция сама решает, слушать ли ctx.
type Func func(ctx context.Context, input map[string]any) (map[string]any, error)

// Validator — проверка данных на границе задачи.
//
// Реализуется функцией (ValidatorFunc), замыканием или объектом.
// Ненулевая ошибка отклоняет данные и проваливает задачу.
type Validator interface {
	Validate(data map[string]any) error
}

// ValidatorFunc — адаптер функции к интерфейсу Validator.
type ValidatorFunc func(data map[string]any) error

// Validate реализует интерфейс Validator.
func (f ValidatorFunc) Validate(data map[string]any) error {
	return f(data)
}

// Task — зарегистрированная задача.
type Task struct {
	// Name — имя, по которому задача разрешается из DSL.
	Name string

	// Description — описание назначения задачи.
	Description string

	// Fn — исполняемое тело.
	Fn Func

	// InputValidator — необязательная проверка входа перед вызовом.
	InputValidator Validator

	// OutputValidator — необязательная проверка результата после вызова.
	OutputValidator Validator
}

// Registry — реестр задач. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// New создаёт пустой реестр.
func New() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Option настраивает задачу при регистрации.
type Option func(*Task)

// WithDescription задаёт описание задачи.
func WithDescription(description string) Option {
	return func(t *Task) { t.Description = description }
}

// WithInputValidator прикрепляет валидатор входных данных.
func WithInputValidator(v Validator) Option {
	return func(t *Task) { t.InputValidator = v }
}

// WithOutputValidator прикрепляет валидатор результата.
func WithOutputValidator(v Validator) Option {
	return func(t *Task) { t.OutputValidator = v }
}

// Register регистрирует задачу.
// Повторная регистрация имени перезаписывает предыдущую задачу.
func (r *Registry) Register(name string, fn Func, opts ...Option) {
	task := &Task{Name: name, Fn: fn}
	for _, opt := range opts {
		opt(task)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = task
}

// Resolve возвращает задачу по имени.
// Возвращает ErrNotFound, если имя не зарегистрировано.
func (r *Registry) Resolve(name string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, exists := r.tasks[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return task, nil
}

// Has проверяет, зарегистрирована ли задача.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tasks[name]
	return exists
}

// Names возвращает отсортированный список зарегистрированных имён.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
