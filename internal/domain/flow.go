package domain

import (
	"time"

	"github.com/google/uuid"
)

// Flow — зарегистрированный flow.
//
// Flow — это "рецепт" автоматизации: DSL-текст с именем и описанием.
// Каждый запуск (FlowRun) выполняет граф, построенный из этого текста.
type Flow struct {
	// ID — уникальный идентификатор flow.
	ID uuid.UUID `json:"id"`

	// Name — уникальное имя flow (из заголовка DSL: "flow <Name>:").
	Name string `json:"name"`

	// Description — описание назначения flow (из директивы description).
	Description string `json:"description,omitempty"`

	// Source — исходный DSL-текст.
	Source string `json:"source"`

	// IsActive — флаг активности. Неактивные flows не запускаются по расписанию.
	IsActive bool `json:"is_active"`

	// CreatedAt — время регистрации flow.
	CreatedAt time.Time `json:"created_at"`
}

// FlowDefinition — структурированный результат разбора DSL.
//
// Определение сохраняет порядок объявления рёбер: он используется
// как tie-break при топологической сортировке и при визуализации.
type FlowDefinition struct {
	// Name — имя flow из заголовка.
	Name string `json:"name"`

	// Description — необязательное описание.
	Description string `json:"description,omitempty"`

	// Edges — рёбра зависимостей в порядке объявления.
	Edges []Edge `json:"edges"`
}

// Edge — одна строка зависимостей вида "source -> t1, t2, ...".
//
// Target может разветвляться на несколько задач (fan-out).
type Edge struct {
	// Source — имя задачи-источника.
	Source string `json:"source"`

	// Targets — имена задач-приёмников в порядке объявления.
	Targets []string `json:"targets"`
}

// TaskNames возвращает имена всех задач определения в порядке
// первого появления. Имя, встречающееся и как source, и как target,
// возвращается один раз.
func (d *FlowDefinition) TaskNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(d.Edges)*2)

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, edge := range d.Edges {
		add(edge.Source)
		for _, target := range edge.Targets {
			add(target)
		}
	}
	return names
}

// CopyData делает поверхностную копию словаря данных.
// Значения не клонируются: слияние входов/выходов задач поверхностное.
func CopyData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
