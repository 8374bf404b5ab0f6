package api

import (
	"log/slog"
	"time"

	"github.com/shaiso/Conductor/internal/mq"
	"github.com/shaiso/Conductor/internal/registry"
	"github.com/shaiso/Conductor/internal/store"
)

// defaultStaleAfter — порог, после которого RUNNING run считается
// зависшим (runner умер, не финализировав запись).
const defaultStaleAfter = time.Hour

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	flows      store.FlowStore
	runs       store.RunStore
	schedules  store.ScheduleStore
	registry   *registry.Registry
	publisher  *mq.Publisher
	staleAfter time.Duration
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Flows     store.FlowStore
	Runs      store.RunStore
	Schedules store.ScheduleStore

	// Registry — реестр задач для валидации регистрируемых flows.
	Registry *registry.Registry

	// Publisher — публикация run.requested. Может быть nil:
	// тогда создание runs через API вернёт 503.
	Publisher *mq.Publisher

	// StaleAfter — порог зависшего run (default: 1h).
	StaleAfter time.Duration

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	return &Handler{
		flows:      cfg.Flows,
		runs:       cfg.Runs,
		schedules:  cfg.Schedules,
		registry:   cfg.Registry,
		publisher:  cfg.Publisher,
		staleAfter: staleAfter,
		logger:     cfg.Logger,
	}
}
