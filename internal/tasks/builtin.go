package tasks

import (
	"context"

	"github.com/shaiso/Conductor/internal/registry"
)

// Builtin возвращает реестр со всеми встроенными задачами.
func Builtin() *registry.Registry {
	r := registry.New()

	r.Register("http", HTTPTask,
		registry.WithDescription("HTTP request: method, url, headers, body"),
		registry.WithInputValidator(registry.ValidatorFunc(validateHTTPInput)),
	)
	r.Register("delay", DelayTask,
		registry.WithDescription("Sleep for duration_ms milliseconds"),
	)
	r.Register("transform", TransformTask,
		registry.WithDescription("Pick and rename keys of the input"),
	)
	r.Register("noop", NoopTask,
		registry.WithDescription("Pass the input through unchanged"),
	)

	return r
}

// NoopTask возвращает вход без изменений.
func NoopTask(_ context.Context, input map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}
	return out, nil
}
