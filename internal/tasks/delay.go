package tasks

import (
	"context"
	"time"
)

// DelayTask ожидает указанное количество миллисекунд.
// Поддерживает отмену через context.
//
// Вход:
//   - duration_ms (number): длительность задержки (default: 1000)
//
// Выход:
//   - delayed_ms (number): фактически запрошенная задержка
func DelayTask(ctx context.Context, input map[string]any) (map[string]any, error) {
	durationMs := 1000.0
	if v, ok := getNumber(input, "duration_ms"); ok && v > 0 {
		durationMs = v
	}

	duration := time.Duration(durationMs * float64(time.Millisecond))

	select {
	case <-time.After(duration):
		return map[string]any{"delayed_ms": durationMs}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
