package tasks

import (
	"context"
)

// TransformTask переупаковывает вход.
//
// Вход:
//   - pick ([]any of string): оставить только эти ключи.
//     Без pick берутся все ключи, кроме управляющих (pick, rename, set).
//   - rename (map[string]any of string): переименовать ключи (old → new).
//   - set (map[string]any): добавить константные значения поверх результата.
//
// Выход — результат применения pick, rename и set к входу.
func TransformTask(_ context.Context, input map[string]any) (map[string]any, error) {
	out := make(map[string]any)

	if picks, ok := input["pick"].([]any); ok {
		for _, p := range picks {
			if key, ok := p.(string); ok {
				if v, exists := input[key]; exists {
					out[key] = v
				}
			}
		}
	} else {
		for k, v := range input {
			switch k {
			case "pick", "rename", "set":
			default:
				out[k] = v
			}
		}
	}

	if renames, ok := input["rename"].(map[string]any); ok {
		for from, to := range renames {
			target, ok := to.(string)
			if !ok {
				continue
			}
			if v, exists := out[from]; exists {
				delete(out, from)
				out[target] = v
			}
		}
	}

	if sets, ok := input["set"].(map[string]any); ok {
		for k, v := range sets {
			out[k] = v
		}
	}

	return out, nil
}
