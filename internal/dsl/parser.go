package dsl

import (
	"regexp"
	"strings"

	"github.com/shaiso/Conductor/internal/domain"
)

var (
	// headerRe — заголовок flow: "flow <Name>:".
	headerRe = regexp.MustCompile(`^flow\s+([A-Za-z_]\w*)\s*:$`)

	// edgeRe — ребро: "<source> -> <targets>". Правая часть
	// разбирается отдельно, чтобы поддержать fan-out через запятую.
	edgeRe = regexp.MustCompile(`^([A-Za-z_]\w*)\s*->\s*(.+)$`)

	// identRe — допустимое имя задачи.
	identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

	// descriptionRe — директива описания с текстом в кавычках.
	descriptionRe = regexp.MustCompile(`^description\s*:\s*"(.*)"$`)
)

// Parse разбирает DSL-текст в FlowDefinition.
//
// Возвращает *ParseError при некорректном входе: отсутствующем
// заголовке, неправильной строке ребра или неизвестной директиве.
// Разбор детерминирован: один и тот же текст всегда даёт
// структурно идентичный результат.
func Parse(text string) (*domain.FlowDefinition, error) {
	lines := strings.Split(text, "\n")

	def := &domain.FlowDefinition{}
	sawHeader := false
	sawDescription := false

	// indent — отступ первой строки тела блока. Остальные строки
	// тела обязаны начинаться с того же префикса.
	indent := ""

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)

		// Пустые строки и комментарии игнорируются целиком.
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		// Первая значимая строка — заголовок flow.
		if !sawHeader {
			m := headerRe.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, newParseError(lineNo, ErrMissingHeader,
					"expected %q header, got %q", "flow <Name>:", trimmed)
			}
			def.Name = m[1]
			sawHeader = true
			continue
		}

		// Строки тела должны быть с отступом под заголовком.
		leading := raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]
		if leading == "" {
			return nil, newParseError(lineNo, ErrBadIndent,
				"content outside flow block: %q", trimmed)
		}
		if indent == "" {
			indent = leading
		} else if leading != indent {
			return nil, newParseError(lineNo, ErrBadIndent,
				"indentation differs from the rest of the block")
		}

		// Директива описания.
		if strings.HasPrefix(trimmed, "description") {
			m := descriptionRe.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, newParseError(lineNo, ErrUnknownDirective,
					"description must be quoted: description: \"...\"")
			}
			if sawDescription {
				return nil, newParseError(lineNo, ErrUnknownDirective,
					"duplicate description directive")
			}
			def.Description = m[1]
			sawDescription = true
			continue
		}

		// Ребро зависимостей.
		edge, err := parseEdge(lineNo, trimmed)
		if err != nil {
			return nil, err
		}
		def.Edges = append(def.Edges, edge)
	}

	if !sawHeader {
		return nil, newParseError(0, ErrMissingHeader, "empty input: missing flow header")
	}

	return def, nil
}

// parseEdge разбирает строку вида "a -> b" или "a -> b, c".
func parseEdge(lineNo int, line string) (domain.Edge, error) {
	m := edgeRe.FindStringSubmatch(line)
	if m == nil {
		// Строка с двоеточием похожа на директиву, а не на ребро.
		if strings.Contains(line, ":") {
			return domain.Edge{}, newParseError(lineNo, ErrUnknownDirective,
				"unknown directive: %q", line)
		}
		return domain.Edge{}, newParseError(lineNo, ErrMalformedEdge,
			"expected %q, got %q", "source -> target", line)
	}

	edge := domain.Edge{Source: m[1]}
	for _, part := range strings.Split(m[2], ",") {
		target := strings.TrimSpace(part)
		if !identRe.MatchString(target) {
			return domain.Edge{}, newParseError(lineNo, ErrMalformedEdge,
				"bad target name %q", target)
		}
		edge.Targets = append(edge.Targets, target)
	}
	return edge, nil
}
