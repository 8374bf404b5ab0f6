package dsl

import (
	"errors"
	"fmt"
)

// Ошибки разбора DSL.
var (
	// ErrMissingHeader — текст не начинается с заголовка "flow <Name>:".
	ErrMissingHeader = errors.New("missing flow header")

	// ErrMalformedEdge — строка ребра не соответствует форме "a -> b, c".
	ErrMalformedEdge = errors.New("malformed edge line")

	// ErrUnknownDirective — неизвестная директива внутри блока flow.
	ErrUnknownDirective = errors.New("unknown directive")

	// ErrBadIndent — строка выбивается из отступа блока flow.
	ErrBadIndent = errors.New("inconsistent indentation")
)

// ParseError — ошибка разбора с номером строки.
type ParseError struct {
	// Line — номер строки исходного текста (с 1).
	Line int

	// Message — описание ошибки.
	Message string

	// Err — базовая ошибка для errors.Is.
	Err error
}

// Error реализует интерфейс error.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func newParseError(line int, err error, format string, args ...any) *ParseError {
	return &ParseError{
		Line:    line,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
