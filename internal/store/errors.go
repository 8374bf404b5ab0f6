package store

import "errors"

// Общие ошибки хранилищ.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFinalized — повторная финализация завершённого run.
	ErrAlreadyFinalized = errors.New("run already finalized")
)
