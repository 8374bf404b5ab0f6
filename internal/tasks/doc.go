// Package tasks — встроенная библиотека задач.
//
// Builtin возвращает реестр с задачами общего назначения (http, delay,
// transform, noop), которыми пользуются CLI и runner для flows без
// собственного Go-кода. Встраивающий процесс может дополнить реестр
// своими задачами через registry.Register.
package tasks
