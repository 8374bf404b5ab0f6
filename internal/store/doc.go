// Package store хранит записи о flows, runs и schedules.
//
// Контракт RunStore: движок — единственный писатель; записи во время
// активного run — best-effort (для живого просмотра), авторитетная
// запись делается при финализации. Читатели всегда получают копии
// и не могут изменить состояние хранилища.
//
// Реализации:
//   - Memory — потокобезопасное хранилище в памяти (CLI, тесты,
//     встраивание движка в другой процесс);
//   - Postgres-хранилища на jackc/pgx (сервисы).
//
// Известный краевой случай: если процесс run'а был прерван, запись
// может навсегда остаться в RUNNING. Хранилище это не лечит —
// читатели обязаны считать RUNNING старше порога неопределённым
// (domain.FlowRun.IsStale).
package store
