// Package runner реализует сервис выполнения flows.
//
// Runner — stateless компонент системы, который:
//   - Получает запросы run.requested из очереди RabbitMQ
//   - Загружает flow из БД, парсит DSL и строит DAG
//   - Выполняет весь run in-process через engine
//   - Публикует событие run.finished
//
// Runners масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди. Один run целиком выполняется
// одним runner'ом.
package runner
