// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//
// Типы сообщений:
//   - run.requested — создан новый run, требуется выполнение
//   - run.finished  — run завершён (COMPLETED или FAILED)
//
// Exchanges:
//   - conductor.runs — события runs
//   - conductor.dlq  — dead letter queue
package mq
