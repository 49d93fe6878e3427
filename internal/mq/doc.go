// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — конверт Message, запросы на запуск и события завершения
//   - consumer.go   — потребление сообщений с ack/nack и DLQ
//
// Типы сообщений:
//   - workflow.trigger   — запрос на запуск workflow (domain.TriggerRequest)
//   - execution.finished — сводка завершённого run
//
// Exchanges:
//   - flowgraph.workflows — запросы и события workflows
//   - flowgraph.dlq       — dead letter queue
package mq
