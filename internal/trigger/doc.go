// Package trigger принимает запросы на запуск workflow.
//
// Запрос (domain.TriggerRequest) приходит из API, webhook, планировщика
// через очередь workflows.trigger или из CLI. Service находит workflow
// в хранилище, проверяет, что его можно запускать из этого источника,
// и передаёт run движку. После run ошибки шагов записываются
// в Node.LastError.
package trigger
