// Package telemetry содержит логирование и метрики сервисов flowgraph.
//
// Логи пишутся через slog: JSON в production, text при LOG_FORMAT=text.
// Каждая запись несёт атрибут service, записи движка ещё run_id,
// workflow_id и node_id.
//
// Metrics собирает метрики runs и шагов. Nil *Metrics допустим,
// поэтому движок и тесты обходятся без регистрации в Prometheus.
package telemetry
