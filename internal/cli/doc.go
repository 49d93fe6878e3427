// Package cli реализует инструмент командной строки flowgraph.
//
// # Обзор
//
// CLI работает в двух режимах:
//   - удалённые команды ходят в flowgraph API по HTTP и не импортируют internal/api;
//   - локальные команды (local run, local validate, steps) собирают
//     engine в процессе и работают с JSON-файлом workflow.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для flowgraph API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	workflows, err := client.ListWorkflows()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder с отступами) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: flowgraph workflow list --json | jq .
//
// ## Commands
//
//   - workflow: list, show, create FILE, delete, validate
//   - execute, cancel, trigger
//   - execution: list, show
//   - local: run FILE, validate FILE
//   - steps
//
// Каждая команда создаётся через фабричную функцию (NewWorkflowCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
//
// Команды execute, local run и validate завершаются ошибкой, если run
// не completed или workflow невалиден: это удобно в скриптах.
package cli
