// Package engine содержит движок выполнения workflow.
//
// Включает:
//   - graph.go      — граф шагов run (связи, триггеры, поиск циклов)
//   - parser.go     — разбор JSON документа и валидация workflow
//   - template.go   — рендеринг конфигурации через Go templates ({{ .Input.x }})
//   - dispatcher.go — обход графа в ширину, вызов шагов, выбор веток
//   - executor.go   — жизненный цикл одного run и его запись
//   - active.go     — реестр активных runs по workflow ID
//   - engine.go     — Engine: сборка Executor и отмена runs
//
// Один run выполняется последовательно: следующий шаг начинается после
// результата предыдущего. Разные workflows выполняются параллельно,
// общий для них только ActiveRuns.
package engine
