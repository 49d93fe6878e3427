// Package steps содержит таблицу шагов и реализации всех типов узлов.
//
// # Обзор
//
// Шаг описывается ключом (category, subtype) и тремя функциями:
//   - Validate — проверка конфигурации, возвращает список сообщений
//   - DefaultConfig — конфигурация для нового узла в редакторе
//   - Handler — выполнение с уже отрендеренной конфигурацией
//
// Handler никогда не паникует наружу и не возвращает error: результат
// всегда Result{Success, Output, Error}. Движок сам решает, что делать
// с неуспешным результатом.
//
// # Registry
//
//	registry := steps.DefaultRegistry(steps.Options{Mailer: m, DB: pool})
//	def, ok := registry.Lookup(domain.CategoryLogic, domain.SubtypeIf)
//	if !ok {
//	    // шаг не зарегистрирован
//	}
//	errs := def.Validate(node.Config)
//
// Реестр заполняется при старте и не меняется во время run.
//
// # Типы шагов
//
// Триггеры:
//   - trigger/manual   — ручной запуск (manual.go)
//   - trigger/webhook  — payload входящего webhook (webhook.go)
//   - trigger/schedule — запуск по cron (schedule.go)
//
// Действия:
//   - action/http      — HTTP запрос (http.go)
//   - action/email     — письмо через Mailer (email.go)
//   - action/database  — SQL запрос через pgx (database.go)
//   - action/transform — сборка output из mappings (transform.go)
//   - action/delay     — пауза с учётом отмены (delay.go)
//
// Логика:
//   - logic/if     — выбор ветки true/false (ifgate.go)
//   - logic/filter — отбор элементов массива (filter.go)
//
// Условия if и filter разбираются в condition.go. Путь к полю задаётся
// через точку ("user.profile.role", "items.0.id"), значения сравниваются
// в строковом виде. greaterThan и lessThan сравнивают числа, если оба
// операнда числа, иначе строки лексически.
//
// # Обработка ошибок
//
//	var (
//	    ErrStepNotFound   // ключ не зарегистрирован
//	    ErrInvalidConfig  // неверная конфигурация
//	    ErrStepCancelled  // context cancelled
//	)
//
// HTTP ответ со статусом >= 400 становится *StatusError.
package steps
