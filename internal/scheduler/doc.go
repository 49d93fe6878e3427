// Package scheduler запускает workflows по schedule триггерам.
//
// Структура:
//   - cron.go      — разбор cron-выражений и вычисление следующего времени
//   - scheduler.go — Scheduler: тик по schedule триггерам активных workflows
//   - leader.go    — выбор лидера через pg_try_advisory_lock
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Workflows: workflowRepo,
//	    Firer:     publisher, // mq.Publisher публикует workflow.trigger
//	    Logger:    logger,
//	})
//
//	leader := scheduler.NewLeader(pool, scheduler.LockKey, logger)
//	defer leader.Release(context.Background())
//	sched.Run(ctx, 15*time.Second, leader.IsLeader)
//
// Тик выполняет только лидер: при нескольких экземплярах
// flowgraph-scheduler остальные простаивают.
package scheduler
