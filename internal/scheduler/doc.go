// Package scheduler реализует логику планировщика запусков.
//
// Scheduler периодически проверяет schedules с истекшим next_due_at
// и ставит новые runs в очередь на выполнение.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processSchedule)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleStore,
//	    Flows:     flowStore,
//	    Publisher: publisher,
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Доставка at-least-once: если обновление schedule после публикации
// не удалось, следующий тик опубликует запрос повторно.
package scheduler
