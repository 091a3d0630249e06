// Package scheduler выполняет батч независимых jobs с ограничением параллелизма.
//
// Стадия создаёт jobs, отдаёт их планировщику и блокируется до конца батча:
//
//	sched := scheduler.New(scheduler.Config{NCores: 4, Logger: logger})
//	result := sched.Run(ctx, jobs)
//	if result.AllFailed() {
//	    return result.Err()
//	}
//
// Гарантии:
//   - одновременно выполняется не больше NCores jobs (golang.org/x/sync/semaphore)
//   - при NCores == 1 jobs выполняются строго в порядке подачи
//   - падение или паника одного job не отменяет остальные
//   - Run возвращается только когда все jobs в финальном статусе
//
// Как трактовать частичные падения, решает стадия.
package scheduler
