// Package xcron 基于 robfig/cron/v3 调度周期任务。
//
// 每个任务有名字，同名任务通过 Locker 避免重叠执行；
// 单次执行可设超时，panic 被恢复为错误，结果计入 Stats 并写日志。
//
//	s := xcron.New(xcron.WithLogger(logger), xcron.WithLocker(locker))
//	_, err := s.AddFunc("stats-report", "@every 1m", report, xcron.WithTimeout(10*time.Second))
//	err = xrun.Run(ctx, logger, s.Service(), ...)
package xcron
