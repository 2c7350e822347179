// Package distributed 提供任务调度相关的子包。
//
// 子包列表：
//   - xcron: 定时任务，可选锁保证同一任务不重叠执行
package distributed
