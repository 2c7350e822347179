package xcron

import (
	"sync"
	"time"
)

// JobStats 单个任务的执行统计。
type JobStats struct {
	Runs         int64         `json:"runs"`
	Successes    int64         `json:"successes"`
	Failures     int64         `json:"failures"`
	Skips        int64         `json:"skips"`
	LastRun      time.Time     `json:"lastRun"`
	LastDuration time.Duration `json:"lastDuration"`
	LastError    string        `json:"lastError,omitempty"`
}

// Stats 按任务名汇总，并发安全。
type Stats struct {
	mu   sync.Mutex
	jobs map[string]*JobStats
}

func newStats() *Stats {
	return &Stats{jobs: make(map[string]*JobStats)}
}

func (s *Stats) job(name string) *JobStats {
	js, ok := s.jobs[name]
	if !ok {
		js = &JobStats{}
		s.jobs[name] = js
	}
	return js
}

func (s *Stats) recordRun(name string, start time.Time, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	js := s.job(name)
	js.Runs++
	js.LastRun = start
	js.LastDuration = d
	if err != nil {
		js.Failures++
		js.LastError = err.Error()
		return
	}
	js.Successes++
	js.LastError = ""
}

func (s *Stats) recordSkip(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job(name).Skips++
}

// Job 返回快照，未知任务返回零值。
func (s *Stats) Job(name string) JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if js, ok := s.jobs[name]; ok {
		return *js
	}
	return JobStats{}
}

// Snapshot 全部任务的快照。
func (s *Stats) Snapshot() map[string]JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]JobStats, len(s.jobs))
	for k, v := range s.jobs {
		out[k] = *v
	}
	return out
}
