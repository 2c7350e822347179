package storageopt

import "sync/atomic"

// Counters 存储客户端的累计计数，零值可用，并发安全。
type Counters struct {
	pings       atomic.Int64
	pingErrors  atomic.Int64
	operations  atomic.Int64
	opErrors    atomic.Int64
	slowQueries atomic.Int64
}

func (c *Counters) IncPing()      { c.pings.Add(1) }
func (c *Counters) IncPingError() { c.pingErrors.Add(1) }
func (c *Counters) IncOperation() { c.operations.Add(1) }
func (c *Counters) IncOpError()   { c.opErrors.Add(1) }
func (c *Counters) IncSlowQuery() { c.slowQueries.Add(1) }

// Snapshot 计数快照。
type Snapshot struct {
	Pings       int64 `json:"pings"`
	PingErrors  int64 `json:"pingErrors"`
	Operations  int64 `json:"operations"`
	OpErrors    int64 `json:"operationErrors"`
	SlowQueries int64 `json:"slowQueries"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Pings:       c.pings.Load(),
		PingErrors:  c.pingErrors.Load(),
		Operations:  c.operations.Load(),
		OpErrors:    c.opErrors.Load(),
		SlowQueries: c.slowQueries.Load(),
	}
}
