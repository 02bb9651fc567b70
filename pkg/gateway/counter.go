package gateway

import (
	"sync/atomic"
)

// Counters are the process-wide request counters of one Core, shared by
// every concurrent execution.
type Counters struct {
	all  atomic.Int64
	fail atomic.Int64
}

// CountAll records one request and returns the new total.
func (c *Counters) CountAll() int64 {
	return c.all.Add(1)
}

// CountFail records one failed request and returns the new total.
func (c *Counters) CountFail() int64 {
	return c.fail.Add(1)
}

// All returns the number of requests seen.
func (c *Counters) All() int64 {
	return c.all.Load()
}

// Fail returns the number of failed requests.
func (c *Counters) Fail() int64 {
	return c.fail.Load()
}
