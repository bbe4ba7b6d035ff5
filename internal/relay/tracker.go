package relay

import "sync/atomic"

// Tracker holds the last channel message id confirmed by Telegram.
//
// The atomic is for cheap cross-goroutine visibility between dispatch passes;
// it is NOT what makes prediction correct. predicted = Last()+1 only holds
// because the queue guarantees at most one drain worker at a time and the
// dispatcher sends strictly in order within a pass. Concurrent dispatch would
// break prediction no matter how this counter is synchronized.
type Tracker struct {
	last atomic.Int64
}

func (t *Tracker) Last() int { return int(t.last.Load()) }

func (t *Tracker) Store(id int) { t.last.Store(int64(id)) }
