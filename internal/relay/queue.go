package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	logx "trackrelay/pkg/logx"
)

const (
	// DefaultQuietInterval is the idle time since the last admission before
	// a drain may proceed.
	DefaultQuietInterval = 3 * time.Second
	// DefaultPace is the delay between consecutive channel posts.
	DefaultPace = 1 * time.Second
)

// Item is one queued audio attachment.
// Replaced wholesale when a later admission reuses the same sequence key.
type Item struct {
	FileID string // Telegram file id of the audio payload
	Seq    int    // originating message id; ordering and dedup key
}

// Batcher consumes one drained batch, in ascending Seq order.
type Batcher interface {
	Dispatch(ctx context.Context, batch []Item)
}

// Queue coalesces bursts of admissions into ordered batches.
//
// items/lastArrival and the worker-active flag are guarded by separate
// mutexes; neither critical section ever spans a network call or a wait.
type Queue struct {
	quiet    time.Duration
	dispatch Batcher
	log      logx.Logger

	mu          sync.Mutex
	items       []Item
	lastArrival time.Time

	wmu          sync.Mutex
	workerActive bool
	runCtx       context.Context
	wg           sync.WaitGroup
}

func NewQueue(quiet time.Duration, dispatch Batcher, log logx.Logger) *Queue {
	if quiet <= 0 {
		quiet = DefaultQuietInterval
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Queue{quiet: quiet, dispatch: dispatch, log: log}
}

// Start installs the base context handed to drain workers.
// Admissions before Start fall back to context.Background().
func (q *Queue) Start(ctx context.Context) {
	q.wmu.Lock()
	q.runCtx = ctx
	q.wmu.Unlock()
}

// Stop waits for an in-flight drain worker to finish, best-effort until ctx.
func (q *Queue) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Admit inserts or replaces the entry for seq, keeping the queue strictly
// ascending with unique keys, then ensures a drain worker is running.
func (q *Queue) Admit(fileID string, seq int) {
	q.mu.Lock()
	i := sort.Search(len(q.items), func(i int) bool { return q.items[i].Seq >= seq })
	if i < len(q.items) && q.items[i].Seq == seq {
		q.items[i].FileID = fileID
	} else {
		q.items = append(q.items, Item{})
		copy(q.items[i+1:], q.items[i:])
		q.items[i] = Item{FileID: fileID, Seq: seq}
	}
	depth := len(q.items)
	q.lastArrival = time.Now()
	q.mu.Unlock()

	q.wmu.Lock()
	spawned := false
	if !q.workerActive {
		q.workerActive = true
		spawned = true
		ctx := q.runCtx
		if ctx == nil {
			ctx = context.Background()
		}
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.worker(ctx)
		}()
	}
	q.wmu.Unlock()

	q.log.Debug("track admitted",
		logx.Int("seq", seq),
		logx.Int("depth", depth),
		logx.Bool("worker_spawned", spawned),
	)
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// worker performs at most one drain pass, then exits.
//
// It waits out the quiet interval, re-waiting while admissions keep arriving,
// then snapshots the whole queue as one batch and dispatches it. The active
// flag is cleared on every exit path; a batch admitted during the dispatch
// pass waits for the next Admit to spawn a fresh worker.
func (q *Queue) worker(ctx context.Context) {
	defer func() {
		q.wmu.Lock()
		q.workerActive = false
		q.wmu.Unlock()
	}()

	t := time.NewTimer(q.quiet)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		q.mu.Lock()
		idle := time.Since(q.lastArrival)
		q.mu.Unlock()
		if idle < q.quiet {
			// Burst still growing.
			t.Reset(q.quiet)
			continue
		}

		batch := q.drain()
		if len(batch) == 0 {
			return
		}
		q.log.Info("draining batch", logx.Int("size", len(batch)))
		q.dispatch.Dispatch(ctx, batch)
		return
	}
}

// drain atomically removes and returns the entire queue contents.
func (q *Queue) drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}
