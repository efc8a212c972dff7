package gateway

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// agingEntry is one waiting job, grounded on spec.md §3's "Aging queue
// entry: (priority, enqueue_time, payload)".
type agingEntry struct {
	basePriority Priority
	enqueueTime  time.Time
	payload      any
}

// AgingQueueStats are the aggregate counters spec.md §4.1 requires.
type AgingQueueStats struct {
	TotalBoostsApplied int64
	StarvationAlerts   int64
	AvgWaitTime        time.Duration
	MaxWaitTime        time.Duration
}

// AgingQueue is a multi-band FIFO with a background sweeper that
// promotes long-waiting entries to a higher band, preventing starvation
// of low-priority jobs. Grounded on spec.md §4.7; the mutex-guarded
// queue mirrors the teacher's worker_pool.go queue, generalized from a
// single FIFO channel to four priority bands. Blocked Dequeue callers
// wait on per-waiter wake channels rather than a condition variable.
type AgingQueue struct {
	config AgingConfig

	mu     sync.Mutex
	bands  [4]*list.List // index by Priority; each element *agingEntry
	waiters *list.List   // of chan struct{}

	totalBoosts      atomic.Int64
	starvationAlerts atomic.Int64
	totalWait        atomic.Int64 // nanoseconds, cumulative
	waitSamples      atomic.Int64
	maxWait          atomic.Int64 // nanoseconds

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAgingQueue constructs an empty AgingQueue. Call StartSweeper to
// begin background promotion.
func NewAgingQueue(config AgingConfig) *AgingQueue {
	q := &AgingQueue{
		config:  config,
		waiters: list.New(),
	}
	for i := range q.bands {
		q.bands[i] = list.New()
	}
	return q
}

// Enqueue records enqueue_time and pushes to the entry's band FIFO.
func (q *AgingQueue) Enqueue(prio Priority, payload any) {
	q.mu.Lock()
	q.bands[prio].PushBack(&agingEntry{basePriority: prio, enqueueTime: time.Now(), payload: payload})
	q.wake()
	q.mu.Unlock()
}

func (q *AgingQueue) wake() {
	if e := q.waiters.Front(); e != nil {
		q.waiters.Remove(e)
		close(e.Value.(chan struct{}))
	}
}

func (q *AgingQueue) wakeAll() {
	for e := q.waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	q.waiters.Init()
}

// Dequeue scans bands in priority order (highest first), restricted to
// allowedBands, and returns the head of the first non-empty one. It
// blocks until an entry is available or the stop channel closes, in
// which case it returns (nil, false).
func (q *AgingQueue) Dequeue(stop <-chan struct{}, allowedBands [4]bool) (any, bool) {
	for {
		q.mu.Lock()
		for p := Critical; p >= HealthCheck; p-- {
			if !allowedBands[p] {
				continue
			}
			band := q.bands[p]
			if e := band.Front(); e != nil {
				entry := band.Remove(e).(*agingEntry)
				q.mu.Unlock()
				q.recordWait(time.Since(entry.enqueueTime))
				return entry.payload, true
			}
		}

		waiter := make(chan struct{})
		elem := q.waiters.PushBack(waiter)
		q.mu.Unlock()

		select {
		case <-waiter:
		case <-stop:
			q.mu.Lock()
			q.waiters.Remove(elem)
			q.mu.Unlock()
			return nil, false
		}
	}
}

func (q *AgingQueue) recordWait(wait time.Duration) {
	q.totalWait.Add(int64(wait))
	q.waitSamples.Add(1)
	for {
		cur := q.maxWait.Load()
		if int64(wait) <= cur {
			break
		}
		if q.maxWait.CompareAndSwap(cur, int64(wait)) {
			break
		}
	}
	if wait >= q.config.StarvationThreshold {
		q.starvationAlerts.Add(1)
	}
}

// StartSweeper launches the background promotion loop (spec.md §4.7).
func (q *AgingQueue) StartSweeper() {
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})
	go q.sweepLoop()
}

// StopSweeper stops the background loop and waits for it to exit.
func (q *AgingQueue) StopSweeper() {
	if q.stopCh == nil {
		return
	}
	close(q.stopCh)
	<-q.doneCh
}

func (q *AgingQueue) sweepLoop() {
	defer close(q.doneCh)
	ticker := time.NewTicker(q.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

// sweep re-evaluates every waiting entry's boost and re-buckets any that
// have crossed a band boundary to the head of the higher band,
// preserving relative age among boosted entries (spec.md §4.7).
func (q *AgingQueue) sweep() {
	now := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	var promoted [4][]*agingEntry
	for p := HealthCheck; p < Critical; p++ {
		band := q.bands[p]
		var next *list.Element
		for e := band.Front(); e != nil; e = next {
			next = e.Next()
			entry := e.Value.(*agingEntry)
			wait := now.Sub(entry.enqueueTime)
			boost := q.config.boost(wait)
			targetBand := entry.basePriority + Priority(boost)
			if targetBand > Critical {
				targetBand = Critical
			}
			if targetBand > p {
				band.Remove(e)
				promoted[targetBand] = append(promoted[targetBand], entry)
				q.totalBoosts.Add(1)
			}
			if wait >= q.config.StarvationThreshold {
				q.starvationAlerts.Add(1)
			}
		}
	}
	// Splice each target band's promotions in as a block, oldest-first,
	// so relative age among boosted entries is preserved (spec.md §4.7)
	// instead of reversed by a one-PushFront-per-entry loop.
	for targetBand, entries := range promoted {
		if len(entries) == 0 {
			continue
		}
		band := q.bands[targetBand]
		var mark *list.Element
		for i := len(entries) - 1; i >= 0; i-- {
			if mark == nil {
				mark = band.PushFront(entries[i])
			} else {
				mark = band.InsertBefore(entries[i], mark)
			}
		}
	}
	q.wakeAll()
}

// Stats returns the aggregate counters.
func (q *AgingQueue) Stats() AgingQueueStats {
	samples := q.waitSamples.Load()
	var avg time.Duration
	if samples > 0 {
		avg = time.Duration(q.totalWait.Load() / samples)
	}
	return AgingQueueStats{
		TotalBoostsApplied: q.totalBoosts.Load(),
		StarvationAlerts:   q.starvationAlerts.Load(),
		AvgWaitTime:        avg,
		MaxWaitTime:        time.Duration(q.maxWait.Load()),
	}
}

// AllBands is the allowed-bands mask accepting every priority, used by
// PoolFacade's workers (spec.md §4.8: "allowed_bands = all").
var AllBands = [4]bool{true, true, true, true}
