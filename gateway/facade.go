package gateway

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Lease is a one-shot completion primitive carrying the result of a
// priority-aware acquisition, per spec.md §9's "represent it as a
// one-shot completion primitive (promise/future or channel-of-one)".
type Lease struct {
	Conn *ResilientConnection
	Err  error
}

// acquisitionJob is the payload enqueued on the AgingQueue by
// PoolFacade.Acquire.
type acquisitionJob struct {
	ctx    context.Context
	prio   Priority
	result chan Lease
}

// PoolFacade composes the underlying Pool (C6) with the AgingQueue (C7),
// exposing a priority-aware acquire with cancellation (spec.md §4.8).
type PoolFacade struct {
	pool  *Pool
	queue *AgingQueue
	log   *zap.SugaredLogger

	workerStop chan struct{}
	workerDone chan struct{}
	workerCount int

	mu          sync.Mutex
	shutdownOnce sync.Once
	cancelled   bool
}

// NewPoolFacade wires a Pool and AgingQueue together and starts
// workerCount acquisition workers plus the aging sweeper.
func NewPoolFacade(pool *Pool, agingConfig AgingConfig, workerCount int, log *zap.SugaredLogger) *PoolFacade {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if workerCount <= 0 {
		workerCount = 4
	}
	f := &PoolFacade{
		pool:        pool,
		queue:       NewAgingQueue(agingConfig),
		log:         log,
		workerCount: workerCount,
		workerStop:  make(chan struct{}),
		workerDone:  make(chan struct{}),
	}
	f.queue.StartSweeper()
	var wg sync.WaitGroup
	wg.Add(workerCount)
	go func() {
		for i := 0; i < workerCount; i++ {
			go func() {
				defer wg.Done()
				f.runWorker()
			}()
		}
		wg.Wait()
		close(f.workerDone)
	}()
	return f
}

// runWorker dequeues acquisition jobs (allowed_bands = all) and
// completes each with the underlying pool's Acquire result.
func (f *PoolFacade) runWorker() {
	for {
		payload, ok := f.queue.Dequeue(f.workerStop, AllBands)
		if !ok {
			return
		}
		job := payload.(*acquisitionJob)
		conn, err := f.pool.Acquire(job.ctx, job.prio)
		job.result <- Lease{Conn: conn, Err: err}
	}
}

// Acquire enqueues an acquisition job at the given priority and blocks
// until a worker completes it, the facade shuts down, or ctx is
// cancelled.
func (f *PoolFacade) Acquire(ctx context.Context, prio Priority) (*ResilientConnection, error) {
	f.mu.Lock()
	if f.cancelled {
		f.mu.Unlock()
		return nil, ErrPoolShuttingDown
	}
	f.mu.Unlock()

	job := &acquisitionJob{ctx: ctx, prio: prio, result: make(chan Lease, 1)}
	f.queue.Enqueue(prio, job)

	select {
	case lease := <-job.result:
		return lease.Conn, lease.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a leased connection to the underlying pool.
func (f *PoolFacade) Release(conn *ResilientConnection) {
	f.pool.Release(conn)
}

// Shutdown implements spec.md §4.8's cancellation sequence: reject new
// enqueues, drain the queue with CONNECTION_FAILED results, stop
// workers, shut the underlying pool.
func (f *PoolFacade) Shutdown(ctx context.Context) {
	f.shutdownOnce.Do(func() {
		f.mu.Lock()
		f.cancelled = true
		f.mu.Unlock()

		close(f.workerStop)
		f.queue.StopSweeper()
		<-f.workerDone

		// Drain anything left in the bands with a terminal failure.
		for {
			payload, ok := f.queue.Dequeue(closedChan(), AllBands)
			if !ok {
				break
			}
			job := payload.(*acquisitionJob)
			job.result <- Lease{Err: ErrConnectionFailed}
		}

		f.pool.Shutdown(ctx)
	})
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Metrics returns the underlying pool's metrics collector.
func (f *PoolFacade) Metrics() *PoolMetrics { return f.pool.Metrics() }

// AgingStats returns the aging queue's aggregate counters.
func (f *PoolFacade) AgingStats() AgingQueueStats { return f.queue.Stats() }
