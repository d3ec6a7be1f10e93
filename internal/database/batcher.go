package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// FlushFunc writes one batch to the backing store.
type FlushFunc func(ctx context.Context, batch []Sample) error

// FlushTimeout bounds the final flush on Close.
const FlushTimeout = 5 * time.Second

// Batcher collects samples and hands them to a FlushFunc when the batch is
// full or the flush interval elapses.
type Batcher struct {
	batchSize int
	interval  time.Duration
	flushFn   FlushFunc
	batch     []Sample
	batchChan chan Sample
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	started   atomic.Bool
	dropped   atomic.Uint64
	failed    atomic.Uint64
	logger    zerolog.Logger
}

// NewBatcher creates a batcher; name is used for logging only.
func NewBatcher(name string, batchSize int, interval time.Duration, flush FlushFunc) *Batcher {
	if batchSize <= 0 {
		batchSize = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Batcher{
		batchSize: batchSize,
		interval:  interval,
		flushFn:   flush,
		batch:     make([]Sample, 0, batchSize),
		batchChan: make(chan Sample, batchSize*2),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    log.With().Str("component", "database").Str("sink", name).Logger(),
	}
}

// Start launches the write loop. Calling it again does nothing.
func (b *Batcher) Start() {
	b.startOnce.Do(func() {
		b.started.Store(true)
		go b.writeLoop()
	})
}

func (b *Batcher) writeLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return

		case s := <-b.batchChan:
			b.batch = append(b.batch, s)
			if len(b.batch) >= b.batchSize {
				b.flush(b.ctx)
			}

		case <-ticker.C:
			b.flush(b.ctx)
		}
	}
}

// drain empties the queue and flushes with a fresh deadline, since b.ctx
// is already cancelled.
func (b *Batcher) drain() {
	for {
		select {
		case s := <-b.batchChan:
			b.batch = append(b.batch, s)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			defer cancel()
			b.flush(ctx)
			return
		}
	}
}

func (b *Batcher) flush(ctx context.Context) {
	if len(b.batch) == 0 {
		return
	}
	if err := b.flushFn(ctx, b.batch); err != nil {
		b.failed.Add(uint64(len(b.batch)))
		b.logger.Error().Err(err).Int("samples", len(b.batch)).Msg("Database: flush failed, batch dropped")
	} else {
		b.logger.Debug().Int("samples", len(b.batch)).Msg("Database: flushed")
	}
	b.batch = b.batch[:0]
}

// Write queues s without blocking; when the queue is full s is dropped.
func (b *Batcher) Write(s Sample) {
	select {
	case b.batchChan <- s:
	default:
		if b.dropped.Add(1)%100 == 1 {
			b.logger.Warn().Uint64("dropped", b.dropped.Load()).Msg("Database: batch channel full, dropping sample")
		}
	}
}

// Dropped counts samples lost to a full queue.
func (b *Batcher) Dropped() uint64 { return b.dropped.Load() }

// Failed counts samples lost to flush errors.
func (b *Batcher) Failed() uint64 { return b.failed.Load() }

// Close stops the loop after a last flush.
func (b *Batcher) Close() error {
	b.cancel()
	if b.started.Load() {
		<-b.done
	}
	return nil
}
