package persist

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StatsWriter is the storage side of a StatsSink. StatsRepo implements it.
type StatsWriter interface {
	Insert(ctx context.Context, rows []FrameStatsRow) error
}

const (
	sinkBatch   = 32
	sinkTimeout = 5 * time.Second
)

// StatsSink decouples the game loop from the database: Submit never blocks,
// and one goroutine writes rows in batches. Rows submitted while the buffer
// is full are dropped and counted.
type StatsSink struct {
	w       StatsWriter
	ch      chan FrameStatsRow
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	failed  atomic.Uint64
	log     *zap.Logger
}

func NewStatsSink(w StatsWriter, buffer int, log *zap.Logger) *StatsSink {
	s := &StatsSink{
		w:   w,
		ch:  make(chan FrameStatsRow, buffer),
		log: log,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Submit queues a row without blocking. It reports false when the row was
// dropped.
func (s *StatsSink) Submit(row FrameStatsRow) bool {
	select {
	case s.ch <- row:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped is the number of rows discarded because the buffer was full.
func (s *StatsSink) Dropped() uint64 { return s.dropped.Load() }

// Failed is the number of rows lost to write errors.
func (s *StatsSink) Failed() uint64 { return s.failed.Load() }

// Close stops accepting rows, writes what is queued and waits for the
// writer goroutine. Submit must not be called after Close.
func (s *StatsSink) Close() {
	s.once.Do(func() { close(s.ch) })
	s.wg.Wait()
}

func (s *StatsSink) run() {
	defer s.wg.Done()
	batch := make([]FrameStatsRow, 0, sinkBatch)
	for row := range s.ch {
		batch = append(batch[:0], row)
	fill:
		for len(batch) < sinkBatch {
			select {
			case more, ok := <-s.ch:
				if !ok {
					break fill
				}
				batch = append(batch, more)
			default:
				break fill
			}
		}
		s.write(batch)
	}
}

func (s *StatsSink) write(batch []FrameStatsRow) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.w.Insert(ctx, batch); err != nil {
		s.failed.Add(uint64(len(batch)))
		s.log.Error("frame stats write failed", zap.Int("rows", len(batch)), zap.Error(err))
	}
}
