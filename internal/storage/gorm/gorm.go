// Package gormstorage implements storage.Backend on GORM (SQLite or
// Postgres). Records are queued and written in batches by a background
// writer.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dronelab/tellosim/internal/model"
	"github.com/dronelab/tellosim/internal/model/convert"
	"github.com/dronelab/tellosim/internal/queue"
	"github.com/dronelab/tellosim/pkg/core"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	maxQueued            = 100_000 // per queue, oldest records are dropped beyond this
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB // nil runs in queue-only mode
	Logger        zerolog.Logger
	FlushInterval time.Duration
}

type queues struct {
	Commands *queue.Queue[model.CommandLog]
	Samples  *queue.Queue[model.StateSample]
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	flightID atomic.Uint64
	flushMu  sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps: deps,
		queues: &queues{
			Commands: queue.NewBounded[model.CommandLog](maxQueued),
			Samples:  queue.NewBounded[model.StateSample](maxQueued),
		},
	}
}

// Init starts the DB writer goroutine. The schema must already be migrated.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})

	b.wg.Add(1)
	go b.writerLoop()
	return nil
}

// Close stops the writer and flushes what is still queued.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
		}
	})
	b.wg.Wait()
	return b.Flush()
}

// StartFlight inserts the flight synchronously so its ID is known before
// any record is written.
func (b *Backend) StartFlight(f *core.Flight) error {
	if b.deps.DB == nil {
		return nil
	}

	m := convert.CoreToFlight(*f)
	m.ID = 0
	if err := b.deps.DB.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert flight: %w", err)
	}
	f.ID = m.ID
	b.flightID.Store(uint64(m.ID))

	b.deps.Logger.Info().Uint("flightId", m.ID).Str("name", f.Name).Msg("Flight started")
	return nil
}

// EndFlight flushes the queues and stores the summary on the flight row.
func (b *Backend) EndFlight(summary core.FlightSummary) error {
	if err := b.Flush(); err != nil {
		return err
	}

	id := uint(b.flightID.Load())
	if b.deps.DB == nil || id == 0 {
		return nil
	}

	err := b.deps.DB.Model(&model.Flight{}).
		Where("id = ?", id).
		Updates(convert.SummaryColumns(summary)).Error
	if err != nil {
		return fmt.Errorf("failed to close flight %d: %w", id, err)
	}

	b.deps.Logger.Info().
		Uint("flightId", id).
		Int("commands", summary.Commands).
		Float64("distanceMetres", summary.DistanceMetres).
		Msg("Flight closed")
	return nil
}

// RecordCommand converts and queues a command record.
func (b *Backend) RecordCommand(c *core.CommandRecord) error {
	b.queues.Commands.Push(convert.CoreToCommandLog(*c))
	return nil
}

// RecordState converts and queues a state sample.
func (b *Backend) RecordState(s *core.StateSample) error {
	b.queues.Samples.Push(convert.CoreToStateSample(*s))
	return nil
}

// QueueLengths reports how many records wait for the writer.
func (b *Backend) QueueLengths() (commands, samples int) {
	return b.queues.Commands.Len(), b.queues.Samples.Len()
}

// Flush writes all queued records now. Without a DB it leaves them queued.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	flightID := uint(b.flightID.Load())

	err1 := writeQueue(b.deps.DB, b.queues.Commands, func(items []model.CommandLog) {
		for i := range items {
			if items[i].FlightID == 0 {
				items[i].FlightID = flightID
			}
		}
	})
	err2 := writeQueue(b.deps.DB, b.queues.Samples, func(items []model.StateSample) {
		for i := range items {
			if items[i].FlightID == 0 {
				items[i].FlightID = flightID
			}
		}
	})

	if err1 != nil {
		return fmt.Errorf("writing command logs: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("writing state samples: %w", err2)
	}
	return nil
}

// writeQueue writes all items from a queue in one transaction. On failure the
// items go back on the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], prepare func([]T)) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	if prepare != nil {
		prepare(items)
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		q.Requeue(items...)
		return err
	}
	return tx.Commit().Error
}

func (b *Backend) writerLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error().Err(err).Msg("DB writer")
				continue
			}
			b.deps.Logger.Trace().Dur("took", time.Since(start)).Msg("DB writer flushed")
		}
	}
}
