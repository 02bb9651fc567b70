package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"relayhq/relay/pkg/gateway"
)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each storage write.
	// Default: 5s
	WriteTimeout time.Duration
}

// DropRecorder is implemented by metrics collectors that count records
// dropped by a full queue.
type DropRecorder interface {
	RecordJournalDrop()
}

// Recorder writes access entries to storage on a background worker. It
// implements gateway.AccessRecorder.
type Recorder struct {
	storage Storage
	config  RecorderConfig
	logger  *slog.Logger
	drops   DropRecorder

	queue     chan *Record
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder creates a recorder and starts its worker. drops may be nil.
func NewRecorder(storage Storage, cfg RecorderConfig, logger *slog.Logger, drops DropRecorder) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "journal.recorder"),
		drops:   drops,
		queue:   make(chan *Record, cfg.AsyncBuffer),
		done:    make(chan struct{}),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// RecordAccess enqueues entry without blocking. A full queue drops it.
func (r *Recorder) RecordAccess(entry gateway.AccessEntry) {
	select {
	case <-r.done:
		r.drop(entry, "recorder closed")
		return
	default:
	}

	record := FromAccessEntry(entry)
	select {
	case r.queue <- record:
	default:
		r.drop(entry, "queue full")
	}
}

// FromAccessEntry converts a gateway access entry into a record, assigning
// an id when the entry has none.
func FromAccessEntry(entry gateway.AccessEntry) *Record {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	record := &Record{
		ID:         id,
		Time:       entry.Time,
		Method:     entry.Method,
		Path:       entry.Path,
		Target:     entry.Target,
		Status:     entry.Status,
		DurationMs: entry.Duration.Milliseconds(),
		CacheHit:   entry.CacheHit,
	}
	if entry.Err != nil {
		record.Error = entry.Err.Error()
	}
	return record
}

func (r *Recorder) drop(entry gateway.AccessEntry, reason string) {
	r.dropped.Add(1)
	if r.drops != nil {
		r.drops.RecordJournalDrop()
	}
	r.logger.Warn("dropping journal record",
		"reason", reason,
		"method", entry.Method,
		"path", entry.Path,
		"queue_capacity", r.config.AsyncBuffer,
	)
}

// Dropped returns the number of records dropped so far.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns the number of records stored so far.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting records, drains the queue and waits for pending
// writes. It does not close the storage.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Info("journal recorder shut down", "written", r.written.Load(), "dropped", r.dropped.Load())
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.queue:
			r.write(record)

		case <-r.done:
			for {
				select {
				case record := <-r.queue:
					r.write(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(record *Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to write journal record",
			"record_id", record.ID,
			"error", err,
		)
		return
	}
	r.written.Add(1)
}
