package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// IngestWriter handles async batched appends of ingest documents. A
// slow store never stalls the handler that accepted the ingest; a
// failed batch is logged and does not undo the cache update that
// preceded it.
type IngestWriter struct {
	store       Store
	logger      zerolog.Logger
	writeChan   chan *ReadingDocument
	batchSize   int
	flushPeriod time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// Stats
	mu            sync.RWMutex
	totalWritten  int64
	totalBatches  int64
	totalErrors   int64
	lastWriteTime time.Time
}

// IngestWriterConfig holds configuration for the async writer
type IngestWriterConfig struct {
	BatchSize   int           // Number of documents to batch before writing (default: 100)
	FlushPeriod time.Duration // Max time between flushes (default: 5s)
	ChannelSize int           // Size of the write channel buffer (default: 1000)
}

// DefaultIngestWriterConfig returns sensible defaults
func DefaultIngestWriterConfig() IngestWriterConfig {
	return IngestWriterConfig{
		BatchSize:   100,
		FlushPeriod: 5 * time.Second,
		ChannelSize: 1000,
	}
}

// IngestWriterStats contains statistics about the writer
type IngestWriterStats struct {
	TotalWritten  int64     `json:"total_written"`
	TotalBatches  int64     `json:"total_batches"`
	TotalErrors   int64     `json:"total_errors"`
	LastWriteTime time.Time `json:"last_write_time,omitempty"`
	QueueLength   int       `json:"queue_length"`
}

// NewIngestWriter creates a new async document writer
func NewIngestWriter(store Store, config IngestWriterConfig, logger zerolog.Logger) *IngestWriter {
	w := &IngestWriter{
		store:       store,
		logger:      logger,
		writeChan:   make(chan *ReadingDocument, config.ChannelSize),
		batchSize:   config.BatchSize,
		flushPeriod: config.FlushPeriod,
		stopChan:    make(chan struct{}),
	}

	w.wg.Add(1)
	go w.writerLoop()

	logger.Info().
		Int("batch_size", config.BatchSize).
		Dur("flush_period", config.FlushPeriod).
		Int("channel_size", config.ChannelSize).
		Msg("IngestWriter started")

	return w
}

// Write queues a document for async appending.
// Returns true if queued, false if dropped (channel full).
func (w *IngestWriter) Write(doc *ReadingDocument) bool {
	select {
	case w.writeChan <- doc:
		return true
	default:
		w.logger.Warn().Msg("IngestWriter channel full, dropping document")
		return false
	}
}

// writerLoop is the background goroutine that batches and appends documents
func (w *IngestWriter) writerLoop() {
	defer w.wg.Done()

	batch := make([]*ReadingDocument, 0, w.batchSize)
	ticker := time.NewTicker(w.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case doc := <-w.writeChan:
			batch = append(batch, doc)
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = make([]*ReadingDocument, 0, w.batchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = make([]*ReadingDocument, 0, w.batchSize)
			}

		case <-w.stopChan:
			// Drain remaining documents from channel
			draining := true
			for draining {
				select {
				case doc := <-w.writeChan:
					batch = append(batch, doc)
				default:
					draining = false
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			w.logger.Info().Msg("IngestWriter stopped")
			return
		}
	}
}

// flush appends a batch to the store
func (w *IngestWriter) flush(batch []*ReadingDocument) {
	if len(batch) == 0 {
		return
	}

	err := w.store.AppendBatch(batch)

	w.mu.Lock()
	if err != nil {
		w.totalErrors++
		w.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to append batch")
	} else {
		w.totalWritten += int64(len(batch))
		w.totalBatches++
		w.lastWriteTime = time.Now()
		w.logger.Debug().Int("count", len(batch)).Msg("Flushed batch")
	}
	w.mu.Unlock()
}

// Stop gracefully stops the writer, flushing any remaining data
func (w *IngestWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.wg.Wait()
	})
}

// Stats returns current writer statistics
func (w *IngestWriter) Stats() IngestWriterStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return IngestWriterStats{
		TotalWritten:  w.totalWritten,
		TotalBatches:  w.totalBatches,
		TotalErrors:   w.totalErrors,
		LastWriteTime: w.lastWriteTime,
		QueueLength:   len(w.writeChan),
	}
}
