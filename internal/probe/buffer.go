package probe

import (
	"fmt"
	"sync"
	"time"

	"github.com/afroash/buffet-monitor/internal/models"
)

// PayloadBuffer is a thread-safe circular buffer holding ingest
// payloads while the broker is unreachable.
type PayloadBuffer struct {
	payloads   []*models.IngestPayload
	capacity   int
	dropOldest bool
	mutex      sync.RWMutex
	stats      BufferStats
}

// BufferStats tracks buffer usage statistics
type BufferStats struct {
	TotalPushed   int64
	TotalDropped  int64
	HighWaterMark int
	LastPushTime  time.Time
	LastDropTime  time.Time
}

// NewPayloadBuffer creates a new buffer with the given capacity.
func NewPayloadBuffer(capacity int, dropOldest bool) *PayloadBuffer {
	return &PayloadBuffer{
		payloads:   make([]*models.IngestPayload, 0, capacity),
		capacity:   capacity,
		dropOldest: dropOldest,
	}
}

// Push adds a payload to the buffer.
// Returns true if stored, false if dropped (when full and dropOldest=false).
func (pb *PayloadBuffer) Push(payload *models.IngestPayload) bool {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	if len(pb.payloads) >= pb.capacity {
		pb.stats.TotalDropped++
		pb.stats.LastDropTime = time.Now()
		if !pb.dropOldest {
			return false
		}
		pb.payloads = pb.payloads[1:]
	}
	pb.payloads = append(pb.payloads, payload)
	pb.stats.TotalPushed++
	pb.stats.LastPushTime = time.Now()

	if len(pb.payloads) > pb.stats.HighWaterMark {
		pb.stats.HighWaterMark = len(pb.payloads)
	}

	return true
}

// PopBatch removes and returns up to n payloads, oldest first.
func (pb *PayloadBuffer) PopBatch(n int) []*models.IngestPayload {
	pb.mutex.Lock()
	defer pb.mutex.Unlock()

	count := min(n, len(pb.payloads))
	if count == 0 {
		return nil
	}
	result := make([]*models.IngestPayload, count)
	copy(result, pb.payloads[:count])
	pb.payloads = pb.payloads[count:]
	return result
}

// Size returns the current number of buffered payloads.
func (pb *PayloadBuffer) Size() int {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()
	return len(pb.payloads)
}

// IsEmpty returns true if the buffer has no payloads.
func (pb *PayloadBuffer) IsEmpty() bool {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()
	return len(pb.payloads) == 0
}

// Capacity returns the maximum capacity of the buffer.
func (pb *PayloadBuffer) Capacity() int {
	// No lock needed, capacity doesn't change
	return pb.capacity
}

// Stats returns a copy of current buffer statistics.
func (pb *PayloadBuffer) Stats() BufferStats {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()
	return pb.stats
}

// String returns a human-readable representation of buffer state.
func (pb *PayloadBuffer) String() string {
	pb.mutex.RLock()
	defer pb.mutex.RUnlock()

	mode := "drop-newest"
	if pb.dropOldest {
		mode = "drop-oldest"
	}

	return fmt.Sprintf("Buffer[%d/%d, dropped: %d, mode: %s]",
		len(pb.payloads),
		pb.capacity,
		pb.stats.TotalDropped,
		mode,
	)
}
