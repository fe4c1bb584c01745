package probe

import (
	"fmt"
	"sync"
	"testing"

	"github.com/afroash/buffet-monitor/internal/models"
)

func testPayload(sensorID string, temp float64) *models.IngestPayload {
	humidity, co2, tvoc := 50.0, 700.0, 150.0
	return &models.IngestPayload{
		SensorID:    sensorID,
		Temperature: &temp,
		Humidity:    &humidity,
		CO2:         &co2,
		TVOC:        &tvoc,
	}
}

func TestPayloadBuffer_PushAndPop(t *testing.T) {
	buf := NewPayloadBuffer(10, true)

	if !buf.IsEmpty() {
		t.Error("New buffer should be empty")
	}

	for i := 0; i < 3; i++ {
		if !buf.Push(testPayload(fmt.Sprintf("s%d", i), float64(i))) {
			t.Errorf("Push(%d) returned false with space available", i)
		}
	}
	if buf.Size() != 3 {
		t.Errorf("Size() = %d, want 3", buf.Size())
	}

	batch := buf.PopBatch(2)
	if len(batch) != 2 {
		t.Fatalf("PopBatch(2) returned %d payloads", len(batch))
	}
	// Oldest first.
	if batch[0].SensorID != "s0" || batch[1].SensorID != "s1" {
		t.Errorf("PopBatch order = [%s %s], want [s0 s1]", batch[0].SensorID, batch[1].SensorID)
	}
	if buf.Size() != 1 {
		t.Errorf("Size() after pop = %d, want 1", buf.Size())
	}
}

func TestPayloadBuffer_PopBatchMoreThanAvailable(t *testing.T) {
	buf := NewPayloadBuffer(10, true)
	buf.Push(testPayload("s0", 20))

	batch := buf.PopBatch(50)
	if len(batch) != 1 {
		t.Errorf("PopBatch(50) = %d payloads, want 1", len(batch))
	}
	if batch := buf.PopBatch(10); batch != nil {
		t.Errorf("PopBatch on empty buffer = %v, want nil", batch)
	}
}

func TestPayloadBuffer_DropOldest(t *testing.T) {
	buf := NewPayloadBuffer(3, true)

	for i := 0; i < 5; i++ {
		if !buf.Push(testPayload(fmt.Sprintf("s%d", i), float64(i))) {
			t.Errorf("Push(%d) returned false in drop-oldest mode", i)
		}
	}

	if buf.Size() != 3 {
		t.Fatalf("Size() = %d, want capacity 3", buf.Size())
	}
	batch := buf.PopBatch(3)
	if batch[0].SensorID != "s2" || batch[2].SensorID != "s4" {
		t.Errorf("Remaining payloads = [%s .. %s], want the newest three", batch[0].SensorID, batch[2].SensorID)
	}

	stats := buf.Stats()
	if stats.TotalDropped != 2 {
		t.Errorf("TotalDropped = %d, want 2", stats.TotalDropped)
	}
	if stats.TotalPushed != 5 {
		t.Errorf("TotalPushed = %d, want 5", stats.TotalPushed)
	}
}

func TestPayloadBuffer_DropNewest(t *testing.T) {
	buf := NewPayloadBuffer(3, false)

	for i := 0; i < 3; i++ {
		buf.Push(testPayload(fmt.Sprintf("s%d", i), float64(i)))
	}
	if buf.Push(testPayload("s3", 3)) {
		t.Error("Push on a full drop-newest buffer returned true")
	}

	batch := buf.PopBatch(3)
	if batch[0].SensorID != "s0" || batch[2].SensorID != "s2" {
		t.Errorf("Remaining payloads = [%s .. %s], want the original three", batch[0].SensorID, batch[2].SensorID)
	}

	stats := buf.Stats()
	if stats.TotalDropped != 1 {
		t.Errorf("TotalDropped = %d, want 1", stats.TotalDropped)
	}
}

func TestPayloadBuffer_HighWaterMark(t *testing.T) {
	buf := NewPayloadBuffer(10, true)

	for i := 0; i < 6; i++ {
		buf.Push(testPayload("s1", float64(i)))
	}
	buf.PopBatch(4)
	buf.Push(testPayload("s1", 99))

	if hwm := buf.Stats().HighWaterMark; hwm != 6 {
		t.Errorf("HighWaterMark = %d, want 6", hwm)
	}
}

func TestPayloadBuffer_ConcurrentAccess(t *testing.T) {
	buf := NewPayloadBuffer(1000, true)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf.Push(testPayload("s1", float64(i)))
				if i%10 == 0 {
					buf.PopBatch(5)
				}
			}
		}()
	}
	wg.Wait()

	if pushed := buf.Stats().TotalPushed; pushed != 800 {
		t.Errorf("TotalPushed = %d, want 800", pushed)
	}
}

func TestPayloadBuffer_String(t *testing.T) {
	buf := NewPayloadBuffer(5, true)
	buf.Push(testPayload("s1", 20))

	got := buf.String()
	want := "Buffer[1/5, dropped: 0, mode: drop-oldest]"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
