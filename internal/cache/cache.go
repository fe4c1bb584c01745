package cache

import (
	"sync"

	"github.com/afroash/buffet-monitor/internal/models"
)

// SensorCache holds the most recent successfully validated reading per
// device. It is the only state shared between concurrently executing
// handlers; all access goes through the mutex here.
type SensorCache struct {
	mutex    sync.RWMutex
	data     map[string]*models.SensorReading
	totalSet int64
}

// NewSensorCache creates an empty cache.
func NewSensorCache() *SensorCache {
	return &SensorCache{
		data: make(map[string]*models.SensorReading),
	}
}

// Get returns a copy of the latest reading for a device, or nil if the
// device has never reported.
func (c *SensorCache) Get(deviceID string) *models.SensorReading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.data[deviceID].Copy()
}

// Set replaces the reading for the device. Replacement is always whole;
// for concurrent writers on the same device the last call to complete
// wins.
func (c *SensorCache) Set(deviceID string, reading *models.SensorReading) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data[deviceID] = reading.Copy()
	c.totalSet++
}

// Snapshot returns a point-in-time copy of every entry. No entry is
// ever observed half-written.
func (c *SensorCache) Snapshot() map[string]*models.SensorReading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*models.SensorReading, len(c.data))
	for id, reading := range c.data {
		result[id] = reading.Copy()
	}
	return result
}

// Latest returns the most recently captured reading across all devices,
// or nil if the cache is empty. The verdict pipeline uses this to pair
// a photo with the freshest environmental data available.
func (c *SensorCache) Latest() *models.SensorReading {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var latest *models.SensorReading
	for _, reading := range c.data {
		if latest == nil || reading.CapturedAt.After(latest.CapturedAt) {
			latest = reading
		}
	}
	return latest.Copy()
}

// DeviceIDs returns the ids of all devices that have reported.
func (c *SensorCache) DeviceIDs() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	ids := make([]string, 0, len(c.data))
	for id := range c.data {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns counters about the cache.
func (c *SensorCache) Stats() Stats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return Stats{
		TotalSets:     c.totalSet,
		UniqueDevices: len(c.data),
	}
}

// Stats contains statistics about the cache.
type Stats struct {
	TotalSets     int64 `json:"total_sets"`
	UniqueDevices int   `json:"unique_devices"`
}
