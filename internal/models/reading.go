package models

import (
	"fmt"
	"time"
)

// SensorReading is the latest environmental snapshot for one device.
// A reading is immutable once constructed; updates always replace the
// whole reading, never individual fields.
type SensorReading struct {
	DeviceID    string    `json:"device_id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	TVOC        float64   `json:"tvoc"`
	CapturedAt  time.Time `json:"captured_at"`
}

// NewSensorReading creates a reading stamped with the current time.
func NewSensorReading(deviceID string, temperature, humidity, co2, tvoc float64) *SensorReading {
	return &SensorReading{
		DeviceID:    deviceID,
		Temperature: temperature,
		Humidity:    humidity,
		CO2:         co2,
		TVOC:        tvoc,
		CapturedAt:  time.Now(),
	}
}

func (r *SensorReading) String() string {
	return fmt.Sprintf("DeviceID: %s, CapturedAt: %s, Temp: %.1f°C, Humidity: %.1f%%, CO2: %.0fppm, TVOC: %.0fppb",
		r.DeviceID,
		r.CapturedAt.Format(time.RFC3339),
		r.Temperature,
		r.Humidity,
		r.CO2,
		r.TVOC)
}

// Copy returns a deep copy of the reading.
func (r *SensorReading) Copy() *SensorReading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// IngestPayload is the pushed telemetry document received on a
// sensorDataReceived property write. Metrics are pointers so an absent
// field can be told apart from a zero value.
type IngestPayload struct {
	SensorID    string   `json:"sensorId"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	CO2         *float64 `json:"co2"`
	TVOC        *float64 `json:"tvoc"`
}

// Validate checks that the sensor id and all four metrics are present.
// It reports the first missing field by name.
func (p *IngestPayload) Validate() error {
	if p.SensorID == "" {
		return fmt.Errorf("missing field sensorId")
	}
	metrics := []struct {
		name  string
		value *float64
	}{
		{"temperature", p.Temperature},
		{"humidity", p.Humidity},
		{"co2", p.CO2},
		{"tvoc", p.TVOC},
	}
	for _, m := range metrics {
		if m.value == nil {
			return fmt.Errorf("missing metric %s", m.name)
		}
	}
	return nil
}
