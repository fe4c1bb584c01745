package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LastReading is the payload returned by the external sensor endpoint.
type LastReading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	CO2         float64 `json:"co2"`
	TVOC        float64 `json:"tvoc"`
}

// SensorReader fetches the latest reading from an external sensor
// endpoint. Implemented by SensorClient; substituted in tests.
type SensorReader interface {
	LastReading(ctx context.Context) (*LastReading, error)
}

// Compile-time interface check
var _ SensorReader = (*SensorClient)(nil)

// SensorClient reads the sensor hardware's HTTP API.
type SensorClient struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewSensorClient creates a client for the sensor endpoint.
func NewSensorClient(baseURL string, timeout time.Duration) *SensorClient {
	return &SensorClient{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// LastReading fetches the current sensor values. A non-success status
// is an error; the caller decides what that means for its cache.
func (c *SensorClient) LastReading(ctx context.Context) (*LastReading, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/last-reading", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sensor endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sensor endpoint returned status %d", resp.StatusCode)
	}

	var reading LastReading
	if err := json.NewDecoder(resp.Body).Decode(&reading); err != nil {
		return nil, fmt.Errorf("failed to decode sensor response: %w", err)
	}

	return &reading, nil
}
