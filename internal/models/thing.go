package models

import (
	"fmt"
	"time"
)

// DeviceType selects which binding handles a thing. It is resolved once
// when the thing is registered, not re-derived per request.
type DeviceType string

const (
	DeviceTypeAnalyzer DeviceType = "analyzer"
	DeviceTypeCamera   DeviceType = "camera"
)

// ParseDeviceType maps a stored type string to a DeviceType. Unknown
// types are an error; things with no recognized binding are rejected at
// registration rather than skipped.
func ParseDeviceType(s string) (DeviceType, error) {
	switch DeviceType(s) {
	case DeviceTypeAnalyzer, DeviceTypeCamera:
		return DeviceType(s), nil
	default:
		return "", fmt.Errorf("unknown device type %q", s)
	}
}

// Thing is a stored thing definition, loaded at startup.
type Thing struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Type  DeviceType `json:"type"`
}

// DeviceLocation is the persisted human-readable location of a device.
type DeviceLocation struct {
	DeviceID     string    `json:"device_id"`
	Location     string    `json:"location"`
	DeviceType   string    `json:"device_type"`
	LastModified time.Time `json:"last_modified"`
}

// LocationUnknown is the location value before any successful write.
const LocationUnknown = "Unknown"

// Verdict is the safety determination produced for one photo
// submission. It is not retained beyond the pipeline run.
type Verdict struct {
	Safe    bool   `json:"safe"`
	RawText string `json:"raw_text"`
}
