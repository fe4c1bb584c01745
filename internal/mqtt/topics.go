package mqtt

import "fmt"

// Topics builds the topic names used by the exposition surface. All
// topics share a configurable prefix so several deployments can share a
// broker.
type Topics struct {
	Prefix string
}

// PropertyWrite is the topic devices publish property writes to.
func (t Topics) PropertyWrite(thingID, property string) string {
	return fmt.Sprintf("%s/%s/properties/%s/set", t.Prefix, thingID, property)
}

// Event is the topic an emitted event is published on.
func (t Topics) Event(thingID, event string) string {
	return fmt.Sprintf("%s/%s/events/%s", t.Prefix, thingID, event)
}

// Readings is the topic a probe publishes its readings to. It maps onto
// the sensorDataReceived property write of the paired analyzer thing.
func (t Topics) Readings(thingID string) string {
	return t.PropertyWrite(thingID, "sensorDataReceived")
}
