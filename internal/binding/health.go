package binding

import (
	"fmt"
	"math/rand"
)

// HealthStrategy produces diagnostic strings for the status properties.
// The default strategy is a coin flip kept for compatibility with
// existing consumers; a real diagnostic can be plugged in without
// touching the binding.
type HealthStrategy interface {
	SensorDiagnostic(id string) string
	MotorDiagnostic() string
}

// RandomHealth is the placeholder strategy: an unweighted 50/50 draw
// between the two fixed diagnostic strings.
type RandomHealth struct{}

// Compile-time interface check
var _ HealthStrategy = RandomHealth{}

func (RandomHealth) SensorDiagnostic(id string) string {
	if rand.Intn(2) == 0 {
		return fmt.Sprintf("The Sensor %s is ok", id)
	}
	return fmt.Sprintf("The Sensor %s is failing", id)
}

func (RandomHealth) MotorDiagnostic() string {
	if rand.Intn(2) == 0 {
		return "The motor is ok"
	}
	return "The motor is failing"
}
