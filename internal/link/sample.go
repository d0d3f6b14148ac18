package link

import "time"

// Plausibility bounds for a sample to be logged or displayed.
const (
	MinHeartRateBpm = 30
	MaxHeartRateBpm = 220
	MinSpO2Pct      = 50
	MaxSpO2Pct      = 100
)

// TelemetrySample is one decoded notification from the wearable.
// Optional fields are nil when the payload omitted them or they did not parse.
type TelemetrySample struct {
	HeartRateBpm uint16
	SpO2Pct      uint8
	BatteryPct   *uint8
	Voltage      *float32
	ObservedAt   time.Time
}

// Valid reports whether both heart rate and SpO2 are within plausible ranges.
func (s TelemetrySample) Valid() bool {
	return s.HeartRateBpm >= MinHeartRateBpm && s.HeartRateBpm <= MaxHeartRateBpm &&
		s.SpO2Pct >= MinSpO2Pct && s.SpO2Pct <= MaxSpO2Pct
}
