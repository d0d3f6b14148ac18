package link

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DecodeSample parses a "<bpm>,<spo2>[,<battery>[,<voltage>]]" notification.
// Battery and voltage are dropped silently when malformed.
func DecodeSample(payload []byte, observedAt time.Time) (TelemetrySample, error) {
	fields := strings.Split(strings.TrimSpace(string(payload)), ",")
	if len(fields) < 2 {
		return TelemetrySample{}, fmt.Errorf("%w: want at least 2 fields, got %d", ErrMalformedPayload, len(fields))
	}

	bpm, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 16)
	if err != nil {
		return TelemetrySample{}, fmt.Errorf("%w: heart rate %q: %v", ErrMalformedPayload, fields[0], err)
	}
	spo2, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 8)
	if err != nil {
		return TelemetrySample{}, fmt.Errorf("%w: spo2 %q: %v", ErrMalformedPayload, fields[1], err)
	}

	sample := TelemetrySample{
		HeartRateBpm: uint16(bpm),
		SpO2Pct:      uint8(spo2),
		ObservedAt:   observedAt,
	}
	if len(fields) > 2 {
		if v, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 8); err == nil {
			battery := uint8(v)
			sample.BatteryPct = &battery
		}
	}
	if len(fields) > 3 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 32); err == nil {
			voltage := float32(v)
			sample.Voltage = &voltage
		}
	}
	return sample, nil
}

// EncodeCommand renders a command value the way the wearable parses it.
func EncodeCommand(value int64) []byte {
	return []byte(strconv.FormatInt(value, 10))
}
