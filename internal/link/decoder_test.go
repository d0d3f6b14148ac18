package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSample(t *testing.T) {
	at := time.Date(2026, 3, 14, 7, 30, 0, 0, time.UTC)

	t.Run("full payload", func(t *testing.T) {
		s, err := DecodeSample([]byte("142,97,64,3.81\n"), at)
		require.NoError(t, err)
		assert.Equal(t, uint16(142), s.HeartRateBpm)
		assert.Equal(t, uint8(97), s.SpO2Pct)
		require.NotNil(t, s.BatteryPct)
		assert.Equal(t, uint8(64), *s.BatteryPct)
		require.NotNil(t, s.Voltage)
		assert.InDelta(t, 3.81, *s.Voltage, 0.001)
		assert.Equal(t, at, s.ObservedAt)
	})

	t.Run("optional fields omitted", func(t *testing.T) {
		s, err := DecodeSample([]byte("60,99"), at)
		require.NoError(t, err)
		assert.Nil(t, s.BatteryPct)
		assert.Nil(t, s.Voltage)
	})

	t.Run("malformed optional fields are ignored", func(t *testing.T) {
		s, err := DecodeSample([]byte(" 88 , 96 ,n/a,??"), at)
		require.NoError(t, err)
		assert.Equal(t, uint16(88), s.HeartRateBpm)
		assert.Nil(t, s.BatteryPct)
		assert.Nil(t, s.Voltage)
	})

	for name, payload := range map[string]string{
		"empty":            "",
		"single field":     "72",
		"non numeric bpm":  "abc,97",
		"negative spo2":    "72,-1",
		"spo2 overflow":    "72,300",
		"float heart rate": "72.5,97",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSample([]byte(payload), at)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestEncodeCommand(t *testing.T) {
	assert.Equal(t, []byte("30"), EncodeCommand(30))
	assert.Equal(t, []byte("0"), EncodeCommand(0))
	assert.Equal(t, []byte("105"), EncodeCommand(105))
}

func TestTelemetrySample_Valid(t *testing.T) {
	cases := []struct {
		bpm   uint16
		spo2  uint8
		valid bool
	}{
		{45, 97, true},
		{25, 97, false},
		{30, 50, true},
		{220, 100, true},
		{221, 98, false},
		{72, 49, false},
		{72, 101, false},
		{0, 0, false},
	}
	for _, c := range cases {
		s := TelemetrySample{HeartRateBpm: c.bpm, SpO2Pct: c.spo2}
		assert.Equal(t, c.valid, s.Valid(), "bpm=%d spo2=%d", c.bpm, c.spo2)
	}
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Disconnected", Disconnected.String())
	assert.Equal(t, "Connecting", Connecting.String())
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Unknown", ConnectionState(9).String())
}
