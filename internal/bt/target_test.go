package bt

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func TestTarget_Matches(t *testing.T) {
	target := Target{Address: "94:A9:90:7C:B1:CE", Name: "ESP32CE_BLE"}

	assert.True(t, target.matches("94:a9:90:7c:b1:ce", ""))
	assert.True(t, target.matches("11:22:33:44:55:66", "ESP32CE_BLE"))
	assert.False(t, target.matches("11:22:33:44:55:66", "Polar H10"))

	byName := Target{Name: "ESP32CE_BLE"}
	assert.False(t, byName.matches("94:A9:90:7C:B1:CE", ""))
	assert.True(t, byName.matches("94:A9:90:7C:B1:CE", "ESP32CE_BLE"))
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "ESP32CE_BLE (94:A9:90:7C:B1:CE)", Target{Address: "94:A9:90:7C:B1:CE", Name: "ESP32CE_BLE"}.String())
	assert.Equal(t, "ESP32CE_BLE", Target{Name: "ESP32CE_BLE"}.String())
}

func TestTarget_UUIDs(t *testing.T) {
	target := Target{
		ServiceUUID:        "000000ff-0000-1000-8000-00805f9b34fb",
		CharacteristicUUID: "0000ff01-0000-1000-8000-00805f9b34fb",
	}
	service, characteristic, err := target.uuids()
	require.NoError(t, err)
	assert.Equal(t, bluetooth.New16BitUUID(0x00FF), service)
	assert.Equal(t, bluetooth.New16BitUUID(0xFF01), characteristic)

	_, _, err = Target{ServiceUUID: "nope", CharacteristicUUID: "0000ff01-0000-1000-8000-00805f9b34fb"}.uuids()
	assert.Error(t, err)
}

func TestNewTransport_Validation(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	uuids := Target{
		ServiceUUID:        "000000ff-0000-1000-8000-00805f9b34fb",
		CharacteristicUUID: "0000ff01-0000-1000-8000-00805f9b34fb",
	}

	_, err := NewTransport(nil, uuids, logger)
	assert.Error(t, err)

	_, err = NewTransport(bluetooth.DefaultAdapter, uuids, logger)
	assert.Error(t, err, "a target without address or name is rejected")

	withName := uuids
	withName.Name = "ESP32CE_BLE"
	transport, err := NewTransport(bluetooth.DefaultAdapter, withName, logger)
	require.NoError(t, err)
	assert.NotNil(t, transport)
}
