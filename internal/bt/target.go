package bt

import (
	"fmt"
	"strings"

	"tinygo.org/x/bluetooth"
)

// Target identifies the wearable and the GATT attributes used to talk to it.
// The wearable exposes a single characteristic for both notify and write.
type Target struct {
	Address            string
	Name               string
	ServiceUUID        string
	CharacteristicUUID string
}

// matches reports whether a scanned peripheral is the target. A configured
// address wins; the advertised name is the fallback.
func (t Target) matches(address string, localName string) bool {
	if t.Address != "" && strings.EqualFold(address, t.Address) {
		return true
	}
	return t.Name != "" && localName == t.Name
}

func (t Target) String() string {
	switch {
	case t.Address != "" && t.Name != "":
		return fmt.Sprintf("%s (%s)", t.Name, t.Address)
	case t.Address != "":
		return t.Address
	default:
		return t.Name
	}
}

func (t Target) uuids() (bluetooth.UUID, bluetooth.UUID, error) {
	service, err := bluetooth.ParseUUID(t.ServiceUUID)
	if err != nil {
		return bluetooth.UUID{}, bluetooth.UUID{}, fmt.Errorf("invalid service UUID %q: %w", t.ServiceUUID, err)
	}
	characteristic, err := bluetooth.ParseUUID(t.CharacteristicUUID)
	if err != nil {
		return bluetooth.UUID{}, bluetooth.UUID{}, fmt.Errorf("invalid characteristic UUID %q: %w", t.CharacteristicUUID, err)
	}
	return service, characteristic, nil
}
