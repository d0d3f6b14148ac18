package buzzer

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// OpenGPIO initialises the host drivers and returns the named pin, e.g. "GPIO17".
func OpenGPIO(name string) (gpio.PinOut, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("buzzer: init host drivers: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("buzzer: no GPIO pin named %q", name)
	}
	return pin, nil
}

// LogPin stands in for the buzzer on machines without GPIO.
type LogPin struct {
	Name   string
	Logger *log.Logger
}

func (p LogPin) Out(l gpio.Level) error {
	p.Logger.Printf("Buzzer: %s -> %s", p.Name, l)
	return nil
}
