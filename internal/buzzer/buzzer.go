package buzzer

import (
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
)

type Kind int

const (
	Short Kind = iota
	Long
)

func (k Kind) String() string {
	if k == Long {
		return "long"
	}
	return "short"
}

// Pin is the output the buzzer hangs off. gpio.PinOut satisfies it.
type Pin interface {
	Out(l gpio.Level) error
}

type Config struct {
	Short     time.Duration
	Long      time.Duration
	ActiveLow bool
}

func DefaultConfig() Config {
	return Config{
		Short:     100 * time.Millisecond,
		Long:      time.Second,
		ActiveLow: true,
	}
}

// Dispatcher drives the buzzer pin. Beep returns immediately; the pin is
// released by a timer. A beep during an active pulse restarts the window.
type Dispatcher struct {
	pin    Pin
	cfg    Config
	logger *log.Logger

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	closed     bool
}

func NewDispatcher(pin Pin, cfg Config, logger *log.Logger) *Dispatcher {
	if pin == nil {
		panic("Dispatcher: pin cannot be nil")
	}
	if logger == nil {
		panic("Dispatcher: logger cannot be nil")
	}
	d := &Dispatcher{pin: pin, cfg: cfg, logger: logger}
	if err := pin.Out(d.level(false)); err != nil {
		logger.Printf("Buzzer: could not silence pin: %v", err)
	}
	return d
}

func (d *Dispatcher) Beep(kind Kind) {
	duration := d.cfg.Short
	if kind == Long {
		duration = d.cfg.Long
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if err := d.pin.Out(d.level(true)); err != nil {
		d.logger.Printf("Buzzer: %s beep failed: %v", kind, err)
		// a pending release still silences the previous beep
		if d.timer != nil {
			return
		}
	}

	d.generation++
	generation := d.generation
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(duration, func() { d.release(generation) })
}

// Close silences the buzzer and ignores further beeps.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return d.pin.Out(d.level(false))
}

func (d *Dispatcher) release(generation uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if generation != d.generation || d.closed {
		return
	}
	d.timer = nil
	if err := d.pin.Out(d.level(false)); err != nil {
		d.logger.Printf("Buzzer: release failed: %v", err)
	}
}

func (d *Dispatcher) level(active bool) gpio.Level {
	if d.cfg.ActiveLow {
		return gpio.Level(!active)
	}
	return gpio.Level(active)
}
